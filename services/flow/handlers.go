// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package flow

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/flowgraph/services/flow/capture"
	"github.com/AleutianAI/flowgraph/services/flow/engine"
	"github.com/AleutianAI/flowgraph/services/flow/eval"
	"github.com/AleutianAI/flowgraph/services/flow/graph"
)

// Handlers holds the gin handlers for the flow service.
type Handlers struct {
	service *Service
	logger  *slog.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(service *Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{service: service, logger: logger}
}

// NextQuestion handles POST /next_question_flow.
func (h *Handlers) NextQuestion(c *gin.Context) {
	var req NextQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Kind:  "ValidationError",
		})
		return
	}
	if req.SectionID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrMissingSectionID.Error(),
			Kind:  "ValidationError",
		})
		return
	}

	resp, traceID, err := h.service.NextQuestion(c.Request.Context(), req)
	if err != nil {
		status, kind := classifyWalkError(err)
		h.logger.Error("walk failed",
			"section_id", req.SectionID, "trace_id", traceID, "kind", kind, "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Kind: kind, TraceID: traceID})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Answer handles POST /answer.
func (h *Handlers) Answer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Kind:  "ValidationError",
		})
		return
	}

	if err := h.service.SaveAnswer(c.Request.Context(), req); err != nil {
		switch {
		case errors.Is(err, ErrQuestionNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Kind: "QuestionNotFound"})
		default:
			h.logger.Error("answer save failed", "question_id", req.QuestionID, "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Kind: "InternalError"})
		}
		return
	}
	c.JSON(http.StatusOK, AnswerResponse{Message: "answer saved"})
}

// GetWalk handles GET /walks/:traceId.
func (h *Handlers) GetWalk(c *gin.Context) {
	traceID := c.Param("traceId")
	walk, err := h.service.GetWalk(traceID)
	if err != nil {
		if errors.Is(err, capture.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "no walk recorded for trace id", Kind: "WalkNotFound", TraceID: traceID,
			})
			return
		}
		h.logger.Error("walk lookup failed", "trace_id", traceID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Kind: "InternalError", TraceID: traceID})
		return
	}
	c.JSON(http.StatusOK, walk)
}

// Health handles GET /health.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /ready. Unlike Health it exercises the graph store.
func (h *Handlers) Ready(c *gin.Context) {
	if err := h.service.Ready(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// classifyWalkError maps walk errors to an HTTP status and an error
// kind for the response body. Domain errors are conflicts: the request
// was well-formed but the graph content or its snippets rejected it.
func classifyWalkError(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrSectionNotFound):
		return http.StatusNotFound, "SectionNotFound"
	case errors.Is(err, eval.ErrTimeout):
		return http.StatusConflict, "TimeoutError"
	case errors.Is(err, eval.ErrSecurity):
		return http.StatusConflict, "SecurityError"
	case errors.Is(err, eval.ErrContract):
		return http.StatusConflict, "ContractError"
	case errors.Is(err, engine.ErrEvaluation):
		return http.StatusConflict, "EvaluationError"
	case errors.Is(err, engine.ErrTraversalDepth):
		return http.StatusConflict, "TraversalDepthExceeded"
	case errors.Is(err, graph.ErrRowCapExceeded):
		return http.StatusConflict, "ResourceLimit"
	case errors.Is(err, graph.ErrUnavailable):
		return http.StatusServiceUnavailable, "StorageUnavailable"
	default:
		return http.StatusInternalServerError, "InternalError"
	}
}
