// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package flow exposes the questionnaire traversal engine over HTTP:
// walking a section graph to the next question, recording applicant
// answers, and retrieving captured walks for debugging.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/flowgraph/services/flow/capture"
	"github.com/AleutianAI/flowgraph/services/flow/engine"
	"github.com/AleutianAI/flowgraph/services/flow/eval"
	"github.com/AleutianAI/flowgraph/services/flow/telemetry"
)

const tracerName = "flowgraph/services/flow"

// Walker runs a traversal walk. Implemented by *engine.Engine.
type Walker interface {
	Walk(ctx context.Context, sectionID string, params map[string]any) (*engine.Result, error)
}

// Service wires the engine, the answer writer, and the capture store
// behind the HTTP handlers.
type Service struct {
	walker   Walker
	answers  *AnswerWriter
	captures *capture.Store
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

// NewService creates the flow service. captures and metrics may be nil;
// the corresponding features are then disabled.
func NewService(walker Walker, answers *AnswerWriter, captures *capture.Store, metrics *telemetry.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		walker:   walker,
		answers:  answers,
		captures: captures,
		metrics:  metrics,
		logger:   logger,
	}
}

// NextQuestion runs a walk for the request and captures the result
// under a fresh trace id. The trace id is returned even when the walk
// fails, so error responses stay correlatable with logs.
func (s *Service) NextQuestion(ctx context.Context, req NextQuestionRequest) (*NextQuestionResponse, string, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "flow.next_question",
		trace.WithAttributes(attribute.String("flow.section_id", req.SectionID)))
	defer span.End()

	// Prefer the otel trace id so walk captures line up with spans; fall
	// back to a uuid when tracing is disabled.
	traceID := uuid.NewString()
	if sc := span.SpanContext(); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	span.SetAttributes(attribute.String("flow.trace_id", traceID))

	params := req.Params()
	start := time.Now()

	result, err := s.walker.Walk(ctx, req.SectionID, params)
	s.recordWalkMetrics(ctx, result, time.Since(start), err)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, traceID, err
	}
	telemetry.SetSpanOK(span)

	if s.captures != nil {
		if err := s.captures.Record(&capture.RecordedWalk{
			TraceID:   traceID,
			SectionID: req.SectionID,
			Params:    params,
			Response:  result,
		}); err != nil {
			// Capture is diagnostics; a write failure must not fail the walk.
			s.logger.Warn("walk capture failed", "trace_id", traceID, "error", err)
		}
	}

	return &NextQuestionResponse{Result: *result, TraceID: traceID}, traceID, nil
}

// SaveAnswer persists one applicant answer.
func (s *Service) SaveAnswer(ctx context.Context, req AnswerRequest) error {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "flow.save_answer",
		trace.WithAttributes(attribute.String("flow.question_id", req.QuestionID)))
	defer span.End()

	if err := s.answers.Save(ctx, req); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.SetSpanOK(span)

	if s.metrics != nil {
		s.metrics.AnswersRecordedTotal.Add(ctx, 1)
	}
	return nil
}

// GetWalk retrieves a previously captured walk. Returns
// capture.ErrNotFound when the trace id is unknown or expired.
func (s *Service) GetWalk(traceID string) (*capture.RecordedWalk, error) {
	if s.captures == nil {
		return nil, capture.ErrNotFound
	}
	return s.captures.Get(traceID)
}

func (s *Service) recordWalkMetrics(ctx context.Context, result *engine.Result, elapsed time.Duration, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "error"
	if err == nil {
		switch {
		case result.Question != nil:
			outcome = "question"
		case result.NextSectionID != "":
			outcome = "section_jump"
		default:
			outcome = "completed"
		}
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	s.metrics.WalksTotal.Add(ctx, 1, attrs)
	s.metrics.WalkDuration.Record(ctx, elapsed.Seconds(), attrs)
	if err == nil && len(result.Warnings) > 0 {
		s.metrics.WalkWarningsTotal.Add(ctx, int64(len(result.Warnings)))
	}
	if errors.Is(err, eval.ErrTimeout) {
		s.metrics.EvaluatorTimeoutsTotal.Add(ctx, 1)
	}
	if err != nil {
		s.metrics.ErrorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("component", "engine")))
	}
}

// Ready verifies the graph store answers a trivial statement. Used by
// the readiness probe.
func (s *Service) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := s.answers.runner.Run(ctx, "RETURN 1", nil)
	return err
}
