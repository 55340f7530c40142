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

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the flow service endpoints on rg.
//
// Endpoints:
//   - POST /next_question_flow : walk a section to the next question
//   - POST /answer             : persist an applicant answer
//   - GET  /walks/:traceId     : retrieve a captured walk
//   - GET  /health             : liveness probe
//   - GET  /ready              : readiness probe (checks the graph store)
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.POST("/next_question_flow", h.NextQuestion)
	rg.POST("/answer", h.Answer)
	rg.GET("/walks/:traceId", h.GetWalk)
	rg.GET("/health", h.Health)
	rg.GET("/ready", h.Ready)
}
