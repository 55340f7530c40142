// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsMiddleware returns Gin middleware that records request count,
// duration, and in-flight gauge on the given Metrics.
//
// Route templates (c.FullPath) are used as the path label so that
// parameterized routes don't explode cardinality. Requests that match no
// route are labeled "unmatched".
func MetricsMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		attrs := []attribute.KeyValue{
			attribute.String("method", c.Request.Method),
			attribute.String("path", path),
		}

		m.HTTPActiveRequests.Add(c.Request.Context(), 1, metric.WithAttributes(attrs...))
		start := time.Now()

		c.Next()

		elapsed := time.Since(start).Seconds()
		status := c.Writer.Status()
		attrs = append(attrs, attribute.String("status", strconv.Itoa(status)))

		ctx := c.Request.Context()
		m.HTTPActiveRequests.Add(ctx, -1, metric.WithAttributes(attrs[:2]...))
		m.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
		m.HTTPRequestDuration.Record(ctx, elapsed, metric.WithAttributes(attrs...))
	}
}
