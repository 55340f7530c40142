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
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/flowgraph/services/flow/graph"
	"github.com/AleutianAI/flowgraph/services/flow/telemetry"
)

// instrumentedRunner wraps a graph.Runner with per-query spans, counters,
// and duration histograms. The gateway itself stays metrics-free so the
// engine packages can be tested without a meter.
type instrumentedRunner struct {
	next    graph.Runner
	metrics *telemetry.Metrics
}

// InstrumentRunner wraps runner with graph-query telemetry. Returns
// runner unchanged when metrics is nil.
func InstrumentRunner(runner graph.Runner, metrics *telemetry.Metrics) graph.Runner {
	if metrics == nil {
		return runner
	}
	return &instrumentedRunner{next: runner, metrics: metrics}
}

func (r *instrumentedRunner) Run(ctx context.Context, query string, params map[string]any) ([]graph.Record, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "graph.run")
	defer span.End()

	start := time.Now()
	records, err := r.next.Run(ctx, query, params)
	r.record(ctx, span, time.Since(start), err)
	return records, err
}

func (r *instrumentedRunner) RunCapped(ctx context.Context, query string, params map[string]any, max int) ([]graph.Record, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "graph.run_capped")
	defer span.End()

	start := time.Now()
	records, err := r.next.RunCapped(ctx, query, params, max)
	r.record(ctx, span, time.Since(start), err)
	return records, err
}

func (r *instrumentedRunner) record(ctx context.Context, span trace.Span, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		telemetry.RecordError(span, err)
	} else {
		telemetry.SetSpanOK(span)
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	r.metrics.GraphQueriesTotal.Add(ctx, 1, attrs)
	r.metrics.GraphQueryDuration.Record(ctx, elapsed.Seconds(), attrs)
}
