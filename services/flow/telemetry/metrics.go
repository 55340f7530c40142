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
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined metrics for the flow engine service.
//
// Description:
//
//	Provides standard counters and histograms for HTTP requests, walks,
//	graph queries, evaluator activity, and answer writes. All metrics
//	use the "flow_" prefix for consistent naming.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- HTTP Metrics ---

	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal metric.Int64Counter

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration metric.Float64Histogram

	// HTTPActiveRequests tracks currently active HTTP requests.
	HTTPActiveRequests metric.Int64UpDownCounter

	// --- Walk Metrics ---

	// WalksTotal counts traversal walks by outcome (question, completed,
	// jump, error).
	WalksTotal metric.Int64Counter

	// WalkDuration records walk duration in seconds.
	WalkDuration metric.Float64Histogram

	// WalkWarningsTotal counts warnings attached to walk responses.
	WalkWarningsTotal metric.Int64Counter

	// --- Evaluator Metrics ---

	// EvaluatorTimeoutsTotal counts sandbox timeouts.
	EvaluatorTimeoutsTotal metric.Int64Counter

	// --- Store Metrics ---

	// GraphQueriesTotal counts graph-store queries by status.
	GraphQueriesTotal metric.Int64Counter

	// GraphQueryDuration records graph query duration in seconds.
	GraphQueryDuration metric.Float64Histogram

	// AnswersRecordedTotal counts answers written via the answer endpoint.
	AnswersRecordedTotal metric.Int64Counter

	// --- Error Metrics ---

	// ErrorsTotal counts total errors by kind and component.
	ErrorsTotal metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
//
// Description:
//
//	Registers all pre-defined metrics with the provided meter.
//	Returns an error if any metric registration fails.
//
// Inputs:
//
//	meter - The OTel meter to use for metric registration.
//
// Outputs:
//
//	*Metrics - The metrics instance with all instruments initialized.
//	error - Non-nil if metric registration fails.
//
// Thread Safety: Safe for concurrent use after creation.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	// --- HTTP Metrics ---
	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"flow_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"flow_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration: %w", err)
	}

	m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"flow_http_active_requests",
		metric.WithDescription("Currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_active_requests: %w", err)
	}

	// --- Walk Metrics ---
	m.WalksTotal, err = meter.Int64Counter(
		"flow_walks_total",
		metric.WithDescription("Total traversal walks by outcome"),
		metric.WithUnit("{walk}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create walks_total: %w", err)
	}

	m.WalkDuration, err = meter.Float64Histogram(
		"flow_walk_duration_seconds",
		metric.WithDescription("Walk duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("create walk_duration: %w", err)
	}

	m.WalkWarningsTotal, err = meter.Int64Counter(
		"flow_walk_warnings_total",
		metric.WithDescription("Warnings attached to walk responses"),
		metric.WithUnit("{warning}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create walk_warnings_total: %w", err)
	}

	// --- Evaluator Metrics ---
	m.EvaluatorTimeoutsTotal, err = meter.Int64Counter(
		"flow_evaluator_timeouts_total",
		metric.WithDescription("Sandbox evaluations that exceeded their deadline"),
		metric.WithUnit("{timeout}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create evaluator_timeouts_total: %w", err)
	}

	// --- Store Metrics ---
	m.GraphQueriesTotal, err = meter.Int64Counter(
		"flow_graph_queries_total",
		metric.WithDescription("Total graph queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create graph_queries_total: %w", err)
	}

	m.GraphQueryDuration, err = meter.Float64Histogram(
		"flow_graph_query_duration_seconds",
		metric.WithDescription("Graph query duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("create graph_query_duration: %w", err)
	}

	m.AnswersRecordedTotal, err = meter.Int64Counter(
		"flow_answers_recorded_total",
		metric.WithDescription("Answers persisted via the answer endpoint"),
		metric.WithUnit("{answer}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create answers_recorded_total: %w", err)
	}

	// --- Error Metrics ---
	m.ErrorsTotal, err = meter.Int64Counter(
		"flow_errors_total",
		metric.WithDescription("Total errors by kind and component"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create errors_total: %w", err)
	}

	return m, nil
}
