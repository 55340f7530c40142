// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry provides OpenTelemetry setup for the flow engine:
// tracer and meter provider initialization, pre-defined metrics with the
// "flow_" prefix, span helpers, and Gin middleware for request metrics.
//
// Initialize once at startup:
//
//	shutdown, err := telemetry.Init(ctx, telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer shutdown(context.Background())
//
// After Init, otel.Tracer() and otel.Meter() work anywhere in the
// process, and MetricsHandler() serves the Prometheus scrape endpoint
// when the prometheus exporter is selected.
package telemetry
