// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command flowengine starts the flow engine API server.
//
// The flow engine walks questionnaire graphs stored in Neo4j and
// returns the next question to ask an applicant, with:
//   - Conditional edges (askWhen snippets in Cypher or sandbox syntax)
//   - Lazily evaluated, memoized walk variables
//   - Answered-question detection, including container-mediated answers
//   - Server-side actions (node creation, section jumps, completion)
//
// Usage:
//
//	go run ./cmd/flowengine
//	go run ./cmd/flowengine -port 9001 -config flow.yaml
//
// Configuration precedence: defaults, YAML file, environment (see the
// config package). The graph connection is taken from NEO4J_URI,
// NEO4J_USER, and NEO4J_PASSWORD when not set in the file.
//
// Example requests:
//
//	# Walk a section to the next question
//	curl -X POST http://localhost:8095/v1/api/next_question_flow \
//	  -H "Content-Type: application/json" \
//	  -d '{"sectionId": "employment", "applicantId": "a-17", "applicationId": "app-3"}'
//
//	# Record an answer
//	curl -X POST http://localhost:8095/v1/api/answer \
//	  -H "Content-Type: application/json" \
//	  -d '{"applicant_id": "a-17", "application_id": "app-3", "question_id": "Q1", "value": "yes"}'
//
//	# Inspect a captured walk
//	curl http://localhost:8095/v1/api/walks/<traceId>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/flowgraph/pkg/logging"
	"github.com/AleutianAI/flowgraph/services/flow"
	"github.com/AleutianAI/flowgraph/services/flow/capture"
	"github.com/AleutianAI/flowgraph/services/flow/config"
	"github.com/AleutianAI/flowgraph/services/flow/engine"
	"github.com/AleutianAI/flowgraph/services/flow/graph"
	"github.com/AleutianAI/flowgraph/services/flow/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	port := flag.Int("port", 0, "Override the API listener port")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	if err := run(*configPath, *port, *debug); err != nil {
		fmt.Fprintf(os.Stderr, "flowengine: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, portOverride int, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if portOverride > 0 {
		cfg.Server.Port = portOverride
	}
	if debug {
		cfg.Log.Level = "debug"
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Log.Level),
		LogDir:  cfg.Log.Dir,
		Service: "flowengine",
		JSON:    cfg.Log.JSON,
	})
	defer logger.Close()
	slogger := logger.Slog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.DefaultConfig())
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slogger.Warn("telemetry shutdown", "error", err)
		}
	}()

	metrics, err := telemetry.NewMetrics(otel.Meter("flowgraph/services/flow"))
	if err != nil {
		return fmt.Errorf("creating metrics: %w", err)
	}

	gatewayCfg := graph.DefaultConfig()
	gatewayCfg.URI = cfg.Neo4j.URI
	gatewayCfg.Username = cfg.Neo4j.Username
	gatewayCfg.Password = cfg.Neo4j.Password
	gatewayCfg.Database = cfg.Neo4j.Database
	gatewayCfg.MaxRetries = cfg.Neo4j.MaxRetries
	gateway, err := graph.NewGateway(ctx, gatewayCfg, slogger)
	if err != nil {
		return fmt.Errorf("connecting to graph store: %w", err)
	}
	defer gateway.Close(context.Background())

	captureCfg := capture.InMemoryConfig()
	if cfg.Capture.Dir != "" {
		captureCfg = capture.DefaultConfig(cfg.Capture.Dir)
	}
	captureCfg.TTL = cfg.Capture.TTL
	captureCfg.Logger = slogger
	captures, err := capture.Open(captureCfg)
	if err != nil {
		return fmt.Errorf("opening capture store: %w", err)
	}
	defer captures.Close()

	runner := flow.InstrumentRunner(gateway, metrics)
	eng := engine.New(runner, slogger, engine.Config{
		ContainerRelation: cfg.Engine.ContainerRelation,
		ContainerLabel:    cfg.Engine.ContainerLabel,
		MaxDepth:          cfg.Engine.MaxDepth,
	})
	answers := flow.NewAnswerWriter(runner, cfg.Engine.ContainerRelation, cfg.Engine.ContainerLabel)
	svc := flow.NewService(eng, answers, captures, metrics, slogger)
	handlers := flow.NewHandlers(svc, slogger)

	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("flowengine"))
	router.Use(telemetry.MetricsMiddleware(metrics))
	flow.RegisterRoutes(router.Group("/v1/api"), handlers)

	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var metricsServer *http.Server
	if h := telemetry.MetricsHandler(); h != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", h)
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slogger.Info("flow engine listening", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if metricsServer != nil {
		g.Go(func() error {
			slogger.Info("metrics listening", "port", cfg.Server.MetricsPort)
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slogger.Info("shutting down", "grace", cfg.Server.ShutdownGrace)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
		defer cancel()
		if metricsServer != nil {
			_ = metricsServer.Shutdown(shutdownCtx)
		}
		return apiServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
