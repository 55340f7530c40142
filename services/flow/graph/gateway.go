// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph wraps the Neo4j driver with retry, decoding, and the
// row-cap discipline the traversal engine depends on.
//
// All Cypher the engine executes flows through a Gateway. The gateway
// owns three concerns the engine must never re-implement per call site:
//
//   - Transient-failure retry with exponential backoff and jitter
//   - Decoding driver values into engine types (Node, Relationship, Path)
//   - Enforcing the result row cap on evaluator-originated queries
//
// The Runner interface is what the engine depends on; tests supply a
// scripted fake instead of a live store.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ErrRowCapExceeded is returned by RunCapped when a statement yields more
// rows than the configured cap. Evaluator snippets that trip this are
// treated as authoring errors, not truncated.
var ErrRowCapExceeded = errors.New("graph: result row cap exceeded")

// ErrUnavailable is returned when the store cannot be reached after all
// retry attempts are exhausted.
var ErrUnavailable = errors.New("graph: store unavailable")

// Runner executes Cypher statements and returns decoded records.
//
// Gateway is the production implementation. The engine packages accept a
// Runner so traversal logic can be tested against scripted results.
type Runner interface {
	// Run executes a statement and returns all result rows.
	Run(ctx context.Context, query string, params map[string]any) ([]Record, error)

	// RunCapped executes a statement and fails with ErrRowCapExceeded if
	// the result exceeds max rows. A max of 0 means the gateway default.
	RunCapped(ctx context.Context, query string, params map[string]any, max int) ([]Record, error)
}

// Config holds gateway connection and retry settings.
type Config struct {
	// URI is the bolt/neo4j connection URI, e.g. "neo4j://localhost:7687".
	URI string

	// Username and Password authenticate against the store.
	Username string
	Password string

	// Database selects the target database. Empty means the server default.
	Database string

	// MaxRetries is the number of attempts for retryable failures.
	MaxRetries int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff growth.
	MaxBackoff time.Duration

	// RowCap is the default row limit for RunCapped.
	RowCap int
}

// DefaultConfig returns production defaults: 3 attempts, 200ms initial
// backoff doubling up to 2s, and a 100-row cap.
func DefaultConfig() Config {
	return Config{
		URI:            "neo4j://localhost:7687",
		MaxRetries:     3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		RowCap:         100,
	}
}

// withDefaults fills zero-valued retry settings from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = def.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = def.MaxBackoff
	}
	if c.RowCap <= 0 {
		c.RowCap = def.RowCap
	}
	return c
}

var _ Runner = (*Gateway)(nil)

// Gateway is the production Runner backed by the Neo4j driver.
type Gateway struct {
	driver neo4j.DriverWithContext
	config Config
	logger *slog.Logger
}

// NewGateway connects to the store and verifies connectivity.
//
// The returned gateway must be closed with Close when the service shuts
// down. Connectivity verification is part of construction so a
// misconfigured URI fails at startup, not on the first walk.
func NewGateway(ctx context.Context, config Config, logger *slog.Logger) (*Gateway, error) {
	config = config.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	driver, err := neo4j.NewDriverWithContext(
		config.URI,
		neo4j.BasicAuth(config.Username, config.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("creating driver for %s: %w", config.URI, err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verifying connectivity to %s: %w", config.URI, err)
	}

	logger.Info("graph gateway connected",
		"uri", config.URI,
		"database", config.Database,
		"max_retries", config.MaxRetries)

	return &Gateway{driver: driver, config: config, logger: logger}, nil
}

// Run executes a statement with retry and returns all decoded rows.
func (g *Gateway) Run(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	return g.run(ctx, query, params, 0)
}

// RunCapped executes a statement with retry and enforces the row cap.
//
// The cap is checked while streaming: the query aborts as soon as max+1
// rows have been seen, so a runaway MATCH does not materialize in memory.
func (g *Gateway) RunCapped(ctx context.Context, query string, params map[string]any, max int) ([]Record, error) {
	if max <= 0 {
		max = g.config.RowCap
	}
	return g.run(ctx, query, params, max)
}

// Close releases the underlying driver.
func (g *Gateway) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

// run executes with retry. A max of 0 disables the row cap.
func (g *Gateway) run(ctx context.Context, query string, params map[string]any, max int) ([]Record, error) {
	params = FilterParams(params)

	var lastErr error
	for attempt := 0; attempt < g.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := g.backoff(attempt)
			g.logger.Warn("retrying graph query",
				"attempt", attempt+1,
				"max_retries", g.config.MaxRetries,
				"delay", delay,
				"error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		records, err := g.runOnce(ctx, query, params, max)
		if err == nil {
			return records, nil
		}
		// Cap violations and context cancellation are never retried.
		if errors.Is(err, ErrRowCapExceeded) || errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if !neo4j.IsRetryable(err) && !isTransient(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %d attempts failed: %v",
		ErrUnavailable, g.config.MaxRetries, lastErr)
}

// runOnce executes a single attempt in a fresh session.
func (g *Gateway) runOnce(ctx context.Context, query string, params map[string]any, max int) ([]Record, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: g.config.Database,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}

	var records []Record
	for result.Next(ctx) {
		if max > 0 && len(records) >= max {
			return nil, fmt.Errorf("%w: more than %d rows", ErrRowCapExceeded, max)
		}
		records = append(records, decodeRecord(result.Record()))
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// backoff computes the delay before retry attempt n (1-based), doubling
// from InitialBackoff up to MaxBackoff with ±25% jitter.
func (g *Gateway) backoff(attempt int) time.Duration {
	delay := g.config.InitialBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= g.config.MaxBackoff {
			delay = g.config.MaxBackoff
			break
		}
	}
	// Jitter spreads concurrent walkers retrying against the same store.
	jitter := 1 + (rand.Float64()-0.5)*0.5
	delay = time.Duration(float64(delay) * jitter)
	if delay > g.config.MaxBackoff {
		delay = g.config.MaxBackoff
	}
	return delay
}

// isTransient recognizes connection-shaped failures the driver does not
// classify as retryable but that a short backoff usually clears.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"pool closed",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
