// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads flow engine configuration.
//
// Precedence, lowest to highest: built-in defaults, an optional YAML
// file, then environment variables. A .env file in the working directory
// is loaded best-effort before environment lookup, which keeps local
// development credentials out of shell profiles.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full flow engine configuration.
type Config struct {
	// Server holds HTTP listener settings.
	Server ServerConfig `yaml:"server"`

	// Neo4j holds graph store connection settings.
	Neo4j Neo4jConfig `yaml:"neo4j"`

	// Log holds logging settings.
	Log LogConfig `yaml:"log"`

	// Capture holds walk-capture settings.
	Capture CaptureConfig `yaml:"capture"`

	// Engine holds traversal tuning knobs.
	Engine EngineConfig `yaml:"engine"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	// Port is the API listener port.
	Port int `yaml:"port"`

	// MetricsPort is the Prometheus scrape listener port.
	MetricsPort int `yaml:"metrics_port"`

	// ShutdownGrace bounds graceful shutdown.
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// Neo4jConfig holds graph store connection settings.
type Neo4jConfig struct {
	URI        string `yaml:"uri"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Database   string `yaml:"database"`
	MaxRetries int    `yaml:"max_retries"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Dir enables file logging when set.
	Dir string `yaml:"dir"`

	// JSON switches stderr output to JSON.
	JSON bool `yaml:"json"`
}

// CaptureConfig holds walk-capture settings.
type CaptureConfig struct {
	// Dir is the BadgerDB directory. Empty disables capture persistence
	// (an in-memory store is used instead).
	Dir string `yaml:"dir"`

	// TTL is how long captured walks are retrievable.
	TTL time.Duration `yaml:"ttl"`
}

// EngineConfig holds traversal tuning knobs.
type EngineConfig struct {
	// ContainerRelation names the history relation for the answered
	// checker.
	ContainerRelation string `yaml:"container_relation"`

	// ContainerLabel names the label carried by container nodes.
	ContainerLabel string `yaml:"container_label"`

	// MaxDepth bounds traversal recursion.
	MaxDepth int `yaml:"max_depth"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:          8095,
			MetricsPort:   9090,
			ShutdownGrace: 10 * time.Second,
		},
		Neo4j: Neo4jConfig{
			URI:        "neo4j://localhost:7687",
			Username:   "neo4j",
			MaxRetries: 3,
		},
		Log: LogConfig{
			Level: "info",
		},
		Capture: CaptureConfig{
			TTL: 24 * time.Hour,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty or missing), then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Optional file.
		default:
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	// Best-effort: local development keeps credentials in .env.
	_ = godotenv.Load()
	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Neo4j.URI, "NEO4J_URI")
	setString(&c.Neo4j.Username, "NEO4J_USER")
	setString(&c.Neo4j.Password, "NEO4J_PASSWORD")
	setString(&c.Neo4j.Database, "NEO4J_DATABASE")
	setInt(&c.Neo4j.MaxRetries, "NEO4J_MAX_RETRIES")

	setInt(&c.Server.Port, "FLOW_PORT")
	setInt(&c.Server.MetricsPort, "FLOW_METRICS_PORT")

	setString(&c.Log.Level, "FLOW_LOG_LEVEL")
	setString(&c.Log.Dir, "FLOW_LOG_DIR")
	setBool(&c.Log.JSON, "FLOW_LOG_JSON")

	setString(&c.Capture.Dir, "FLOW_CAPTURE_DIR")
	setString(&c.Engine.ContainerRelation, "FLOW_CONTAINER_RELATION")
	setString(&c.Engine.ContainerLabel, "FLOW_CONTAINER_LABEL")
	setInt(&c.Engine.MaxDepth, "FLOW_MAX_DEPTH")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
