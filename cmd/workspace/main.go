// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command workspace starts the DevGrid collaborative workspace HTTP server.
//
// Configuration comes from environment variables:
//
//   - WORKSPACE_PORT: HTTP server port (default: 12300)
//   - WORKSPACE_DATA_DIR: Badger store directory (default: ./data/devgrid)
//   - WORKSPACE_JWT_SECRET: HMAC key for bearer token verification (required)
//   - WORKSPACE_LOG_DIR: directory for JSON log files (optional)
//   - OPENAI_API_KEY: model backend credentials
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (optional)
//   - GIN_MODE: debug, release, or test
//
// # Usage
//
//	go build -o workspace ./cmd/workspace
//	WORKSPACE_JWT_SECRET=... ./workspace serve
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/devgrid/devgrid/pkg/logging"
	"github.com/devgrid/devgrid/services/workspace"
)

var (
	rootCmd = &cobra.Command{
		Use:   "workspace",
		Short: "DevGrid collaborative workspace service",
		Long: `The workspace service hosts per-project realtime rooms, the shared
file tree, AI response reconciliation, and durable project storage.`,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the workspace HTTP server",
		Run:   runServe,
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  os.Getenv("WORKSPACE_LOG_DIR"),
		Service: "workspace",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := workspace.Config{
		Port:          getEnvInt("WORKSPACE_PORT", 12300),
		DataDir:       getEnvString("WORKSPACE_DATA_DIR", "./data/devgrid"),
		JWTSecret:     os.Getenv("WORKSPACE_JWT_SECRET"),
		OTelEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		EnableTracing: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "",
		EnableMetrics: true,
		GinMode:       os.Getenv("GIN_MODE"),
	}

	slog.Info("Starting workspace",
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"tracing", cfg.EnableTracing,
	)

	svc, err := workspace.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create workspace service: %v", err)
	}

	if err := svc.Run(); err != nil {
		log.Fatalf("Workspace error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
