// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main provides the IdeaForge engine's executable entry point.

# Overview

cmd/ideaforge is the engine's binary: an HTTP API serving the four
ideation stages (Requirements, Planning, Stories, Prompt) behind their
review gates, plus database migration and version subcommands. The
server loads YAML + environment configuration, wires the Provider
Client Pool, Instruction Store, Review Registry, Artifact Store,
Context Assembler, and Stage Services, and serves them behind a single
HTTP mux with structured logging (zap) and Prometheus metrics.

# Core types

  - Server      — owns the HTTP server and every wired component,
    managing startup and graceful shutdown
  - Middleware   — HTTP middleware signature func(http.Handler) http.Handler
  - responseWriter — wraps http.ResponseWriter to capture status code

# Capabilities

  - Subcommands: serve (start the server), migrate (database schema
    migrations), version, health
  - Middleware chain: Recovery, RequestID, SecurityHeaders,
    RequestLogger, MetricsMiddleware, CORS, RateLimiter (per IP),
    APIKeyAuth (X-API-Key header; the server does not accept the key as
    a query parameter)
  - Metrics: /metrics exposed on the same mux as the API, guarded by
    the same middleware skip-list as the health endpoints
  - Graceful shutdown: signal wait -> HTTP server shutdown -> telemetry
    shutdown
  - Build metadata: Version, BuildTime, GitCommit injected via ldflags
*/
package main
