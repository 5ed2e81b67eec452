// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package config provides IdeaForge's configuration loading.

# Overview

config loads the engine's configuration tree from defaults, an optional
YAML file, and environment variable overrides, in that priority order.

# Core types

  - Config: the top-level aggregate, covering Server, Database, Redis,
    Providers (per-LLM-provider credentials and limits), Engine (context
    token ceiling, default concurrency cap, review-wait default),
    Instructions (template directory and reload behavior), Log, Telemetry
  - Loader: builder-pattern loader chaining a config file path, an env
    prefix, and custom validators

# Usage

	cfg, err := config.NewLoader().
		WithConfigPath("config.yaml").
		WithEnvPrefix("IDEAFORGE").
		Load()
*/
package config
