// Copyright 2024 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by an MIT license that can be
// found in the LICENSE file.

/*
Package migration provides database schema migration management for
PostgreSQL, built on golang-migrate.

# Overview

This package embeds SQL migration files via embed.FS and drives them
with the golang-migrate engine for versioned schema changes: forward
migration, rollback, step execution, jumping to a specific version, and
forcing a version number.

# Core types

  - Migrator: the migration interface — Up/Down/DownAll/Steps/Goto/
    Force/Version/Status/Info/Close.
  - DefaultMigrator: the default implementation, wrapping a
    golang-migrate instance and its database connection.
  - Config: migration configuration — connection URL, migrations table
    name, lock timeout.
  - MigrationStatus / MigrationInfo: migration state and summary.
  - CLI: a terminal-facing wrapper around Migrator with formatted output.

# Capabilities

  - Factory functions: NewMigratorFromConfig / NewMigratorFromDatabaseConfig /
    NewMigratorFromURL build a migrator from different configuration sources.
  - CLI integration: RunUp/RunDown/RunStatus/RunInfo and friends.
  - BuildDatabaseURL assembles a postgres:// connection string.
*/
package migration
