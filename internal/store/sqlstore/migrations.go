package sqlstore

import (
	"context"
	"fmt"
)

// Migrate runs database migrations. Every statement is idempotent and
// portable across Postgres and SQLite
func (d *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationOwners,
		migrationSessions,
		migrationClients,
		migrationProfitability,
		migrationTasks,
		migrationTimers,
		migrationObjectives,
	}

	for i, m := range migrations {
		if _, err := d.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

const migrationOwners = `
CREATE TABLE IF NOT EXISTS owners (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at TEXT NOT NULL
);
`

const migrationSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    token TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    expires_at TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(owner_id);
`

const migrationClients = `
CREATE TABLE IF NOT EXISTS clients (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    name TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'active',
    objectives_count BIGINT NOT NULL DEFAULT 0,
    objectives_completed BIGINT NOT NULL DEFAULT 0,
    objectives_pending BIGINT NOT NULL DEFAULT 0,
    tasks_completed BIGINT NOT NULL DEFAULT 0,
    tasks_in_progress BIGINT NOT NULL DEFAULT 0,
    tasks_pending BIGINT NOT NULL DEFAULT 0,
    last_activity TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_clients_owner ON clients(owner_id);
`

const migrationProfitability = `
CREATE TABLE IF NOT EXISTS profitability (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    client_id TEXT NOT NULL,
    hourly_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    target_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
    actual_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
    revenue DOUBLE PRECISION NOT NULL DEFAULT 0,
    cost DOUBLE PRECISION NOT NULL DEFAULT 0,
    profit DOUBLE PRECISION NOT NULL DEFAULT 0,
    profitability DOUBLE PRECISION NOT NULL DEFAULT 0,
    remaining_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_profitability_owner_client ON profitability(owner_id, client_id);
`

const migrationTasks = `
CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    client_id TEXT NOT NULL,
    title TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    actual_minutes BIGINT NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_owner_client ON tasks(owner_id, client_id);
`

const migrationTimers = `
CREATE TABLE IF NOT EXISTS timers (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    client_id TEXT,
    task_id TEXT,
    billable BOOLEAN NOT NULL DEFAULT FALSE,
    description TEXT NOT NULL DEFAULT '',
    started_at TEXT NOT NULL,
    ended_at TEXT,
    duration BIGINT,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_timers_owner ON timers(owner_id);
CREATE INDEX IF NOT EXISTS idx_timers_client ON timers(owner_id, client_id);
`

const migrationObjectives = `
CREATE TABLE IF NOT EXISTS objectives (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    client_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    target_value DOUBLE PRECISION NOT NULL DEFAULT 0,
    current_value DOUBLE PRECISION NOT NULL DEFAULT 0,
    unit TEXT NOT NULL DEFAULT '',
    is_completed BOOLEAN NOT NULL DEFAULT FALSE,
    progress INTEGER,
    due_date TEXT,
    category TEXT NOT NULL DEFAULT '',
    completed_at TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_objectives_owner_client ON objectives(owner_id, client_id);
`
