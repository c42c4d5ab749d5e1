package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the handoff sqlite store.
var Migrations = migrate.NewGroup("handoff")

func init() {
	Migrations.MustRegister(
		// 001: Create workflows and tasks tables.
		&migrate.Migration{
			Name:    "create_workflows_tables",
			Version: "20240101120000",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
					CREATE TABLE IF NOT EXISTS handoff_workflows (
						id              TEXT PRIMARY KEY,
						name            TEXT NOT NULL,
						description     TEXT NOT NULL DEFAULT '',
						status          TEXT NOT NULL DEFAULT 'active',
						current_task_id TEXT,
						metadata        TEXT NOT NULL DEFAULT '{}',
						created_at      TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
						updated_at      TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
					)`)
				if err != nil {
					return err
				}

				_, err = exec.Exec(ctx, `
					CREATE TABLE IF NOT EXISTS handoff_tasks (
						id              TEXT PRIMARY KEY,
						workflow_id     TEXT NOT NULL,
						position        INTEGER NOT NULL,
						name            TEXT NOT NULL,
						description     TEXT NOT NULL DEFAULT '',
						state           TEXT NOT NULL DEFAULT 'pending',
						assigned_agent  TEXT NOT NULL DEFAULT '',
						dependencies    TEXT NOT NULL DEFAULT '[]',
						metadata        TEXT NOT NULL DEFAULT '{}',
						created_at      TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
						updated_at      TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
						UNIQUE(workflow_id, position)
					)`)
				if err != nil {
					return err
				}

				_, err = exec.Exec(ctx, `
					CREATE INDEX IF NOT EXISTS idx_handoff_workflows_status
						ON handoff_workflows (status)`)
				if err != nil {
					return err
				}

				_, err = exec.Exec(ctx, `
					CREATE INDEX IF NOT EXISTS idx_handoff_tasks_workflow
						ON handoff_tasks (workflow_id, position)`)
				if err != nil {
					return err
				}

				_, err = exec.Exec(ctx, `
					CREATE INDEX IF NOT EXISTS idx_handoff_tasks_agent
						ON handoff_tasks (assigned_agent)
						WHERE assigned_agent != ''`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS handoff_tasks`)
				if err != nil {
					return err
				}
				_, err = exec.Exec(ctx, `DROP TABLE IF EXISTS handoff_workflows`)
				return err
			},
		},

		// 002: Create transitions table.
		&migrate.Migration{
			Name:    "create_transitions_table",
			Version: "20240101120001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
					CREATE TABLE IF NOT EXISTS handoff_transitions (
						id              TEXT PRIMARY KEY,
						workflow_id     TEXT NOT NULL,
						task_id         TEXT NOT NULL,
						from_state      TEXT NOT NULL DEFAULT '',
						to_state        TEXT NOT NULL,
						agent_id        TEXT NOT NULL DEFAULT '',
						reason          TEXT NOT NULL DEFAULT '',
						created_at      TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
						updated_at      TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
					)`)
				if err != nil {
					return err
				}

				_, err = exec.Exec(ctx, `
					CREATE INDEX IF NOT EXISTS idx_handoff_transitions_workflow
						ON handoff_transitions (workflow_id)`)
				if err != nil {
					return err
				}

				_, err = exec.Exec(ctx, `
					CREATE INDEX IF NOT EXISTS idx_handoff_transitions_task
						ON handoff_transitions (task_id)`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS handoff_transitions`)
				return err
			},
		},

		// 003: Create agents table.
		&migrate.Migration{
			Name:    "create_agents_table",
			Version: "20240101120002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
					CREATE TABLE IF NOT EXISTS handoff_agents (
						id              TEXT PRIMARY KEY,
						name            TEXT NOT NULL,
						status          TEXT NOT NULL DEFAULT 'offline',
						connected_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
						last_seen       TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
						metadata        TEXT NOT NULL DEFAULT '{}',
						created_at      TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
						updated_at      TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
					)`)
				if err != nil {
					return err
				}

				_, err = exec.Exec(ctx, `
					CREATE INDEX IF NOT EXISTS idx_handoff_agents_stale
						ON handoff_agents (last_seen)
						WHERE status = 'online'`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS handoff_agents`)
				return err
			},
		},
	)
}
