package postgres

// migrations are applied in slice order; each entry runs at most once.
var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "001_create_workflows_tables",
		sql: `
			CREATE TABLE IF NOT EXISTS handoff_workflows (
				id              TEXT PRIMARY KEY,
				name            TEXT NOT NULL,
				description     TEXT NOT NULL DEFAULT '',
				status          TEXT NOT NULL DEFAULT 'active',
				current_task_id TEXT,
				metadata        JSONB NOT NULL DEFAULT '{}',
				created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS handoff_tasks (
				id              TEXT PRIMARY KEY,
				workflow_id     TEXT NOT NULL REFERENCES handoff_workflows(id) ON DELETE CASCADE DEFERRABLE INITIALLY DEFERRED,
				position        INTEGER NOT NULL,
				name            TEXT NOT NULL,
				description     TEXT NOT NULL DEFAULT '',
				state           TEXT NOT NULL DEFAULT 'pending',
				assigned_agent  TEXT NOT NULL DEFAULT '',
				dependencies    JSONB NOT NULL DEFAULT '[]',
				metadata        JSONB NOT NULL DEFAULT '{}',
				created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE(workflow_id, position)
			);

			CREATE INDEX IF NOT EXISTS idx_handoff_workflows_status
				ON handoff_workflows (status);

			CREATE INDEX IF NOT EXISTS idx_handoff_tasks_workflow
				ON handoff_tasks (workflow_id, position);

			CREATE INDEX IF NOT EXISTS idx_handoff_tasks_agent
				ON handoff_tasks (assigned_agent)
				WHERE assigned_agent != '';
		`,
	},
	{
		name: "002_create_transitions_table",
		sql: `
			CREATE TABLE IF NOT EXISTS handoff_transitions (
				seq             BIGSERIAL PRIMARY KEY,
				id              TEXT NOT NULL UNIQUE,
				workflow_id     TEXT NOT NULL,
				task_id         TEXT NOT NULL,
				from_state      TEXT NOT NULL DEFAULT '',
				to_state        TEXT NOT NULL,
				agent_id        TEXT NOT NULL DEFAULT '',
				reason          TEXT NOT NULL DEFAULT '',
				created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_handoff_transitions_workflow
				ON handoff_transitions (workflow_id, seq);

			CREATE INDEX IF NOT EXISTS idx_handoff_transitions_task
				ON handoff_transitions (task_id, seq);
		`,
	},
	{
		name: "003_create_agents_table",
		sql: `
			CREATE TABLE IF NOT EXISTS handoff_agents (
				id              TEXT PRIMARY KEY,
				name            TEXT NOT NULL,
				status          TEXT NOT NULL DEFAULT 'offline',
				connected_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				last_seen       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				metadata        JSONB NOT NULL DEFAULT '{}',
				created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_handoff_agents_stale
				ON handoff_agents (last_seen)
				WHERE status = 'online';
		`,
	},
}
