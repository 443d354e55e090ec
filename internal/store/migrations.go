package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS connections (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	provider         TEXT NOT NULL,
	calendar_id      TEXT NOT NULL,
	access_token     TEXT NOT NULL DEFAULT '',
	refresh_token    TEXT,
	token_expires_at DATETIME NOT NULL,
	sync_token       TEXT,
	is_active        INTEGER NOT NULL DEFAULT 1,
	is_export_target INTEGER NOT NULL DEFAULT 0,
	last_sync_at     DATETIME,
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL,
	UNIQUE (user_id, provider, calendar_id)
);

CREATE TABLE IF NOT EXISTS tasks (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'backlog',
	scheduled_date  DATETIME,
	duration_min    INTEGER,
	completed_at    DATETIME,
	deadline_type   TEXT,
	deadline_set_at DATETIME,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	start_time      DATETIME NOT NULL,
	end_time        DATETIME NOT NULL,
	is_all_day      INTEGER NOT NULL DEFAULT 0,
	color           TEXT NOT NULL DEFAULT '',
	source          TEXT NOT NULL DEFAULT 'miniorg',
	external_id     TEXT,
	connection_id   TEXT REFERENCES connections(id) ON DELETE CASCADE,
	task_id         TEXT REFERENCES tasks(id) ON DELETE SET NULL,
	response_status TEXT,
	sync_status     TEXT NOT NULL DEFAULT 'unsynced',
	sync_error      TEXT,
	last_synced_at  DATETIME,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_events_external
	ON events(external_id, connection_id)
	WHERE external_id IS NOT NULL AND connection_id IS NOT NULL;

CREATE INDEX IF NOT EXISTS idx_events_user_start ON events(user_id, start_time);
CREATE INDEX IF NOT EXISTS idx_events_task_id ON events(task_id);
CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_connections_user_id ON connections(user_id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_events_connection_id ON events(connection_id);
CREATE INDEX IF NOT EXISTS idx_tasks_scheduled_date ON tasks(scheduled_date);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
