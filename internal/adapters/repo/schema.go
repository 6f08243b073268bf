package repo

// Схема одинакова для Postgres и SQLite, отличаются только типы колонок.

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS calendar_events (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	event_date DATE NOT NULL,
	start_minute INTEGER NOT NULL,
	duration_minutes INTEGER NOT NULL DEFAULT 60,
	attendees TEXT[] NOT NULL DEFAULT '{}',
	status TEXT NOT NULL DEFAULT 'scheduled',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS calendar_events_date_idx ON calendar_events (event_date)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
	id BIGSERIAL PRIMARY KEY,
	ts TIMESTAMPTZ NOT NULL DEFAULT now(),
	agent TEXT NOT NULL,
	action TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT ''
)`,
	`CREATE TABLE IF NOT EXISTS slack_messages (
	id TEXT PRIMARY KEY,
	channel TEXT NOT NULL,
	message TEXT NOT NULL,
	action TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS business_metrics (
	id BIGSERIAL PRIMARY KEY,
	event TEXT NOT NULL,
	metadata JSONB,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	deadline TEXT NOT NULL DEFAULT '',
	priority TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'Pending',
	reminder TEXT NOT NULL DEFAULT '',
	source_text TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	autonomous BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
)`,
	`CREATE INDEX IF NOT EXISTS tasks_created_idx ON tasks (created_at DESC)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS calendar_events (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	event_date TEXT NOT NULL,
	start_minute INTEGER NOT NULL,
	duration_minutes INTEGER NOT NULL DEFAULT 60,
	attendees TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL DEFAULT 'scheduled',
	created_at TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS calendar_events_date_idx ON calendar_events (event_date)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts TEXT NOT NULL,
	agent TEXT NOT NULL,
	action TEXT NOT NULL,
	details TEXT NOT NULL DEFAULT ''
)`,
	`CREATE TABLE IF NOT EXISTS slack_messages (
	id TEXT PRIMARY KEY,
	channel TEXT NOT NULL,
	message TEXT NOT NULL,
	action TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	created_at TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS business_metrics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event TEXT NOT NULL,
	metadata TEXT,
	occurred_at TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	deadline TEXT NOT NULL DEFAULT '',
	priority TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'Pending',
	reminder TEXT NOT NULL DEFAULT '',
	source_text TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	autonomous INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	completed_at TEXT
)`,
	`CREATE INDEX IF NOT EXISTS tasks_created_idx ON tasks (created_at)`,
}
