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

CREATE TABLE IF NOT EXISTS admin_tasks (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id     TEXT NOT NULL,
	task_type   TEXT NOT NULL CHECK(task_type IN ('subscription', 'moderation', 'manual')),
	made_on     DATETIME NOT NULL,
	user_email  TEXT NOT NULL,
	list_id     TEXT NOT NULL DEFAULT '',
	priority    INTEGER NOT NULL DEFAULT -2,
	msg_subject TEXT NOT NULL DEFAULT '',
	msg_data    TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_admin_tasks_type_task_id
	ON admin_tasks(task_type, task_id);
CREATE INDEX IF NOT EXISTS idx_admin_tasks_task_id ON admin_tasks(task_id);
CREATE INDEX IF NOT EXISTS idx_admin_tasks_list_id ON admin_tasks(list_id);
CREATE INDEX IF NOT EXISTS idx_admin_tasks_priority ON admin_tasks(priority);

CREATE TABLE IF NOT EXISTS task_calendar (
	on_date    TEXT NOT NULL,
	list_id    TEXT NOT NULL,
	log_type   TEXT NOT NULL CHECK(log_type IN ('subscription', 'moderation')),
	log_number INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (on_date, list_id, log_type)
);

CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY,
	user_email TEXT NOT NULL,
	event_op   TEXT NOT NULL,
	event      TEXT NOT NULL,
	list_id    TEXT NOT NULL DEFAULT '',
	made_on    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_made_on ON events(made_on);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
