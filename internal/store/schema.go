package store

// schema is applied idempotently on every Open. Table layout follows
// §6 of the specification: tasks, task_labels, task_deps, git_repos
// (slug catalog), task_git_refs, and an FTS5 virtual table mirroring
// the task text columns.
const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	type         TEXT NOT NULL DEFAULT 'task',
	status       TEXT NOT NULL DEFAULT 'open',
	priority     INTEGER NOT NULL DEFAULT 2 CHECK (priority BETWEEN 0 AND 4),
	description  TEXT NOT NULL DEFAULT '',
	acceptance   TEXT NOT NULL DEFAULT '',
	assignee     TEXT NOT NULL DEFAULT '',
	parent       TEXT,
	spec_id      TEXT NOT NULL DEFAULT '',
	source_repo  TEXT NOT NULL DEFAULT '',
	custom       TEXT NOT NULL DEFAULT '{}',
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL,
	closed_at    DATETIME,
	CHECK (
		(status = 'closed' AND closed_at IS NOT NULL) OR
		(status != 'closed' AND closed_at IS NULL)
	)
);

CREATE INDEX IF NOT EXISTS idx_tasks_status     ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_updated_at ON tasks(updated_at);
CREATE INDEX IF NOT EXISTS idx_tasks_spec_id    ON tasks(spec_id);
CREATE INDEX IF NOT EXISTS idx_tasks_parent     ON tasks(parent);

CREATE TABLE IF NOT EXISTS task_labels (
	task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	label   TEXT NOT NULL,
	PRIMARY KEY (task_id, label)
);

CREATE INDEX IF NOT EXISTS idx_task_labels_label ON task_labels(label);

CREATE TABLE IF NOT EXISTS task_deps (
	child_id   TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	parent_id  TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	type       TEXT NOT NULL DEFAULT 'blocks',
	created_at DATETIME NOT NULL,
	PRIMARY KEY (child_id, parent_id, type)
);

CREATE INDEX IF NOT EXISTS idx_task_deps_parent ON task_deps(parent_id);

CREATE TABLE IF NOT EXISTS git_repos (
	slug       TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS task_git_refs (
	id              TEXT PRIMARY KEY,
	task_id         TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	repo            TEXT NOT NULL REFERENCES git_repos(slug),
	relation        TEXT NOT NULL,
	object_type     TEXT NOT NULL,
	object_value    TEXT NOT NULL,
	resolved_commit TEXT NOT NULL DEFAULT '',
	note            TEXT NOT NULL DEFAULT '',
	meta            TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL,
	UNIQUE (task_id, repo, relation, object_type, object_value, resolved_commit)
);

CREATE INDEX IF NOT EXISTS idx_task_git_refs_task ON task_git_refs(task_id);

-- Secondary full-text index over (title, description, acceptance).
-- Maintained transactionally by the Store alongside every task write
-- (see replaceFTS in tx.go); not an external-content table, so reads join on id.
CREATE VIRTUAL TABLE IF NOT EXISTS tasks_fts USING fts5(
	id UNINDEXED,
	title,
	description,
	acceptance
);
`
