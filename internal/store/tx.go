package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/sabaini/grns/internal/errors"
	"github.com/sabaini/grns/internal/models"
)

// Tx is a single write-lane transaction. All mutating Store
// operations run through a Tx so that multi-statement mutations
// (e.g. create-task + set-labels + set-deps) commit atomically.
type Tx struct {
	tx *sqlx.Tx
}

type taskRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Type        string         `db:"type"`
	Status      string         `db:"status"`
	Priority    int            `db:"priority"`
	Description string         `db:"description"`
	Acceptance  string         `db:"acceptance"`
	Assignee    string         `db:"assignee"`
	Parent      sql.NullString `db:"parent"`
	SpecID      string         `db:"spec_id"`
	SourceRepo  string         `db:"source_repo"`
	Custom      string         `db:"custom"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
	ClosedAt    sql.NullString `db:"closed_at"`
}

// InsertTask inserts a fully-populated task row together with its
// labels and its full-text index row. Returns conflict if id collides.
func (t *Tx) InsertTask(ctx context.Context, task *models.Task) error {
	custom, err := json.Marshal(nonNilCustom(task.Custom))
	if err != nil {
		return errors.InternalErr(err, "marshal custom fields")
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO tasks
			(id, title, type, status, priority, description, acceptance,
			 assignee, parent, spec_id, source_repo, custom,
			 created_at, updated_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Title, string(task.Type), string(task.Status), task.Priority,
		task.Description, task.Acceptance, task.Assignee, nullable(task.Parent),
		task.SpecID, task.SourceRepo, string(custom),
		formatTime(task.CreatedAt), formatTime(task.UpdatedAt), nullableTime(task.ClosedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return errors.ConflictErr("task id already exists")
		}
		return errors.InternalErr(err, "insert task")
	}

	if err := t.replaceLabels(ctx, task.ID, task.Labels); err != nil {
		return err
	}
	if err := t.replaceFTS(ctx, task); err != nil {
		return err
	}
	return nil
}

// GetTask reads a task within the transaction (read-your-writes).
func (t *Tx) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return getTask(ctx, t.tx, id)
}

// UpdateTaskScalars rewrites the scalar columns of an existing task
// row, including custom, and refreshes its full-text index row. Labels
// and deps are handled by their own methods; the caller (Task Engine)
// is responsible for merge semantics.
func (t *Tx) UpdateTaskScalars(ctx context.Context, task *models.Task) error {
	custom, err := json.Marshal(nonNilCustom(task.Custom))
	if err != nil {
		return errors.InternalErr(err, "marshal custom fields")
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE tasks SET
			title = ?, type = ?, status = ?, priority = ?, description = ?,
			acceptance = ?, assignee = ?, parent = ?, spec_id = ?,
			source_repo = ?, custom = ?, updated_at = ?, closed_at = ?
		WHERE id = ?`,
		task.Title, string(task.Type), string(task.Status), task.Priority,
		task.Description, task.Acceptance, task.Assignee, nullable(task.Parent),
		task.SpecID, task.SourceRepo, string(custom),
		formatTime(task.UpdatedAt), nullableTime(task.ClosedAt), task.ID)
	if err != nil {
		return errors.InternalErr(err, "update task")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errors.NotFoundf("task not found: %s", task.ID)
	}
	if err := t.replaceFTS(ctx, task); err != nil {
		return err
	}
	return nil
}

// DeleteTask removes a task; foreign keys cascade to labels, deps,
// and git-refs.
func (t *Tx) DeleteTask(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return errors.InternalErr(err, "delete task")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errors.NotFoundf("task not found: %s", id)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM tasks_fts WHERE id = ?`, id); err != nil {
		return errors.InternalErr(err, "delete fts row")
	}
	return nil
}

// AddLabels adds the given (already-canonical) labels to a task,
// idempotently.
func (t *Tx) AddLabels(ctx context.Context, taskID string, labels []string) error {
	for _, l := range labels {
		if _, err := t.tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO task_labels (task_id, label) VALUES (?, ?)`, taskID, l); err != nil {
			return errors.InternalErr(err, "add label")
		}
	}
	return nil
}

// RemoveLabels removes the given labels from a task; removing a
// label the task doesn't have is a no-op.
func (t *Tx) RemoveLabels(ctx context.Context, taskID string, labels []string) error {
	for _, l := range labels {
		if _, err := t.tx.ExecContext(ctx,
			`DELETE FROM task_labels WHERE task_id = ? AND label = ?`, taskID, l); err != nil {
			return errors.InternalErr(err, "remove label")
		}
	}
	return nil
}

// replaceLabels overwrites a task's full label set (used by insert
// and by import overwrite).
func (t *Tx) replaceLabels(ctx context.Context, taskID string, labels []string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM task_labels WHERE task_id = ?`, taskID); err != nil {
		return errors.InternalErr(err, "clear labels")
	}
	return t.AddLabels(ctx, taskID, labels)
}

// ReplaceLabels is the exported form of replaceLabels, used by the
// Task Engine when a PATCH supplies a full label set.
func (t *Tx) ReplaceLabels(ctx context.Context, taskID string, labels []string) error {
	return t.replaceLabels(ctx, taskID, labels)
}

// GetLabels returns the current sorted label set for a task.
func (t *Tx) GetLabels(ctx context.Context, taskID string) ([]string, error) {
	return getLabels(ctx, t.tx, taskID)
}

// AddDep inserts a (child, parent, blocks) edge, idempotently.
// Self-loops are rejected by the caller (Task Engine), not here.
func (t *Tx) AddDep(ctx context.Context, childID, parentID string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO task_deps (child_id, parent_id, type, created_at)
		VALUES (?, ?, ?, ?)`,
		childID, parentID, string(models.DepBlocks), formatTime(nowUTC()))
	if err != nil {
		return errors.InternalErr(err, "add dependency")
	}
	return nil
}

// RemoveDep deletes a (child, parent, blocks) edge; removing an
// absent edge is a no-op.
func (t *Tx) RemoveDep(ctx context.Context, childID, parentID string) error {
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM task_deps WHERE child_id = ? AND parent_id = ? AND type = ?`,
		childID, parentID, string(models.DepBlocks))
	if err != nil {
		return errors.InternalErr(err, "remove dependency")
	}
	return nil
}

// ClearDeps removes all outgoing dep edges for a task (used by import
// whenever a record supplies a deps array, before its edges are added).
func (t *Tx) ClearDeps(ctx context.Context, childID string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM task_deps WHERE child_id = ?`, childID)
	if err != nil {
		return errors.InternalErr(err, "clear dependencies")
	}
	return nil
}

// GetDeps returns the dep edges for a task in deterministic order.
func (t *Tx) GetDeps(ctx context.Context, childID string) ([]models.DepEdge, error) {
	return getDeps(ctx, t.tx, childID)
}

// UpsertRepo inserts the canonical slug into the shared repo catalog
// if absent.
func (t *Tx) UpsertRepo(ctx context.Context, slug string) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO git_repos (slug, created_at) VALUES (?, ?)`,
		slug, formatTime(nowUTC()))
	if err != nil {
		return errors.InternalErr(err, "upsert repo catalog entry")
	}
	return nil
}

// InsertGitRef inserts a canonicalized git-ref. Returns conflict on
// the per-task uniqueness violation.
func (t *Tx) InsertGitRef(ctx context.Context, ref *models.GitRef) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO task_git_refs
			(id, task_id, repo, relation, object_type, object_value,
			 resolved_commit, note, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ref.ID, ref.TaskID, ref.Repo, ref.Relation, string(ref.ObjectType),
		ref.ObjectValue, ref.ResolvedCommit, ref.Note, ref.Meta, formatTime(ref.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return errors.ConflictErr("git-ref already exists for this task")
		}
		return errors.InternalErr(err, "insert git-ref")
	}
	return nil
}

// DeleteGitRef removes a git-ref by id.
func (t *Tx) DeleteGitRef(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM task_git_refs WHERE id = ?`, id)
	if err != nil {
		return errors.InternalErr(err, "delete git-ref")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errors.NotFoundf("git-ref not found: %s", id)
	}
	return nil
}

// GitRefExists reports whether an equivalent ref (by uniqueness key)
// already exists for the task, used by idempotent close-annotation.
func (t *Tx) GitRefExists(ctx context.Context, taskID, repo, relation, objectType, objectValue, resolvedCommit string) (bool, error) {
	var n int
	err := t.tx.GetContext(ctx, &n, `
		SELECT COUNT(1) FROM task_git_refs
		WHERE task_id = ? AND repo = ? AND relation = ? AND object_type = ?
		  AND object_value = ? AND resolved_commit = ?`,
		taskID, repo, relation, objectType, objectValue, resolvedCommit)
	if err != nil {
		return false, errors.InternalErr(err, "check git-ref existence")
	}
	return n > 0, nil
}

func (t *Tx) replaceFTS(ctx context.Context, task *models.Task) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM tasks_fts WHERE id = ?`, task.ID); err != nil {
		return errors.InternalErr(err, "clear fts row")
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO tasks_fts (id, title, description, acceptance) VALUES (?, ?, ?, ?)`,
		task.ID, task.Title, task.Description, task.Acceptance)
	if err != nil {
		return errors.InternalErr(err, "index fts row")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	sqliteErr, ok := err.(sqlite3.Error)
	if !ok {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func nonNilCustom(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
