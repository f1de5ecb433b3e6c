package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sabaini/grns/internal/errors"
	"github.com/sabaini/grns/internal/models"
)

// timeLayout keeps a fixed-width fraction so that stored timestamps
// compare and sort as strings in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Tolerate the bare RFC3339 form used by import records.
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.UTC()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx, letting read
// helpers serve both standalone reads and read-your-writes inside a
// transaction.
type queryer interface {
	sqlx.QueryerContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func rowToTask(r taskRow) (*models.Task, error) {
	var custom map[string]string
	if r.Custom != "" {
		if err := json.Unmarshal([]byte(r.Custom), &custom); err != nil {
			return nil, errors.InternalErr(err, "unmarshal custom fields")
		}
	}
	task := &models.Task{
		ID:          r.ID,
		Title:       r.Title,
		Type:        models.Type(r.Type),
		Status:      models.Status(r.Status),
		Priority:    r.Priority,
		Description: r.Description,
		Acceptance:  r.Acceptance,
		Assignee:    r.Assignee,
		SpecID:      r.SpecID,
		SourceRepo:  r.SourceRepo,
		Custom:      custom,
		CreatedAt:   parseTime(r.CreatedAt),
		UpdatedAt:   parseTime(r.UpdatedAt),
	}
	if r.Parent.Valid {
		task.Parent = r.Parent.String
	}
	if r.ClosedAt.Valid {
		ts := parseTime(r.ClosedAt.String)
		task.ClosedAt = &ts
	}
	return task, nil
}

func getTask(ctx context.Context, q queryer, id string) (*models.Task, error) {
	var r taskRow
	err := q.GetContext(ctx, &r, `SELECT * FROM tasks WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundf("task not found: %s", id)
	}
	if err != nil {
		return nil, errors.InternalErr(err, "get task")
	}
	task, err := rowToTask(r)
	if err != nil {
		return nil, err
	}
	labels, err := getLabels(ctx, q, id)
	if err != nil {
		return nil, err
	}
	task.Labels = labels
	deps, err := getDeps(ctx, q, id)
	if err != nil {
		return nil, err
	}
	task.Deps = deps
	return task, nil
}

func getLabels(ctx context.Context, q queryer, taskID string) ([]string, error) {
	var labels []string
	err := q.SelectContext(ctx, &labels,
		`SELECT label FROM task_labels WHERE task_id = ? ORDER BY label`, taskID)
	if err != nil {
		return nil, errors.InternalErr(err, "get labels")
	}
	if labels == nil {
		labels = []string{}
	}
	return labels, nil
}

func getDeps(ctx context.Context, q queryer, childID string) ([]models.DepEdge, error) {
	var rows []struct {
		ParentID string `db:"parent_id"`
		Type     string `db:"type"`
	}
	err := q.SelectContext(ctx, &rows,
		`SELECT parent_id, type FROM task_deps WHERE child_id = ? ORDER BY parent_id`, childID)
	if err != nil {
		return nil, errors.InternalErr(err, "get dependencies")
	}
	deps := make([]models.DepEdge, 0, len(rows))
	for _, r := range rows {
		deps = append(deps, models.DepEdge{ParentID: r.ParentID, Type: models.DepType(r.Type)})
	}
	return deps, nil
}

// GetTask reads a single task outside any write transaction.
func (d *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return getTask(ctx, d.sqlx, id)
}

// GetTasks returns the requested ids in the order requested
// (batch-get, §4.5). A missing id is simply omitted from the result;
// callers that need all-or-nothing semantics check len(result).
func (d *DB) GetTasks(ctx context.Context, ids []string) ([]*models.Task, error) {
	byID := make(map[string]*models.Task, len(ids))
	for _, id := range ids {
		task, err := getTask(ctx, d.sqlx, id)
		if err != nil {
			if errors.CodeOf(err) == errors.NotFound {
				continue
			}
			return nil, err
		}
		byID[id] = task
	}
	out := make([]*models.Task, 0, len(ids))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// ListTasks evaluates the composed filter and returns a deterministic
// page ordered by updated_at DESC, id ASC.
func (d *DB) ListTasks(ctx context.Context, filter models.Filter, page models.Page) ([]*models.Task, error) {
	return d.query(ctx, filter, page)
}

// Search evaluates filter composed with an FTS query over
// (title, description, acceptance).
func (d *DB) Search(ctx context.Context, ftsQuery string, filter models.Filter, page models.Page) ([]*models.Task, error) {
	filter.Search = ftsQuery
	return d.query(ctx, filter, page)
}

func (d *DB) query(ctx context.Context, filter models.Filter, page models.Page) ([]*models.Task, error) {
	if page.Limit < 0 || page.Offset < 0 {
		return nil, errors.Invalid("limit and offset must be non-negative")
	}
	limit := page.Limit
	if limit == 0 {
		limit = models.DefaultPage.Limit
	}

	var where []string
	var args []interface{}

	if len(filter.Label) > 0 {
		placeholders := placeholderList(len(filter.Label))
		where = append(where, fmt.Sprintf(`id IN (
			SELECT task_id FROM task_labels WHERE label IN (%s)
			GROUP BY task_id HAVING COUNT(DISTINCT label) = ?
		)`, placeholders))
		for _, l := range filter.Label {
			args = append(args, l)
		}
		args = append(args, len(filter.Label))
	}
	if len(filter.LabelAny) > 0 {
		placeholders := placeholderList(len(filter.LabelAny))
		where = append(where, fmt.Sprintf(
			`id IN (SELECT task_id FROM task_labels WHERE label IN (%s))`, placeholders))
		for _, l := range filter.LabelAny {
			args = append(args, l)
		}
	}
	if len(filter.Status) > 0 {
		placeholders := placeholderList(len(filter.Status))
		where = append(where, fmt.Sprintf(`status IN (%s)`, placeholders))
		for _, s := range filter.Status {
			args = append(args, string(s))
		}
	}
	if filter.Type != "" {
		where = append(where, `type = ?`)
		args = append(args, string(filter.Type))
	}
	if filter.SpecRegex != "" {
		where = append(where, `spec_id REGEXP ?`)
		args = append(args, filter.SpecRegex)
	}
	if filter.UpdatedBefore != nil {
		where = append(where, `updated_at < ?`)
		args = append(args, formatTime(*filter.UpdatedBefore))
	}
	if filter.Search != "" {
		where = append(where, `id IN (SELECT id FROM tasks_fts WHERE tasks_fts MATCH ?)`)
		args = append(args, filter.Search)
	}

	q := `SELECT * FROM tasks`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY updated_at DESC, id ASC LIMIT ? OFFSET ?`
	args = append(args, limit, page.Offset)

	var rows []taskRow
	if err := d.sqlx.SelectContext(ctx, &rows, q, args...); err != nil {
		if isRegexpError(err) {
			return nil, errors.Invalid("invalid spec regex")
		}
		if isFTSError(err) {
			return nil, errors.Invalid("invalid search query")
		}
		return nil, errors.InternalErr(err, "list tasks")
	}

	tasks := make([]*models.Task, 0, len(rows))
	for _, r := range rows {
		task, err := rowToTask(r)
		if err != nil {
			return nil, err
		}
		labels, err := getLabels(ctx, d.sqlx, task.ID)
		if err != nil {
			return nil, err
		}
		task.Labels = labels
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// ListReady returns open/in_progress tasks with no unresolved
// ("blocks") parent, ordered and paginated like ListTasks. A parent
// counts as resolved once its status is closed.
func (d *DB) ListReady(ctx context.Context, page models.Page) ([]*models.Task, error) {
	if page.Limit < 0 || page.Offset < 0 {
		return nil, errors.Invalid("limit and offset must be non-negative")
	}
	limit := page.Limit
	if limit == 0 {
		limit = models.DefaultPage.Limit
	}
	var rows []taskRow
	err := d.sqlx.SelectContext(ctx, &rows, `
		SELECT * FROM tasks t
		WHERE t.status IN ('open', 'in_progress')
		  AND NOT EXISTS (
			SELECT 1 FROM task_deps d
			JOIN tasks p ON p.id = d.parent_id
			WHERE d.child_id = t.id AND p.status != 'closed'
		  )
		ORDER BY updated_at DESC, id ASC
		LIMIT ? OFFSET ?`, limit, page.Offset)
	if err != nil {
		return nil, errors.InternalErr(err, "list ready tasks")
	}
	tasks := make([]*models.Task, 0, len(rows))
	for _, r := range rows {
		task, err := rowToTask(r)
		if err != nil {
			return nil, err
		}
		labels, err := getLabels(ctx, d.sqlx, task.ID)
		if err != nil {
			return nil, err
		}
		task.Labels = labels
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// ListAllTaskIDs returns every task id in deterministic (id) order,
// used by Export.
func (d *DB) ListAllTaskIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := d.sqlx.SelectContext(ctx, &ids, `SELECT id FROM tasks ORDER BY id`); err != nil {
		return nil, errors.InternalErr(err, "list task ids")
	}
	return ids, nil
}

// GetGitRef reads a single git-ref by id.
func (d *DB) GetGitRef(ctx context.Context, id string) (*models.GitRef, error) {
	return getGitRef(ctx, d.sqlx, id)
}

func getGitRef(ctx context.Context, q queryer, id string) (*models.GitRef, error) {
	var r gitRefRow
	err := q.GetContext(ctx, &r, `SELECT * FROM task_git_refs WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundf("git-ref not found: %s", id)
	}
	if err != nil {
		return nil, errors.InternalErr(err, "get git-ref")
	}
	return rowToGitRef(r), nil
}

// ListGitRefs returns every git-ref owned by a task, newest first.
func (d *DB) ListGitRefs(ctx context.Context, taskID string) ([]*models.GitRef, error) {
	var rows []gitRefRow
	err := d.sqlx.SelectContext(ctx, &rows,
		`SELECT * FROM task_git_refs WHERE task_id = ? ORDER BY created_at DESC, id ASC`, taskID)
	if err != nil {
		return nil, errors.InternalErr(err, "list git-refs")
	}
	refs := make([]*models.GitRef, 0, len(rows))
	for _, r := range rows {
		refs = append(refs, rowToGitRef(r))
	}
	return refs, nil
}

type gitRefRow struct {
	ID             string `db:"id"`
	TaskID         string `db:"task_id"`
	Repo           string `db:"repo"`
	Relation       string `db:"relation"`
	ObjectType     string `db:"object_type"`
	ObjectValue    string `db:"object_value"`
	ResolvedCommit string `db:"resolved_commit"`
	Note           string `db:"note"`
	Meta           string `db:"meta"`
	CreatedAt      string `db:"created_at"`
}

func rowToGitRef(r gitRefRow) *models.GitRef {
	return &models.GitRef{
		ID:             r.ID,
		TaskID:         r.TaskID,
		Repo:           r.Repo,
		Relation:       r.Relation,
		ObjectType:     models.ObjectType(r.ObjectType),
		ObjectValue:    r.ObjectValue,
		ResolvedCommit: r.ResolvedCommit,
		Note:           r.Note,
		Meta:           r.Meta,
		CreatedAt:      parseTime(r.CreatedAt),
	}
}

func placeholderList(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = "?"
	}
	return strings.Join(ph, ",")
}

func isRegexpError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "regexp") || strings.Contains(msg, "error parsing regexp")
}

func isFTSError(err error) bool {
	return strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "malformed MATCH")
}
