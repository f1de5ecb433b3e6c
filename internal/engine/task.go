package engine

import (
	"context"

	"github.com/sabaini/grns/internal/canon"
	"github.com/sabaini/grns/internal/errors"
	"github.com/sabaini/grns/internal/models"
	"github.com/sabaini/grns/internal/store"
)

// TaskCreate is the accepted shape of a create request. ID is
// optional; when empty one is auto-generated from the project prefix.
type TaskCreate struct {
	ID          string            `json:"id,omitempty"`
	Title       string            `json:"title"`
	Type        string            `json:"type,omitempty"`
	Priority    *int              `json:"priority,omitempty"`
	Description string            `json:"description,omitempty"`
	Acceptance  string            `json:"acceptance,omitempty"`
	Assignee    string            `json:"assignee,omitempty"`
	Parent      string            `json:"parent,omitempty"`
	SpecID      string            `json:"spec_id,omitempty"`
	SourceRepo  string            `json:"source_repo,omitempty"`
	Labels      []string          `json:"labels,omitempty"`
	Custom      map[string]string `json:"custom,omitempty"`
}

// TaskPatch is the accepted shape of a PATCH request. A nil field was
// absent from the request body and is left untouched; a non-nil field
// (even a pointer to a zero value) replaces the task's current value.
type TaskPatch struct {
	Title       *string            `json:"title,omitempty"`
	Type        *string            `json:"type,omitempty"`
	Status      *string            `json:"status,omitempty"`
	Priority    *int               `json:"priority,omitempty"`
	Description *string            `json:"description,omitempty"`
	Acceptance  *string            `json:"acceptance,omitempty"`
	Assignee    *string            `json:"assignee,omitempty"`
	Parent      *string            `json:"parent,omitempty"`
	SpecID      *string            `json:"spec_id,omitempty"`
	SourceRepo  *string            `json:"source_repo,omitempty"`
	Labels      *[]string          `json:"labels,omitempty"`
	Custom      *map[string]string `json:"custom,omitempty"`
}

// Empty reports whether no recognized field was supplied.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Type == nil && p.Status == nil && p.Priority == nil &&
		p.Description == nil && p.Acceptance == nil && p.Assignee == nil &&
		p.Parent == nil && p.SpecID == nil && p.SourceRepo == nil &&
		p.Labels == nil && p.Custom == nil
}

// Get reads a single task.
func (e *Engine) Get(ctx context.Context, id string) (*models.Task, error) {
	return e.db.GetTask(ctx, id)
}

// GetMany reads a batch of tasks, returned in the requested order.
func (e *Engine) GetMany(ctx context.Context, ids []string) ([]*models.Task, error) {
	return e.db.GetTasks(ctx, ids)
}

// Create canonicalizes req and inserts a new task, auto-generating an
// id from the project prefix when req.ID is empty.
func (e *Engine) Create(ctx context.Context, req TaskCreate) (*models.Task, error) {
	title, err := canon.Title(req.Title)
	if err != nil {
		return nil, err
	}

	typ := models.TypeTask
	if req.Type != "" {
		typ, err = canon.TaskType(req.Type)
		if err != nil {
			return nil, err
		}
	}

	priority := 2
	if req.Priority != nil {
		priority, err = canon.Priority(*req.Priority)
		if err != nil {
			return nil, err
		}
	}

	labels, err := canon.Labels(req.Labels)
	if err != nil {
		return nil, err
	}

	sourceRepo := req.SourceRepo
	if sourceRepo != "" {
		sourceRepo, err = canon.RepoSlug(sourceRepo)
		if err != nil {
			return nil, err
		}
	}

	now := nowUTC()
	task := &models.Task{
		Title:       title,
		Type:        typ,
		Status:      models.StatusOpen,
		Priority:    priority,
		Description: req.Description,
		Acceptance:  req.Acceptance,
		Assignee:    req.Assignee,
		Parent:      req.Parent,
		SpecID:      req.SpecID,
		SourceRepo:  sourceRepo,
		Labels:      labels,
		Custom:      req.Custom,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if req.ID != "" {
		id, err := canon.ID(req.ID)
		if err != nil {
			return nil, err
		}
		task.ID = id
		if err := e.db.WriteTx(ctx, func(tx *store.Tx) error { return tx.InsertTask(ctx, task) }); err != nil {
			return nil, err
		}
		return task, nil
	}

	var lastErr error
	for attempt := 0; attempt < maxIDRetries; attempt++ {
		id, err := generateTaskID(e.prefix)
		if err != nil {
			return nil, errors.InternalErr(err, "generate task id")
		}
		task.ID = id
		err = e.db.WriteTx(ctx, func(tx *store.Tx) error { return tx.InsertTask(ctx, task) })
		if err == nil {
			return task, nil
		}
		if errors.CodeOf(err) != errors.Conflict {
			return nil, err
		}
		lastErr = err
	}
	return nil, errors.InternalErrf(lastErr, "failed to allocate a unique task id after %d attempts", maxIDRetries)
}

// Update applies patch's present fields to task id, in a single
// transaction, honoring close/reopen timestamp rules.
func (e *Engine) Update(ctx context.Context, id string, patch TaskPatch) (*models.Task, error) {
	if patch.Empty() {
		return nil, errors.Invalid("no fields to update")
	}

	var result *models.Task
	err := e.db.WriteTx(ctx, func(tx *store.Tx) error {
		task, err := tx.GetTask(ctx, id)
		if err != nil {
			return err
		}

		if patch.Title != nil {
			task.Title, err = canon.Title(*patch.Title)
			if err != nil {
				return err
			}
		}
		if patch.Type != nil {
			task.Type, err = canon.TaskType(*patch.Type)
			if err != nil {
				return err
			}
		}
		if patch.Priority != nil {
			task.Priority, err = canon.Priority(*patch.Priority)
			if err != nil {
				return err
			}
		}
		if patch.Description != nil {
			task.Description = *patch.Description
		}
		if patch.Acceptance != nil {
			task.Acceptance = *patch.Acceptance
		}
		if patch.Assignee != nil {
			task.Assignee = *patch.Assignee
		}
		if patch.Parent != nil {
			task.Parent = *patch.Parent
		}
		if patch.SpecID != nil {
			task.SpecID = *patch.SpecID
		}
		if patch.SourceRepo != nil {
			repo := *patch.SourceRepo
			if repo != "" {
				repo, err = canon.RepoSlug(repo)
				if err != nil {
					return err
				}
			}
			task.SourceRepo = repo
		}
		if patch.Custom != nil {
			task.Custom = *patch.Custom
		}
		if patch.Labels != nil {
			labels, err := canon.Labels(*patch.Labels)
			if err != nil {
				return err
			}
			task.Labels = labels
			if err := tx.ReplaceLabels(ctx, id, labels); err != nil {
				return err
			}
		}

		if patch.Status != nil {
			wasClosed := task.Status == models.StatusClosed
			status, err := canon.Status(*patch.Status)
			if err != nil {
				return err
			}
			task.Status = status
			now := nowUTC()
			switch {
			case status == models.StatusClosed && !wasClosed:
				task.ClosedAt = &now
			case status != models.StatusClosed && wasClosed:
				task.ClosedAt = nil
			}
		}

		task.UpdatedAt = nowUTC()
		if err := tx.UpdateTaskScalars(ctx, task); err != nil {
			return err
		}
		result = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a task; owned labels, deps, and git-refs cascade.
func (e *Engine) Delete(ctx context.Context, id string) error {
	return e.db.WriteTx(ctx, func(tx *store.Tx) error { return tx.DeleteTask(ctx, id) })
}

// Close batch-closes tasks, optionally annotating each with a
// closed_by git-ref. All-or-nothing on missing ids; validated before
// any mutation is applied.
func (e *Engine) Close(ctx context.Context, patch models.ClosePatch) (*models.CloseResult, error) {
	if len(patch.IDs) == 0 {
		return nil, errors.Invalid("ids must not be empty")
	}

	var commit, repo string
	var err error
	if patch.Commit != "" {
		commit, err = canon.GitHash(patch.Commit)
		if err != nil {
			return nil, err
		}
	}
	if patch.Repo != "" {
		repo, err = canon.RepoSlug(patch.Repo)
		if err != nil {
			return nil, err
		}
	}
	if repo != "" && commit == "" {
		return nil, errors.Invalid("repo supplied without commit")
	}

	result := &models.CloseResult{}
	err = e.db.WriteTx(ctx, func(tx *store.Tx) error {
		tasks := make([]*models.Task, 0, len(patch.IDs))
		for _, id := range patch.IDs {
			t, err := tx.GetTask(ctx, id)
			if err != nil {
				return err
			}
			tasks = append(tasks, t)
		}

		effectiveRepo := make([]string, len(tasks))
		if commit != "" {
			for i, t := range tasks {
				r := repo
				if r == "" {
					r = t.SourceRepo
				}
				if r == "" {
					return errors.Invalidf("task %s has no source_repo and no repo was supplied", t.ID)
				}
				effectiveRepo[i] = r
			}
		}

		now := nowUTC()
		for _, t := range tasks {
			if t.Status == models.StatusClosed {
				continue
			}
			t.Status = models.StatusClosed
			t.ClosedAt = &now
			t.UpdatedAt = now
			if err := tx.UpdateTaskScalars(ctx, t); err != nil {
				return err
			}
		}

		if commit != "" {
			for i, t := range tasks {
				exists, err := tx.GitRefExists(ctx, t.ID, effectiveRepo[i], models.RelationClosedBy, string(models.ObjectCommit), commit, "")
				if err != nil {
					return err
				}
				if exists {
					continue
				}
				refID, err := generateGitRefID()
				if err != nil {
					return errors.InternalErr(err, "generate git-ref id")
				}
				if err := tx.UpsertRepo(ctx, effectiveRepo[i]); err != nil {
					return err
				}
				ref := &models.GitRef{
					ID:          refID,
					TaskID:      t.ID,
					Repo:        effectiveRepo[i],
					Relation:    models.RelationClosedBy,
					ObjectType:  models.ObjectCommit,
					ObjectValue: commit,
					CreatedAt:   now,
				}
				if err := tx.InsertGitRef(ctx, ref); err != nil {
					return err
				}
				result.Annotated++
			}
		}

		result.Tasks = tasks
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reopen batch-reopens tasks: status=open, closed_at=null. Does not
// remove any close-annotation git-refs. All-or-nothing on missing ids.
func (e *Engine) Reopen(ctx context.Context, ids []string) ([]*models.Task, error) {
	if len(ids) == 0 {
		return nil, errors.Invalid("ids must not be empty")
	}
	var tasks []*models.Task
	err := e.db.WriteTx(ctx, func(tx *store.Tx) error {
		tasks = make([]*models.Task, 0, len(ids))
		for _, id := range ids {
			t, err := tx.GetTask(ctx, id)
			if err != nil {
				return err
			}
			tasks = append(tasks, t)
		}
		now := nowUTC()
		for _, t := range tasks {
			if t.Status != models.StatusClosed && t.ClosedAt == nil {
				continue
			}
			t.Status = models.StatusOpen
			t.ClosedAt = nil
			t.UpdatedAt = now
			if err := tx.UpdateTaskScalars(ctx, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// AddLabels canonicalizes and idempotently adds labels to a task.
func (e *Engine) AddLabels(ctx context.Context, id string, raw []string) (*models.Task, error) {
	labels, err := canon.Labels(raw)
	if err != nil {
		return nil, err
	}
	var result *models.Task
	err = e.db.WriteTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.GetTask(ctx, id); err != nil {
			return err
		}
		if err := tx.AddLabels(ctx, id, labels); err != nil {
			return err
		}
		task, err := tx.GetTask(ctx, id)
		if err != nil {
			return err
		}
		task.UpdatedAt = nowUTC()
		if err := tx.UpdateTaskScalars(ctx, task); err != nil {
			return err
		}
		result = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveLabels removes labels from a task; removing a label the task
// doesn't carry is a no-op.
func (e *Engine) RemoveLabels(ctx context.Context, id string, raw []string) (*models.Task, error) {
	labels, err := canon.Labels(raw)
	if err != nil {
		return nil, err
	}
	var result *models.Task
	err = e.db.WriteTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.GetTask(ctx, id); err != nil {
			return err
		}
		if err := tx.RemoveLabels(ctx, id, labels); err != nil {
			return err
		}
		task, err := tx.GetTask(ctx, id)
		if err != nil {
			return err
		}
		task.UpdatedAt = nowUTC()
		if err := tx.UpdateTaskScalars(ctx, task); err != nil {
			return err
		}
		result = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AddDep inserts a "blocks" edge from child to parent, idempotently.
// Both ends must exist; self-loops are rejected.
func (e *Engine) AddDep(ctx context.Context, childID, parentID string) error {
	if childID == parentID {
		return errors.Invalid("a task cannot depend on itself")
	}
	return e.db.WriteTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.GetTask(ctx, childID); err != nil {
			return err
		}
		if _, err := tx.GetTask(ctx, parentID); err != nil {
			return err
		}
		return tx.AddDep(ctx, childID, parentID)
	})
}

// RemoveDep removes a "blocks" edge; removing an absent edge succeeds.
func (e *Engine) RemoveDep(ctx context.Context, childID, parentID string) error {
	return e.db.WriteTx(ctx, func(tx *store.Tx) error { return tx.RemoveDep(ctx, childID, parentID) })
}
