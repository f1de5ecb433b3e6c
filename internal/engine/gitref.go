package engine

import (
	"context"

	"github.com/sabaini/grns/internal/canon"
	"github.com/sabaini/grns/internal/errors"
	"github.com/sabaini/grns/internal/models"
	"github.com/sabaini/grns/internal/store"
)

// GitRefCreate is the accepted shape of a create-ref request. Repo is
// optional; when empty, the owning task's source_repo is used.
type GitRefCreate struct {
	Repo           string `json:"repo,omitempty"`
	Relation       string `json:"relation"`
	ObjectType     string `json:"object_type"`
	ObjectValue    string `json:"object_value"`
	ResolvedCommit string `json:"resolved_commit,omitempty"`
	Note           string `json:"note,omitempty"`
	Meta           string `json:"meta,omitempty"`
}

// AddGitRef validates, canonicalizes, and inserts a git-ref owned by
// taskID, following the resolution and uniqueness rules of §4.4.
//
// GitHub commit resolution (when configured) runs before the write
// transaction opens: it's a best-effort network call, and the
// single-writer lane must never block on outbound I/O. It only runs
// when req.Repo is given; a ref whose repo comes from the task's
// source_repo is stored without a resolved commit.
func (e *Engine) AddGitRef(ctx context.Context, taskID string, req GitRefCreate) (*models.GitRef, error) {
	if req.ResolvedCommit == "" && req.Repo != "" {
		if repo, err := canon.RepoSlug(req.Repo); err == nil {
			if objType, err := canon.ObjectTypeOf(req.ObjectType); err == nil && objType != models.ObjectPath {
				if sha := e.resolver.ResolveCommit(ctx, repo, req.ObjectValue); sha != "" {
					req.ResolvedCommit = sha
				}
			}
		}
	}

	var ref *models.GitRef
	err := e.db.WriteTx(ctx, func(tx *store.Tx) error {
		task, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}

		repo := req.Repo
		if repo == "" {
			repo = task.SourceRepo
		}
		if repo == "" {
			return errors.Invalid("repo is required")
		}
		repo, err = canon.RepoSlug(repo)
		if err != nil {
			return err
		}

		objType, err := canon.ObjectTypeOf(req.ObjectType)
		if err != nil {
			return err
		}
		objValue, err := canon.ObjectValue(objType, req.ObjectValue)
		if err != nil {
			return err
		}
		relation, err := canon.GitRelation(req.Relation)
		if err != nil {
			return err
		}
		resolvedCommit, err := canon.ResolvedCommit(req.ResolvedCommit)
		if err != nil {
			return err
		}

		if err := tx.UpsertRepo(ctx, repo); err != nil {
			return err
		}

		id, err := generateGitRefID()
		if err != nil {
			return errors.InternalErr(err, "generate git-ref id")
		}
		ref = &models.GitRef{
			ID:             id,
			TaskID:         taskID,
			Repo:           repo,
			Relation:       relation,
			ObjectType:     objType,
			ObjectValue:    objValue,
			ResolvedCommit: resolvedCommit,
			Note:           req.Note,
			Meta:           req.Meta,
			CreatedAt:      nowUTC(),
		}
		return tx.InsertGitRef(ctx, ref)
	})
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// ListGitRefs returns the git-refs owned by taskID, newest first.
func (e *Engine) ListGitRefs(ctx context.Context, taskID string) ([]*models.GitRef, error) {
	if _, err := e.db.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return e.db.ListGitRefs(ctx, taskID)
}

// GetGitRef reads a single git-ref by id.
func (e *Engine) GetGitRef(ctx context.Context, id string) (*models.GitRef, error) {
	return e.db.GetGitRef(ctx, id)
}

// DeleteGitRef removes a git-ref by id.
func (e *Engine) DeleteGitRef(ctx context.Context, id string) error {
	return e.db.WriteTx(ctx, func(tx *store.Tx) error { return tx.DeleteGitRef(ctx, id) })
}
