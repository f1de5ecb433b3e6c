package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabaini/grns/internal/errors"
	"github.com/sabaini/grns/internal/models"
)

func insertTask(t *testing.T, db *DB, task *models.Task) {
	t.Helper()
	err := db.WriteTx(context.Background(), func(tx *Tx) error {
		return tx.InsertTask(context.Background(), task)
	})
	require.NoError(t, err)
}

func TestInsertTaskRejectsDuplicateID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	task := newTestTask("gr-dupe")
	insertTask(t, db, task)

	err := db.WriteTx(ctx, func(tx *Tx) error {
		return tx.InsertTask(ctx, newTestTask("gr-dupe"))
	})
	require.Error(t, err)
	assert.Equal(t, errors.Conflict, errors.CodeOf(err))
}

func TestInsertTaskWritesLabelsAndFTS(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	task := newTestTask("gr-labl")
	task.Labels = []string{"backend", "urgent"}
	task.Title = "fix the regression"
	insertTask(t, db, task)

	got, err := db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"backend", "urgent"}, got.Labels)

	results, err := db.Search(ctx, "regression", models.Filter{}, models.Page{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, task.ID, results[0].ID)
}

func TestUpdateTaskScalarsNotFound(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	task := newTestTask("gr-ghost")
	err := db.WriteTx(ctx, func(tx *Tx) error {
		return tx.UpdateTaskScalars(ctx, task)
	})
	require.Error(t, err)
	assert.Equal(t, errors.NotFound, errors.CodeOf(err))
}

func TestUpdateTaskScalarsReindexesFTS(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	task := newTestTask("gr-updt")
	task.Title = "original title"
	insertTask(t, db, task)

	task.Title = "renamed title"
	err := db.WriteTx(ctx, func(tx *Tx) error {
		return tx.UpdateTaskScalars(ctx, task)
	})
	require.NoError(t, err)

	hits, err := db.Search(ctx, "renamed", models.Filter{}, models.Page{})
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	misses, err := db.Search(ctx, "original", models.Filter{}, models.Page{})
	require.NoError(t, err)
	assert.Empty(t, misses, "the old title must no longer be indexed")
}

func TestDeleteTaskCascadesAndNotFound(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	task := newTestTask("gr-delt")
	insertTask(t, db, task)
	require.NoError(t, db.WriteTx(ctx, func(tx *Tx) error {
		return tx.AddLabels(ctx, task.ID, []string{"x"})
	}))

	err := db.WriteTx(ctx, func(tx *Tx) error {
		return tx.DeleteTask(ctx, task.ID)
	})
	require.NoError(t, err)

	_, err = db.GetTask(ctx, task.ID)
	assert.Equal(t, errors.NotFound, errors.CodeOf(err))

	labels, err := db.sqlxSelectLabels(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, labels, "cascading delete must remove task_labels rows")

	err = db.WriteTx(ctx, func(tx *Tx) error {
		return tx.DeleteTask(ctx, task.ID)
	})
	assert.Equal(t, errors.NotFound, errors.CodeOf(err))
}

func TestAddRemoveLabelsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	task := newTestTask("gr-labs")
	insertTask(t, db, task)

	err := db.WriteTx(ctx, func(tx *Tx) error {
		if err := tx.AddLabels(ctx, task.ID, []string{"a", "b"}); err != nil {
			return err
		}
		return tx.AddLabels(ctx, task.ID, []string{"a"})
	})
	require.NoError(t, err)
	got, err := db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Labels)

	err = db.WriteTx(ctx, func(tx *Tx) error {
		if err := tx.RemoveLabels(ctx, task.ID, []string{"a", "nonexistent"}); err != nil {
			return err
		}
		return nil
	})
	require.NoError(t, err, "removing a label the task never had must be a no-op, not an error")
	got, err = db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, got.Labels)
}

func TestReplaceLabelsOverwritesFullSet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	task := newTestTask("gr-rpls")
	task.Labels = []string{"old"}
	insertTask(t, db, task)

	err := db.WriteTx(ctx, func(tx *Tx) error {
		return tx.ReplaceLabels(ctx, task.ID, []string{"new1", "new2"})
	})
	require.NoError(t, err)
	got, err := db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"new1", "new2"}, got.Labels)
}

func TestAddRemoveDepsAndSelfLoopNotRejectedAtStoreLevel(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	child := newTestTask("gr-chld")
	parent := newTestTask("gr-prnt")
	insertTask(t, db, child)
	insertTask(t, db, parent)

	err := db.WriteTx(ctx, func(tx *Tx) error {
		if err := tx.AddDep(ctx, child.ID, parent.ID); err != nil {
			return err
		}
		// Idempotent re-add must not error.
		return tx.AddDep(ctx, child.ID, parent.ID)
	})
	require.NoError(t, err)

	got, err := db.GetTask(ctx, child.ID)
	require.NoError(t, err)
	require.Len(t, got.Deps, 1)
	assert.Equal(t, parent.ID, got.Deps[0].ParentID)
	assert.Equal(t, models.DepBlocks, got.Deps[0].Type)

	err = db.WriteTx(ctx, func(tx *Tx) error {
		return tx.RemoveDep(ctx, child.ID, parent.ID)
	})
	require.NoError(t, err)
	got, err = db.GetTask(ctx, child.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Deps)

	// Removing an absent edge is a no-op, not an error.
	err = db.WriteTx(ctx, func(tx *Tx) error {
		return tx.RemoveDep(ctx, child.ID, parent.ID)
	})
	require.NoError(t, err)

	// Self-loops are rejected by the Task Engine, not by the store.
	err = db.WriteTx(ctx, func(tx *Tx) error {
		return tx.AddDep(ctx, child.ID, child.ID)
	})
	require.NoError(t, err)
}

func TestClearDeps(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	child := newTestTask("gr-cld2")
	p1 := newTestTask("gr-par1")
	p2 := newTestTask("gr-par2")
	insertTask(t, db, child)
	insertTask(t, db, p1)
	insertTask(t, db, p2)

	err := db.WriteTx(ctx, func(tx *Tx) error {
		if err := tx.AddDep(ctx, child.ID, p1.ID); err != nil {
			return err
		}
		if err := tx.AddDep(ctx, child.ID, p2.ID); err != nil {
			return err
		}
		return tx.ClearDeps(ctx, child.ID)
	})
	require.NoError(t, err)
	got, err := db.GetTask(ctx, child.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Deps)
}

func TestUpsertRepoAndGitRefLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	task := newTestTask("gr-gref")
	insertTask(t, db, task)

	ref := &models.GitRef{
		ID:          "gf-0001",
		TaskID:      task.ID,
		Repo:        "github.com/acme/widgets",
		Relation:    models.RelationFixCommit,
		ObjectType:  models.ObjectCommit,
		ObjectValue: "abcdef0123456789abcdef0123456789abcdef01",
		CreatedAt:   nowUTC(),
	}

	err := db.WriteTx(ctx, func(tx *Tx) error {
		if err := tx.UpsertRepo(ctx, ref.Repo); err != nil {
			return err
		}
		// Upserting the same slug twice must not error.
		if err := tx.UpsertRepo(ctx, ref.Repo); err != nil {
			return err
		}
		return tx.InsertGitRef(ctx, ref)
	})
	require.NoError(t, err)

	got, err := db.GetGitRef(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, ref.ObjectValue, got.ObjectValue)

	exists, err := db.withTxExists(ctx, func(tx *Tx) (bool, error) {
		return tx.GitRefExists(ctx, task.ID, ref.Repo, ref.Relation, string(ref.ObjectType), ref.ObjectValue, ref.ResolvedCommit)
	})
	require.NoError(t, err)
	assert.True(t, exists)

	refs, err := db.ListGitRefs(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, refs, 1)

	err = db.WriteTx(ctx, func(tx *Tx) error {
		return tx.DeleteGitRef(ctx, ref.ID)
	})
	require.NoError(t, err)

	_, err = db.GetGitRef(ctx, ref.ID)
	assert.Equal(t, errors.NotFound, errors.CodeOf(err))

	err = db.WriteTx(ctx, func(tx *Tx) error {
		return tx.DeleteGitRef(ctx, ref.ID)
	})
	assert.Equal(t, errors.NotFound, errors.CodeOf(err))
}

func TestInsertGitRefRejectsDuplicateUniqueKey(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	task := newTestTask("gr-gdup")
	insertTask(t, db, task)

	mk := func(id string) *models.GitRef {
		return &models.GitRef{
			ID:          id,
			TaskID:      task.ID,
			Repo:        "github.com/acme/widgets",
			Relation:    models.RelationRelated,
			ObjectType:  models.ObjectBranch,
			ObjectValue: "main",
			CreatedAt:   nowUTC(),
		}
	}

	err := db.WriteTx(ctx, func(tx *Tx) error {
		if err := tx.UpsertRepo(ctx, "github.com/acme/widgets"); err != nil {
			return err
		}
		return tx.InsertGitRef(ctx, mk("gf-aaaa"))
	})
	require.NoError(t, err)

	err = db.WriteTx(ctx, func(tx *Tx) error {
		return tx.InsertGitRef(ctx, mk("gf-bbbb"))
	})
	require.Error(t, err)
	assert.Equal(t, errors.Conflict, errors.CodeOf(err))
}

// withTxExists is a small helper giving GitRefExists (a Tx method) a
// read-only execution path in tests without reaching into unexported
// sqlx internals.
func (d *DB) withTxExists(ctx context.Context, fn func(*Tx) (bool, error)) (bool, error) {
	var result bool
	err := d.WriteTx(ctx, func(tx *Tx) error {
		var err error
		result, err = fn(tx)
		return err
	})
	return result, err
}

// sqlxSelectLabels is a tiny test-only accessor used to assert that
// cascading deletes actually clear task_labels rows.
func (d *DB) sqlxSelectLabels(ctx context.Context, taskID string) ([]string, error) {
	return getLabels(ctx, d.sqlx, taskID)
}
