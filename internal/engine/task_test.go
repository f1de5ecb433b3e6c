package engine

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabaini/grns/internal/errors"
	"github.com/sabaini/grns/internal/models"
	"github.com/sabaini/grns/internal/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := store.Open(":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, testLogger(), "gr")
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestCreateGeneratesIDWithPrefix(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	task, err := e.Create(ctx, TaskCreate{Title: "  do the thing  "})
	require.NoError(t, err)
	assert.Equal(t, "do the thing", task.Title)
	assert.Equal(t, models.TypeTask, task.Type)
	assert.Equal(t, models.StatusOpen, task.Status)
	assert.Equal(t, 2, task.Priority)
	assert.Regexp(t, `^gr-`, task.ID)

	got, err := e.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Title, got.Title)
}

func TestCreateWithExplicitID(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	task, err := e.Create(ctx, TaskCreate{ID: "gr-fixd", Title: "explicit id"})
	require.NoError(t, err)
	assert.Equal(t, "gr-fixd", task.ID)

	_, err = e.Create(ctx, TaskCreate{ID: "gr-fixd", Title: "dupe"})
	require.Error(t, err)
	assert.Equal(t, errors.Conflict, errors.CodeOf(err))
}

func TestCreateRejectsBlankTitleAndBadPriority(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Create(ctx, TaskCreate{Title: "   "})
	assert.Equal(t, errors.InvalidArgument, errors.CodeOf(err))

	bad := 9
	_, err = e.Create(ctx, TaskCreate{Title: "ok", Priority: &bad})
	assert.Equal(t, errors.InvalidArgument, errors.CodeOf(err))
}

func TestUpdatePatchPresenceSemantics(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	task, err := e.Create(ctx, TaskCreate{Title: "original", Description: "d1"})
	require.NoError(t, err)

	_, err = e.Update(ctx, task.ID, TaskPatch{})
	assert.Equal(t, errors.InvalidArgument, errors.CodeOf(err), "an empty patch must be rejected")

	newTitle := "renamed"
	got, err := e.Update(ctx, task.ID, TaskPatch{Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, "d1", got.Description, "fields absent from the patch must be untouched")

	empty := ""
	got, err = e.Update(ctx, task.ID, TaskPatch{Description: &empty})
	require.NoError(t, err)
	assert.Equal(t, "", got.Description, "a pointer to a zero value must still overwrite")
}

func TestUpdateStatusTransitionsClosedAt(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	task, err := e.Create(ctx, TaskCreate{Title: "t"})
	require.NoError(t, err)

	closed := string(models.StatusClosed)
	got, err := e.Update(ctx, task.ID, TaskPatch{Status: &closed})
	require.NoError(t, err)
	require.NotNil(t, got.ClosedAt)

	open := string(models.StatusOpen)
	got, err = e.Update(ctx, task.ID, TaskPatch{Status: &open})
	require.NoError(t, err)
	assert.Nil(t, got.ClosedAt)
}

func TestCloseAllOrNothingOnMissingID(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	task, err := e.Create(ctx, TaskCreate{Title: "t"})
	require.NoError(t, err)

	_, err = e.Close(ctx, models.ClosePatch{IDs: []string{task.ID, "gr-ghost"}})
	require.Error(t, err)
	assert.Equal(t, errors.NotFound, errors.CodeOf(err))

	got, err := e.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, got.Status, "a rejected batch must not partially apply")
}

func TestCloseAnnotatesGitRefWhenCommitSupplied(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	task, err := e.Create(ctx, TaskCreate{Title: "t", SourceRepo: "github.com/acme/widgets"})
	require.NoError(t, err)

	commit := "abcdef0123456789abcdef0123456789abcdef01"
	result, err := e.Close(ctx, models.ClosePatch{IDs: []string{task.ID}, Commit: commit})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Annotated)
	assert.Equal(t, models.StatusClosed, result.Tasks[0].Status)

	refs, err := e.ListGitRefs(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, models.RelationClosedBy, refs[0].Relation)

	// Re-closing (already closed) with the same commit must not
	// duplicate the annotation.
	result, err = e.Close(ctx, models.ClosePatch{IDs: []string{task.ID}, Commit: commit})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Annotated)
}

func TestCloseRejectsRepoWithoutCommit(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	task, err := e.Create(ctx, TaskCreate{Title: "t"})
	require.NoError(t, err)

	_, err = e.Close(ctx, models.ClosePatch{IDs: []string{task.ID}, Repo: "github.com/acme/widgets"})
	assert.Equal(t, errors.InvalidArgument, errors.CodeOf(err))
}

func TestCloseRequiresSourceRepoWhenCommitGiven(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	task, err := e.Create(ctx, TaskCreate{Title: "t"})
	require.NoError(t, err)

	_, err = e.Close(ctx, models.ClosePatch{IDs: []string{task.ID}, Commit: "abcdef0123456789abcdef0123456789abcdef01"})
	assert.Equal(t, errors.InvalidArgument, errors.CodeOf(err))
}

func TestReopenClearsClosedAt(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	task, err := e.Create(ctx, TaskCreate{Title: "t"})
	require.NoError(t, err)
	_, err = e.Close(ctx, models.ClosePatch{IDs: []string{task.ID}})
	require.NoError(t, err)

	tasks, err := e.Reopen(ctx, []string{task.ID})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.StatusOpen, tasks[0].Status)
	assert.Nil(t, tasks[0].ClosedAt)
}

func TestAddRemoveLabelsViaEngine(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	task, err := e.Create(ctx, TaskCreate{Title: "t"})
	require.NoError(t, err)

	got, err := e.AddLabels(ctx, task.ID, []string{"Backend", "backend"})
	require.NoError(t, err)
	assert.Equal(t, []string{"backend"}, got.Labels)

	got, err = e.RemoveLabels(ctx, task.ID, []string{"backend", "nope"})
	require.NoError(t, err)
	assert.Empty(t, got.Labels)
}

func TestAddDepRejectsSelfLoopAndMissingEnds(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	task, err := e.Create(ctx, TaskCreate{Title: "t"})
	require.NoError(t, err)

	err = e.AddDep(ctx, task.ID, task.ID)
	assert.Equal(t, errors.InvalidArgument, errors.CodeOf(err))

	err = e.AddDep(ctx, task.ID, "gr-ghost")
	assert.Equal(t, errors.NotFound, errors.CodeOf(err))
}

func TestAddDepIdempotentAndRemove(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	child, err := e.Create(ctx, TaskCreate{Title: "child"})
	require.NoError(t, err)
	parent, err := e.Create(ctx, TaskCreate{Title: "parent"})
	require.NoError(t, err)

	require.NoError(t, e.AddDep(ctx, child.ID, parent.ID))
	require.NoError(t, e.AddDep(ctx, child.ID, parent.ID))

	got, err := e.Get(ctx, child.ID)
	require.NoError(t, err)
	assert.Len(t, got.Deps, 1)

	require.NoError(t, e.RemoveDep(ctx, child.ID, parent.ID))
	require.NoError(t, e.RemoveDep(ctx, child.ID, parent.ID), "removing an absent edge must succeed")
}
