package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabaini/grns/internal/models"
)

func seedTask(t *testing.T, db *DB, id string, mutate func(*models.Task)) *models.Task {
	t.Helper()
	task := newTestTask(id)
	if mutate != nil {
		mutate(task)
	}
	insertTask(t, db, task)
	return task
}

func TestGetTasksPreservesOrderAndOmitsMissing(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedTask(t, db, "gr-0001", nil)
	seedTask(t, db, "gr-0002", nil)

	got, err := db.GetTasks(ctx, []string{"gr-0002", "gr-missing", "gr-0001"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "gr-0002", got[0].ID)
	assert.Equal(t, "gr-0001", got[1].ID)
}

func TestListTasksFiltersByStatusTypeAndLabelAnd(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	seedTask(t, db, "gr-bug1", func(task *models.Task) {
		task.Type = models.TypeBug
		task.Status = models.StatusOpen
		task.Labels = []string{"backend", "urgent"}
	})
	seedTask(t, db, "gr-bug2", func(task *models.Task) {
		task.Type = models.TypeBug
		task.Status = models.StatusClosed
		now := nowUTC()
		task.ClosedAt = &now
		task.Labels = []string{"backend"}
	})
	seedTask(t, db, "gr-feat1", func(task *models.Task) {
		task.Type = models.TypeFeature
		task.Status = models.StatusOpen
		task.Labels = []string{"backend", "urgent"}
	})

	got, err := db.ListTasks(ctx, models.Filter{
		Type:   models.TypeBug,
		Status: []models.Status{models.StatusOpen},
	}, models.Page{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "gr-bug1", got[0].ID)

	// Label-AND: task must carry every listed label.
	got, err = db.ListTasks(ctx, models.Filter{Label: []string{"backend", "urgent"}}, models.Page{})
	require.NoError(t, err)
	ids := taskIDs(got)
	assert.ElementsMatch(t, []string{"gr-bug1", "gr-feat1"}, ids)

	// Label-ANY: task must carry at least one listed label.
	got, err = db.ListTasks(ctx, models.Filter{LabelAny: []string{"urgent"}}, models.Page{})
	require.NoError(t, err)
	ids = taskIDs(got)
	assert.ElementsMatch(t, []string{"gr-bug1", "gr-feat1"}, ids)
}

func TestListTasksSpecRegexFilter(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedTask(t, db, "gr-spc1", func(task *models.Task) { task.SpecID = "PROJ-123" })
	seedTask(t, db, "gr-spc2", func(task *models.Task) { task.SpecID = "OTHER-1" })

	got, err := db.ListTasks(ctx, models.Filter{SpecRegex: "^PROJ-"}, models.Page{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "gr-spc1", got[0].ID)

	_, err = db.ListTasks(ctx, models.Filter{SpecRegex: "("}, models.Page{})
	assert.Error(t, err, "an invalid regex must surface as a rejected filter, not an internal error")
}

func TestListTasksUpdatedBeforeAndPagination(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	cutoff := nowUTC()
	seedTask(t, db, "gr-old1", func(task *models.Task) {
		task.UpdatedAt = cutoff.Add(-time.Hour)
	})
	seedTask(t, db, "gr-new1", func(task *models.Task) {
		task.UpdatedAt = cutoff.Add(time.Hour)
	})

	got, err := db.ListTasks(ctx, models.Filter{UpdatedBefore: &cutoff}, models.Page{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "gr-old1", got[0].ID)

	_, err = db.ListTasks(ctx, models.Filter{}, models.Page{Limit: -1})
	assert.Error(t, err)

	got, err = db.ListTasks(ctx, models.Filter{}, models.Page{Limit: 1, Offset: 0})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestListReadyExcludesBlockedOnOpenParent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	parentOpen := seedTask(t, db, "gr-popn", nil)
	parentClosed := seedTask(t, db, "gr-pcls", func(task *models.Task) {
		task.Status = models.StatusClosed
		now := nowUTC()
		task.ClosedAt = &now
	})
	blocked := seedTask(t, db, "gr-blkd", nil)
	ready := seedTask(t, db, "gr-redy", nil)

	require.NoError(t, db.WriteTx(ctx, func(tx *Tx) error {
		if err := tx.AddDep(ctx, blocked.ID, parentOpen.ID); err != nil {
			return err
		}
		return tx.AddDep(ctx, ready.ID, parentClosed.ID)
	}))

	got, err := db.ListReady(ctx, models.Page{})
	require.NoError(t, err)
	ids := taskIDs(got)
	assert.Contains(t, ids, ready.ID)
	assert.Contains(t, ids, parentOpen.ID, "a task with no deps at all is ready")
	assert.NotContains(t, ids, blocked.ID, "a task blocked on an open parent is not ready")
}

func TestListAllTaskIDsDeterministicOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedTask(t, db, "gr-0003", nil)
	seedTask(t, db, "gr-0001", nil)
	seedTask(t, db, "gr-0002", nil)

	ids, err := db.ListAllTaskIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gr-0001", "gr-0002", "gr-0003"}, ids)
}

func taskIDs(tasks []*models.Task) []string {
	ids := make([]string, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
	}
	return ids
}
