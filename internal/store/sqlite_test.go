package store

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabaini/grns/internal/models"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grns.db")
	db, err := Open(path, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestTask(id string) *models.Task {
	now := nowUTC()
	return &models.Task{
		ID:        id,
		Title:     "a test task",
		Type:      models.TypeTask,
		Status:    models.StatusOpen,
		Priority:  2,
		Labels:    []string{},
		Custom:    map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func taskIDFor(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 4)
	for j := range b {
		b[j] = letters[(i*7+j*13)%len(letters)]
	}
	return "gr-" + string(b)
}

func TestOpenAppliesSchemaIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grns.db")
	logger := testLogger()

	db1, err := Open(path, logger)
	require.NoError(t, err)
	require.NoError(t, db1.Close())

	// Re-opening the same file re-runs migrate(); schema uses
	// CREATE TABLE/INDEX IF NOT EXISTS so this must not error.
	db2, err := Open(path, logger)
	require.NoError(t, err)
	require.NoError(t, db2.Close())
}

func TestOpenInMemory(t *testing.T) {
	db, err := Open(":memory:", testLogger())
	require.NoError(t, err)
	defer db.Close()

	_, err = db.GetTask(context.Background(), "gr-aaaa")
	assert.Error(t, err)
}

func TestWriteTxCommitsAndRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	task := newTestTask("gr-0001")
	err := db.WriteTx(ctx, func(tx *Tx) error {
		return tx.InsertTask(ctx, task)
	})
	require.NoError(t, err)

	got, err := db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Title, got.Title)

	// A failing fn must roll back: insert a second task, then fail.
	failErr := assert.AnError
	err = db.WriteTx(ctx, func(tx *Tx) error {
		if insertErr := tx.InsertTask(ctx, newTestTask("gr-0002")); insertErr != nil {
			return insertErr
		}
		return failErr
	})
	assert.ErrorIs(t, err, failErr)

	_, err = db.GetTask(ctx, "gr-0002")
	assert.Error(t, err, "rolled-back insert must not be visible")
}

func TestWriteTxSerializesConcurrentWriters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	var successes int64
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			task := newTestTask(taskIDFor(i))
			err := db.WriteTx(ctx, func(tx *Tx) error {
				return tx.InsertTask(ctx, task)
			})
			if err == nil {
				atomic.AddInt64(&successes, 1)
			}
		}(i)
	}
	wg.Wait()
	assert.EqualValues(t, n, successes, "the write mutex must serialize access so every distinct insert succeeds")

	ids, err := db.ListAllTaskIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, n)
}

func TestWriteTxRespectsContextCancellation(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := db.WriteTx(ctx, func(tx *Tx) error {
		t.Fatal("fn must not run once ctx is already cancelled")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteTxPanicRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = db.WriteTx(ctx, func(tx *Tx) error {
			if err := tx.InsertTask(ctx, newTestTask("gr-panic")); err != nil {
				t.Fatal(err)
			}
			panic("boom")
		})
	})

	_, err := db.GetTask(ctx, "gr-panic")
	assert.Error(t, err, "panicking fn must roll back its partial work")
}
