package importexport

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sabaini/grns/internal/canon"
	"github.com/sabaini/grns/internal/errors"
	"github.com/sabaini/grns/internal/models"
	"github.com/sabaini/grns/internal/store"
)

const timeLayout = time.RFC3339Nano

// Dedupe policy for a record whose id already exists in the store.
type Dedupe string

const (
	DedupeSkip      Dedupe = "skip"
	DedupeOverwrite Dedupe = "overwrite"
	DedupeError     Dedupe = "error"
)

// OrphanHandling policy for a dep edge whose parent cannot be
// resolved in the store or the current import batch.
type OrphanHandling string

const (
	OrphanStrict  OrphanHandling = "strict"
	OrphanLenient OrphanHandling = "lenient"
)

// Options controls one Import call.
type Options struct {
	Stream         bool
	Dedupe         Dedupe
	OrphanHandling OrphanHandling
	DryRun         bool
}

func (o Options) normalized() Options {
	if o.Dedupe == "" {
		o.Dedupe = DedupeSkip
	}
	if o.OrphanHandling == "" {
		o.OrphanHandling = OrphanLenient
	}
	return o
}

// Result aggregates the outcome of an Import call. WouldCreate and
// WouldSkip mirror Created/Skipped specifically for dry runs, so a CLI
// can print "would create N / would skip M" without reinterpreting
// the dry_run flag.
type Result struct {
	Created     int      `json:"created"`
	Skipped     int      `json:"skipped"`
	Errors      int      `json:"errors"`
	Messages    []string `json:"messages"`
	DryRun      bool     `json:"dry_run"`
	WouldCreate int      `json:"would_create,omitempty"`
	WouldSkip   int      `json:"would_skip,omitempty"`
}

// patchRecord decodes one NDJSON line with presence-tracking: a nil
// field was absent (or explicit JSON null) from the line.
type patchRecord struct {
	ID          string             `json:"id"`
	Title       *string            `json:"title"`
	Type        *string            `json:"type"`
	Status      *string            `json:"status"`
	Priority    *int               `json:"priority"`
	Description *string            `json:"description"`
	Acceptance  *string            `json:"acceptance"`
	Assignee    *string            `json:"assignee"`
	Parent      *string            `json:"parent"`
	SpecID      *string            `json:"spec_id"`
	SourceRepo  *string            `json:"source_repo"`
	Labels      *[]string          `json:"labels"`
	Custom      *map[string]string `json:"custom"`
	CreatedAt   *string            `json:"created_at"`
	UpdatedAt   *string            `json:"updated_at"`
	ClosedAt    *string            `json:"closed_at"`
	Deps        *[]models.DepEdge  `json:"deps"`
}

type line struct {
	no  int
	raw []byte
}

var errDryRun = stderrors.New("dry run rollback")

// Import applies an NDJSON stream against db under opts. A JSON syntax
// error anywhere in the input aborts the whole import (returns a
// non-nil error); per-record validation and policy outcomes
// (dedupe/orphan) are aggregated into the returned Result instead.
//
// Buffered mode (opts.Stream == false) decodes every line before
// applying any of them, so a dep may reference a parent defined later
// in the file. Stream mode decodes and applies one line at a time, so
// "the current import batch" for orphan resolution only covers lines
// already applied, not ones still to come — the price of never
// holding more than one record in memory.
func Import(ctx context.Context, db *store.DB, r io.Reader, opts Options) (*Result, error) {
	opts = opts.normalized()
	result := &Result{Messages: []string{}}

	if opts.Stream {
		if err := runStreaming(ctx, db, r, opts, result); err != nil {
			return nil, err
		}
	} else {
		lines, err := readAllLines(r)
		if err != nil {
			return nil, err
		}
		// Decoding and canonicalization-checking each line is independent
		// of every other line, so the CPU-bound parse phase fans out
		// across an errgroup; the serialized apply phase below still runs
		// one record at a time against the single write transaction.
		records := make([]*patchRecord, len(lines))
		g, gctx := errgroup.WithContext(ctx)
		for i, ln := range lines {
			i, ln := i, ln
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				rec, err := decodeLine(ln)
				if err != nil {
					return err
				}
				records[i] = rec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		batchIDs := make(map[string]bool, len(records))
		for _, rec := range records {
			batchIDs[rec.ID] = true
		}
		// Two-phase apply: every record's scalar row is inserted/updated
		// before any dep edge is added. task_deps.parent_id carries an
		// immediate foreign key, so a single interleaved pass would fail
		// whenever a child record precedes its parent in the file -- the
		// exact forward-reference case buffered mode exists to support.
		err = db.WriteTx(ctx, func(tx *store.Tx) error {
			pending := make([]pendingDeps, 0, len(records))
			for i, rec := range records {
				taskID, deps, ok := applyTaskScalar(ctx, tx, lines[i].no, rec, opts, result)
				if ok {
					pending = append(pending, pendingDeps{lineNo: lines[i].no, taskID: taskID, deps: deps})
				}
			}
			for _, p := range pending {
				applyDeps(ctx, tx, p.lineNo, p.taskID, p.deps, opts, batchIDs, result)
			}
			if opts.DryRun {
				return errDryRun
			}
			return nil
		})
		if err != nil && !stderrors.Is(err, errDryRun) {
			return nil, err
		}
	}

	if opts.DryRun {
		result.DryRun = true
		result.WouldCreate = result.Created
		result.WouldSkip = result.Skipped
	}
	return result, nil
}

func runStreaming(ctx context.Context, db *store.DB, r io.Reader, opts Options, result *Result) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	batchIDs := make(map[string]bool)
	lineNo := 0

	err := db.WriteTx(ctx, func(tx *store.Tx) error {
		for scanner.Scan() {
			lineNo++
			if err := ctx.Err(); err != nil {
				return err
			}
			raw := scanner.Bytes()
			if len(bytesTrimSpace(raw)) == 0 {
				continue
			}
			rec, err := decodeLine(line{no: lineNo, raw: append([]byte(nil), raw...)})
			if err != nil {
				return err
			}
			taskID, deps, ok := applyTaskScalar(ctx, tx, lineNo, rec, opts, result)
			if ok {
				applyDeps(ctx, tx, lineNo, taskID, deps, opts, batchIDs, result)
			}
			batchIDs[rec.ID] = true
		}
		if err := scanner.Err(); err != nil {
			return errors.InternalErr(err, "read import stream")
		}
		if opts.DryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !stderrors.Is(err, errDryRun) {
		return err
	}
	return nil
}

func bytesTrimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && (b[start] == ' ' || b[start] == '\t' || b[start] == '\r' || b[start] == '\n') {
		start++
	}
	for end > start && (b[end-1] == ' ' || b[end-1] == '\t' || b[end-1] == '\r' || b[end-1] == '\n') {
		end--
	}
	return b[start:end]
}

func readAllLines(r io.Reader) ([]line, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var lines []line
	no := 0
	for scanner.Scan() {
		no++
		raw := scanner.Bytes()
		if len(bytesTrimSpace(raw)) == 0 {
			continue
		}
		lines = append(lines, line{no: no, raw: append([]byte(nil), raw...)})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.InternalErr(err, "read import input")
	}
	return lines, nil
}

func decodeLine(ln line) (*patchRecord, error) {
	var rec patchRecord
	if err := json.Unmarshal(ln.raw, &rec); err != nil {
		return nil, errors.Invalidf("line %d: %v", ln.no, err)
	}
	if _, err := canon.ID(rec.ID); err != nil {
		return nil, errors.Invalidf("line %d: %v", ln.no, err)
	}
	return &rec, nil
}

// pendingDeps defers one record's dep edges to the second apply phase,
// once every record's scalar row in the batch is known to exist.
type pendingDeps struct {
	lineNo int
	taskID string
	deps   *[]models.DepEdge
}

// applyTaskScalar applies one decoded record's scalar row (insert or
// overwrite-merge) inside the shared write transaction, mutating
// result in place. It never returns an error: per-record failures are
// recorded as messages so the rest of the batch keeps applying. The
// returned ok is false when there is nothing left to do for this
// record (skipped or failed); otherwise the caller still owes a call
// to applyDeps for the returned taskID/deps.
func applyTaskScalar(ctx context.Context, tx *store.Tx, lineNo int, rec *patchRecord, opts Options, result *Result) (taskID string, deps *[]models.DepEdge, ok bool) {
	fail := func(format string, args ...interface{}) {
		result.Errors++
		result.Messages = append(result.Messages, fmt.Sprintf("line %d: %s", lineNo, fmt.Sprintf(format, args...)))
	}

	existing, err := tx.GetTask(ctx, rec.ID)
	if err != nil && errors.CodeOf(err) != errors.NotFound {
		fail("%v", err)
		return "", nil, false
	}

	if existing == nil {
		task, ferr := buildNewTask(rec)
		if ferr != nil {
			fail("%v", ferr)
			return "", nil, false
		}
		if err := tx.InsertTask(ctx, task); err != nil {
			fail("%v", err)
			return "", nil, false
		}
		result.Created++
		return task.ID, rec.Deps, true
	}

	switch opts.Dedupe {
	case DedupeSkip:
		result.Skipped++
		return "", nil, false
	case DedupeError:
		fail("task already exists: %s", rec.ID)
		return "", nil, false
	case DedupeOverwrite:
		merged, ferr := mergeTask(existing, rec)
		if ferr != nil {
			fail("%v", ferr)
			return "", nil, false
		}
		if err := tx.UpdateTaskScalars(ctx, merged); err != nil {
			fail("%v", err)
			return "", nil, false
		}
		if rec.Labels != nil {
			if err := tx.ReplaceLabels(ctx, merged.ID, merged.Labels); err != nil {
				fail("%v", err)
				return "", nil, false
			}
		}
		return merged.ID, rec.Deps, true
	}
	return "", nil, false
}

// buildNewTask canonicalizes a record with no prior stored task.
// Title is required; every other field defaults the same way Create
// does.
func buildNewTask(rec *patchRecord) (*models.Task, error) {
	if rec.Title == nil {
		return nil, errors.Invalid("title is required for new task")
	}
	title, err := canon.Title(*rec.Title)
	if err != nil {
		return nil, err
	}

	typ := models.TypeTask
	if rec.Type != nil {
		if typ, err = canon.TaskType(*rec.Type); err != nil {
			return nil, err
		}
	}

	priority := 2
	if rec.Priority != nil {
		if priority, err = canon.Priority(*rec.Priority); err != nil {
			return nil, err
		}
	}

	status := models.StatusOpen
	if rec.Status != nil {
		if status, err = canon.Status(*rec.Status); err != nil {
			return nil, err
		}
	}

	var labels []string
	if rec.Labels != nil {
		if labels, err = canon.Labels(*rec.Labels); err != nil {
			return nil, err
		}
	}

	sourceRepo := ""
	if rec.SourceRepo != nil && *rec.SourceRepo != "" {
		if sourceRepo, err = canon.RepoSlug(*rec.SourceRepo); err != nil {
			return nil, err
		}
	}

	created := nowUTC()
	if rec.CreatedAt != nil {
		if t, err := time.Parse(timeLayout, *rec.CreatedAt); err == nil {
			created = t.UTC()
		} else if t, err := time.Parse(time.RFC3339, *rec.CreatedAt); err == nil {
			created = t.UTC()
		}
	}
	updated := created
	if rec.UpdatedAt != nil {
		if t, err := time.Parse(timeLayout, *rec.UpdatedAt); err == nil {
			updated = t.UTC()
		} else if t, err := time.Parse(time.RFC3339, *rec.UpdatedAt); err == nil {
			updated = t.UTC()
		}
	}

	task := &models.Task{
		ID:         rec.ID,
		Title:      title,
		Type:       typ,
		Status:     status,
		Priority:   priority,
		Parent:     derefStr(rec.Parent),
		SpecID:     derefStr(rec.SpecID),
		SourceRepo: sourceRepo,
		Labels:     labels,
		CreatedAt:  created,
		UpdatedAt:  updated,
	}
	if rec.Description != nil {
		task.Description = *rec.Description
	}
	if rec.Acceptance != nil {
		task.Acceptance = *rec.Acceptance
	}
	if rec.Assignee != nil {
		task.Assignee = *rec.Assignee
	}
	if rec.Custom != nil {
		task.Custom = *rec.Custom
	}

	if status == models.StatusClosed {
		closedAt := updated
		if rec.ClosedAt != nil {
			if t, err := time.Parse(timeLayout, *rec.ClosedAt); err == nil {
				closedAt = t.UTC()
			}
		}
		task.ClosedAt = &closedAt
	}
	return task, nil
}

// mergeTask applies the overwrite-merge rules of §4.6 onto a copy of
// the existing task: fields present in rec replace stored values,
// fields absent are preserved.
func mergeTask(existing *models.Task, rec *patchRecord) (*models.Task, error) {
	task := *existing
	var err error

	if rec.Title != nil {
		if task.Title, err = canon.Title(*rec.Title); err != nil {
			return nil, err
		}
	}
	if rec.Type != nil {
		if task.Type, err = canon.TaskType(*rec.Type); err != nil {
			return nil, err
		}
	}
	if rec.Priority != nil {
		if task.Priority, err = canon.Priority(*rec.Priority); err != nil {
			return nil, err
		}
	}
	if rec.Description != nil {
		task.Description = *rec.Description
	}
	if rec.Acceptance != nil {
		task.Acceptance = *rec.Acceptance
	}
	if rec.Assignee != nil {
		task.Assignee = *rec.Assignee
	}
	if rec.Parent != nil {
		task.Parent = *rec.Parent
	}
	if rec.SpecID != nil {
		task.SpecID = *rec.SpecID
	}
	if rec.SourceRepo != nil {
		repo := *rec.SourceRepo
		if repo != "" {
			if repo, err = canon.RepoSlug(repo); err != nil {
				return nil, err
			}
		}
		task.SourceRepo = repo
	}
	if rec.Custom != nil {
		task.Custom = *rec.Custom
	}
	if rec.Labels != nil {
		if task.Labels, err = canon.Labels(*rec.Labels); err != nil {
			return nil, err
		}
	}

	now := nowUTC()
	if rec.Status != nil {
		status, err := canon.Status(*rec.Status)
		if err != nil {
			return nil, err
		}
		task.Status = status
		if status == models.StatusClosed {
			closedAt := now
			if rec.UpdatedAt != nil {
				if t, err := time.Parse(timeLayout, *rec.UpdatedAt); err == nil {
					closedAt = t.UTC()
				} else if t, err := time.Parse(time.RFC3339, *rec.UpdatedAt); err == nil {
					closedAt = t.UTC()
				}
			}
			task.ClosedAt = &closedAt
		} else {
			task.ClosedAt = nil
		}
	}
	task.UpdatedAt = now
	return &task, nil
}

// applyDeps implements the three deps presence cases for both create
// and overwrite, dropping orphan edges per opts.OrphanHandling.
func applyDeps(ctx context.Context, tx *store.Tx, lineNo int, taskID string, deps *[]models.DepEdge, opts Options, batchIDs map[string]bool, result *Result) {
	if deps == nil {
		return // absent: preserve existing dep edges untouched
	}
	if err := tx.ClearDeps(ctx, taskID); err != nil {
		result.Errors++
		result.Messages = append(result.Messages, fmt.Sprintf("line %d: %v", lineNo, err))
		return
	}
	for _, d := range *deps {
		if d.Type != models.DepBlocks {
			result.Errors++
			result.Messages = append(result.Messages, fmt.Sprintf("line %d: unsupported dep type %q for parent %s", lineNo, d.Type, d.ParentID))
			continue
		}
		resolved := batchIDs[d.ParentID]
		if !resolved {
			if _, err := tx.GetTask(ctx, d.ParentID); err == nil {
				resolved = true
			}
		}
		if !resolved {
			if opts.OrphanHandling == OrphanStrict {
				result.Errors++
				result.Messages = append(result.Messages, fmt.Sprintf("line %d: strict orphan dep: %s -> %s", lineNo, taskID, d.ParentID))
			}
			continue
		}
		if err := tx.AddDep(ctx, taskID, d.ParentID); err != nil {
			result.Errors++
			result.Messages = append(result.Messages, fmt.Sprintf("line %d: %v", lineNo, err))
		}
	}
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
