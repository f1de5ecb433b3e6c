// Package importexport implements the newline-delimited JSON
// serialization format: one task per line, scalar fields alongside an
// embedded dep-edge array, with streaming/buffered import policy
// knobs for dedupe and orphan handling.
package importexport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/sabaini/grns/internal/errors"
	"github.com/sabaini/grns/internal/models"
	"github.com/sabaini/grns/internal/store"
)

// Record is the on-the-wire shape of one exported NDJSON line. Deps is
// always present (possibly empty). Import decodes lines into
// patchRecord instead, where a nil Deps means the key was absent from
// the line, distinct from an empty array.
type Record struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Type        string            `json:"type"`
	Status      string            `json:"status"`
	Priority    int               `json:"priority"`
	Description string            `json:"description,omitempty"`
	Acceptance  string            `json:"acceptance,omitempty"`
	Assignee    string            `json:"assignee,omitempty"`
	Parent      string            `json:"parent,omitempty"`
	SpecID      string            `json:"spec_id,omitempty"`
	SourceRepo  string            `json:"source_repo,omitempty"`
	Labels      []string          `json:"labels"`
	Custom      map[string]string `json:"custom,omitempty"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
	ClosedAt    string            `json:"closed_at,omitempty"`
	Deps        []models.DepEdge  `json:"deps"`
}

func toRecord(t *models.Task) Record {
	deps := t.Deps
	if deps == nil {
		deps = []models.DepEdge{}
	}
	labels := t.Labels
	if labels == nil {
		labels = []string{}
	}
	r := Record{
		ID:          t.ID,
		Title:       t.Title,
		Type:        string(t.Type),
		Status:      string(t.Status),
		Priority:    t.Priority,
		Description: t.Description,
		Acceptance:  t.Acceptance,
		Assignee:    t.Assignee,
		Parent:      t.Parent,
		SpecID:      t.SpecID,
		SourceRepo:  t.SourceRepo,
		Labels:      labels,
		Custom:      t.Custom,
		CreatedAt:   t.CreatedAt.Format(timeLayout),
		UpdatedAt:   t.UpdatedAt.Format(timeLayout),
		Deps:        deps,
	}
	if t.ClosedAt != nil {
		r.ClosedAt = t.ClosedAt.Format(timeLayout)
	}
	return r
}

// Export serializes every task to w, one JSON object per line, in
// deterministic id order.
func Export(ctx context.Context, db *store.DB, w io.Writer) error {
	ids, err := db.ListAllTaskIDs(ctx)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, id := range ids {
		task, err := db.GetTask(ctx, id)
		if err != nil {
			return err
		}
		if err := enc.Encode(toRecord(task)); err != nil {
			return errors.InternalErr(err, "encode export record")
		}
	}
	return bw.Flush()
}
