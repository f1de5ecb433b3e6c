package engine

import (
	"context"
	"regexp"
	"time"

	"github.com/sabaini/grns/internal/errors"
	"github.com/sabaini/grns/internal/models"
)

// allStatusesExceptClosed backs the default Stale filter: every status
// other than closed.
var allStatusesExceptClosed = []models.Status{
	models.StatusOpen,
	models.StatusInProgress,
	models.StatusBlocked,
	models.StatusDeferred,
	models.StatusPinned,
	models.StatusTombstone,
}

// validateFilter rejects a malformed spec regex before it reaches the
// store. The SQLite REGEXP function only runs against rows that
// survive the rest of the WHERE clause, so leaving validation to the
// store would let an invalid pattern silently return an empty page
// whenever the other filters already match nothing.
func validateFilter(filter models.Filter) error {
	if filter.SpecRegex == "" {
		return nil
	}
	if _, err := regexp.Compile(filter.SpecRegex); err != nil {
		return errors.Invalidf("invalid spec regex: %v", err)
	}
	return nil
}

// List evaluates the composed filter, returning a deterministic page.
func (e *Engine) List(ctx context.Context, filter models.Filter, page models.Page) ([]*models.Task, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	return e.db.ListTasks(ctx, filter, page)
}

// Search composes an FTS query with the given filter.
func (e *Engine) Search(ctx context.Context, query string, filter models.Filter, page models.Page) ([]*models.Task, error) {
	if query == "" {
		return nil, errors.Invalid("search query must not be empty")
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	return e.db.Search(ctx, query, filter, page)
}

// Ready returns open/in_progress tasks with no unresolved "blocks"
// parent, regardless of cycles (a cycle leaves both ends not-ready).
func (e *Engine) Ready(ctx context.Context, page models.Page) ([]*models.Task, error) {
	return e.db.ListReady(ctx, page)
}

// Stale returns tasks last updated more than days ago. By default
// closed tasks are excluded; supplying an explicit status filter that
// includes closed overrides that default.
func (e *Engine) Stale(ctx context.Context, days int, filter models.Filter, page models.Page) ([]*models.Task, error) {
	if days < 0 {
		return nil, errors.Invalid("days must be non-negative")
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	cutoff := nowUTC().Add(-time.Duration(days) * 24 * time.Hour)
	filter.UpdatedBefore = &cutoff
	if len(filter.Status) == 0 {
		filter.Status = allStatusesExceptClosed
	}
	return e.db.ListTasks(ctx, filter, page)
}
