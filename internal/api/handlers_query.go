package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sabaini/grns/internal/errors"
	"github.com/sabaini/grns/internal/models"
)

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseFilter(r *http.Request) (models.Filter, error) {
	q := r.URL.Query()
	var filter models.Filter

	filter.Label = splitCSV(q.Get("label"))
	filter.LabelAny = splitCSV(q.Get("label-any"))
	filter.Type = models.Type(q.Get("type"))
	filter.SpecRegex = q.Get("spec")
	filter.Search = q.Get("search")

	for _, s := range splitCSV(q.Get("status")) {
		filter.Status = append(filter.Status, models.Status(s))
	}

	if raw := q.Get("updated-before"); raw != "" {
		t, err := parseFlexibleTime(raw)
		if err != nil {
			return filter, errors.Invalidf("invalid updated-before: %s", raw)
		}
		filter.UpdatedBefore = &t
	}
	return filter, nil
}

func parseFlexibleTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", raw)
}

func parsePage(r *http.Request) (models.Page, error) {
	q := r.URL.Query()
	page := models.DefaultPage
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return page, errors.Invalid("limit must be an integer")
		}
		page.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return page, errors.Invalid("offset must be an integer")
		}
		page.Offset = n
	}
	return page, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := parsePage(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tasks, err := s.eng.List(r.Context(), filter, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := parsePage(r)
	if err != nil {
		writeError(w, err)
		return
	}
	query := r.URL.Query().Get("q")
	tasks, err := s.eng.Search(r.Context(), query, filter, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tasks, err := s.eng.Ready(r.Context(), page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

func (s *Server) handleStale(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	page, err := parsePage(r)
	if err != nil {
		writeError(w, err)
		return
	}
	days := 14
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, errors.Invalid("days must be an integer"))
			return
		}
		days = n
	}
	tasks, err := s.eng.Stale(r.Context(), days, filter, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}
