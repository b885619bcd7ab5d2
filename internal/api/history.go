package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-fan/internal/device"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// historyQuery is the parsed query string of GET /fan/history.
type historyQuery struct {
	since time.Time // zero means no lower bound
	limit int
}

// parseHistoryQuery reads since (RFC3339, any offset) and limit
// (1..maxHistoryLimit, default defaultHistoryLimit).
func parseHistoryQuery(q url.Values) (historyQuery, error) {
	hq := historyQuery{limit: defaultHistoryLimit}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		switch {
		case err != nil || n <= 0:
			return hq, fmt.Errorf("invalid limit %q", raw)
		case n > maxHistoryLimit:
			return hq, fmt.Errorf("limit exceeds maximum of %d", maxHistoryLimit)
		}
		hq.limit = n
	}

	if raw := q.Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return hq, fmt.Errorf("invalid since timestamp %q", raw)
		}
		hq.since = t.UTC()
	}
	return hq, nil
}

// handleGetHistory returns recorded snapshots, newest first.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		fail(w, http.StatusServiceUnavailable, "state history not available")
		return
	}

	hq, err := parseHistoryQuery(r.URL.Query())
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := s.registry.History(r.Context(), hq.since, hq.limit)
	if errors.Is(err, device.ErrDeviceNotFound) {
		fail(w, http.StatusNotFound, "fan record not loaded")
		return
	}
	if err != nil {
		s.logger.Error("failed to read state history", "error", err)
		fail(w, http.StatusInternalServerError, "failed to read state history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"fan_id":  s.fanID,
		"entries": entries,
		"count":   len(entries),
	})
}
