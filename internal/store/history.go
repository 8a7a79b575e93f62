package store

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/waabox/builddeck/internal/domain"
)

// MaxHistory is the number of builds kept in the local history.
const MaxHistory = 20

// HistoryRecord is one build remembered by the client for convenience.
// It is never a source of truth for the build's state.
type HistoryRecord struct {
	ID          domain.BuildID     `json:"id"`
	Prompt      string             `json:"prompt"`
	Status      domain.BuildStatus `json:"status"`
	Time        time.Time          `json:"time"`
	OwnerUserID string             `json:"ownerUserId"`
}

// History is the most-recent-first list of builds persisted under KeyHistory.
type History struct {
	kv KV
	mu sync.Mutex
}

// NewHistory creates a History backed by kv.
func NewHistory(kv KV) *History {
	return &History{kv: kv}
}

// Load returns the stored records, most recent first. A corrupt value is
// treated as an empty history.
func (h *History) Load() ([]HistoryRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.load()
}

func (h *History) load() ([]HistoryRecord, error) {
	raw, ok, err := h.kv.Get(KeyHistory)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var records []HistoryRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, nil
	}
	return records, nil
}

// Record inserts rec at the front of the history. A record with the same
// build ID is replaced rather than duplicated. The list is capped at MaxHistory.
func (h *History) Record(rec HistoryRecord) ([]HistoryRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, err := h.load()
	if err != nil {
		return nil, err
	}
	next := make([]HistoryRecord, 0, len(current)+1)
	next = append(next, rec)
	for _, r := range current {
		if r.ID == rec.ID && rec.ID != "" {
			continue
		}
		next = append(next, r)
	}
	if len(next) > MaxHistory {
		next = next[:MaxHistory]
	}
	data, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("encoding history: %w", err)
	}
	if err := h.kv.Set(KeyHistory, string(data)); err != nil {
		return nil, fmt.Errorf("saving history: %w", err)
	}
	return next, nil
}

// LatestInFlight returns the newest record for owner whose status was not
// terminal when it was recorded.
func (h *History) LatestInFlight(owner string) (HistoryRecord, bool, error) {
	records, err := h.Load()
	if err != nil {
		return HistoryRecord{}, false, err
	}
	for _, r := range records {
		if r.OwnerUserID == owner && r.ID != "" && !r.Status.IsTerminal() {
			return r, true, nil
		}
	}
	return HistoryRecord{}, false, nil
}
