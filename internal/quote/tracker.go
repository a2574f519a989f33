package quote

import "sync"

// Staleness reasons.
const (
	StaleSubmissionFailed = "submission_failed"
	StaleBlockhashExpired = "blockhash_expired"
	StaleAttemptEnded     = "attempt_ended"
	StaleSuperseded       = "superseded"
)

// Tracker remembers quotes that must not be built again.
// Staleness is tracked per quote reference ID.
type Tracker struct {
	mu    sync.RWMutex
	stale map[string]string
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{stale: make(map[string]string)}
}

// MarkStale marks a quote stale. The first reason wins.
func (t *Tracker) MarkStale(quoteID, reason string) {
	if quoteID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.stale[quoteID]; !ok {
		t.stale[quoteID] = reason
	}
}

// IsStale reports whether the quote was marked stale.
func (t *Tracker) IsStale(quoteID string) bool {
	_, ok := t.Reason(quoteID)
	return ok
}

// Reason returns why the quote was marked stale.
func (t *Tracker) Reason(quoteID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	reason, ok := t.stale[quoteID]
	return reason, ok
}
