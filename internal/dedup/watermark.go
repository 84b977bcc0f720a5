// Package dedup holds the poll path's low-water mark.
//
// The watermark lives in process memory. A cold start resets it to five
// minutes before boot, so submissions older than that are never re-sent and
// submissions made while no instance was warm for longer than that are
// missed. Running more than one poller instance needs an external store.
package dedup

import (
	"sync"
	"time"

	"hubrelay/internal/types"
)

// InitialLookback is how far back a fresh watermark starts.
const InitialLookback = 5 * time.Minute

// Watermark is the boundary below which polled events count as already
// notified. The mutex keeps reads and writes memory-safe; it does not
// serialize overlapping passes, which may both notify the same event.
type Watermark struct {
	mu            sync.Mutex
	lastCheckedAt time.Time
}

// NewWatermark starts the watermark lookback before now.
func NewWatermark(now time.Time, lookback time.Duration) *Watermark {
	if lookback <= 0 {
		lookback = InitialLookback
	}
	return &Watermark{lastCheckedAt: now.Add(-lookback)}
}

// LastCheckedAt returns the current boundary.
func (w *Watermark) LastCheckedAt() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastCheckedAt
}

// Advance moves the boundary to passStartedAt. Using the pass start rather
// than the newest event time keeps events that arrive mid-pass selectable
// next time. The boundary never moves backwards.
func (w *Watermark) Advance(passStartedAt time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if passStartedAt.After(w.lastCheckedAt) {
		w.lastCheckedAt = passStartedAt
	}
}

// SelectNew keeps candidates that occurred strictly after lastCheckedAt, in
// input order.
func SelectNew(candidates []types.CanonicalEvent, lastCheckedAt time.Time) []types.CanonicalEvent {
	boundary := lastCheckedAt.UnixMilli()
	out := make([]types.CanonicalEvent, 0, len(candidates))
	for _, c := range candidates {
		if c.OccurredAt > boundary {
			out = append(out, c)
		}
	}
	return out
}
