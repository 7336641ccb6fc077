// Package tracker enforces single-position-per-instrument admission
// over a chronologically ordered signal stream.
package tracker

import (
	"sync"
	"time"

	"signal-sweep-lab/internal/domain"
)

// Tracker admits position windows greedily: the first signal on an
// instrument claims its whole holding window, and later signals whose
// windows intersect it are rejected. Different instruments never
// interact.
//
// Admission order matters. Callers feed signals sorted by timestamp so
// the greedy choice is the earliest signal, matching how a live system
// would have taken the positions.
type Tracker struct {
	mu      sync.Mutex
	horizon time.Duration
	open    map[string][]domain.PositionWindow
}

// New creates a Tracker with the given holding horizon.
func New(horizon time.Duration) *Tracker {
	return &Tracker{
		horizon: horizon,
		open:    make(map[string][]domain.PositionWindow),
	}
}

// Admit claims the holding window starting at entryTime for the
// signal's instrument. Returns false, without recording anything, if
// the window overlaps one already claimed on that instrument.
func (t *Tracker) Admit(sig domain.Signal, entryTime int64) bool {
	w := domain.PositionWindow{
		Symbol:    sig.Symbol,
		EntryTime: entryTime,
		ExitTime:  entryTime + t.horizon.Milliseconds(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, held := range t.open[w.Symbol] {
		if held.Overlaps(w) {
			return false
		}
	}
	t.open[w.Symbol] = append(t.open[w.Symbol], w)
	return true
}

// AdmittedCount returns how many windows have been claimed on the
// instrument so far.
func (t *Tracker) AdmittedCount(symbol string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open[symbol])
}
