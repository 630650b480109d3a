package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryWindow is a process-local expiring set. Expired entries are treated
// as absent on access and removed by Sweep.
type MemoryWindow struct {
	mu      sync.Mutex
	entries map[string]time.Time // id -> insertion time
	ttl     time.Duration
	now     func() time.Time
}

// MemoryOption customizes a MemoryWindow.
type MemoryOption func(*MemoryWindow)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) MemoryOption {
	return func(w *MemoryWindow) {
		if now != nil {
			w.now = now
		}
	}
}

// NewMemoryWindow creates an in-memory window with the given retention.
func NewMemoryWindow(ttl time.Duration, opts ...MemoryOption) *MemoryWindow {
	if ttl <= 0 {
		ttl = DefaultRetention
	}
	w := &MemoryWindow{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *MemoryWindow) Seen(_ context.Context, id string) (bool, error) {
	id = normalizeID(id)
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.liveLocked(id, w.now()), nil
}

func (w *MemoryWindow) Record(_ context.Context, id string) error {
	id = normalizeID(id)
	w.mu.Lock()
	w.entries[id] = w.now()
	w.mu.Unlock()
	return nil
}

func (w *MemoryWindow) Claim(_ context.Context, id string) (bool, error) {
	id = normalizeID(id)
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	if w.liveLocked(id, now) {
		return false, nil
	}
	w.entries[id] = now
	return true, nil
}

// Len returns the number of tracked entries, including expired ones not yet swept.
func (w *MemoryWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// Sweep evicts expired entries and returns how many were removed.
func (w *MemoryWindow) Sweep() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	removed := 0
	for id, at := range w.entries {
		if now.Sub(at) >= w.ttl {
			delete(w.entries, id)
			removed++
		}
	}
	return removed
}

// Run sweeps on the given interval until ctx is cancelled.
func (w *MemoryWindow) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = w.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}

func (w *MemoryWindow) liveLocked(id string, now time.Time) bool {
	at, ok := w.entries[id]
	if !ok {
		return false
	}
	if now.Sub(at) >= w.ttl {
		delete(w.entries, id)
		return false
	}
	return true
}
