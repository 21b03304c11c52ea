package ratelimit

import (
	"sync"
	"time"
)

// keyEntry tracks admission timestamps for a single key.
type keyEntry struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// Keyed is a non-blocking rolling-window limiter with one window per key,
// typically a client IP.
type Keyed struct {
	mu      sync.RWMutex
	entries map[string]*keyEntry
	limit   int
	window  time.Duration
	now     func() time.Time
	stopCh  chan struct{}
	stopped sync.Once
}

// NewKeyed creates a limiter allowing limit events per window per key.
// It starts a background goroutine that drops idle keys; call Stop to end it.
func NewKeyed(limit int, window time.Duration) *Keyed {
	k := &Keyed{
		entries: make(map[string]*keyEntry),
		limit:   limit,
		window:  window,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				k.Cleanup()
			case <-k.stopCh:
				return
			}
		}
	}()

	return k
}

// Stop terminates the background cleanup goroutine. It is safe to call
// more than once.
func (k *Keyed) Stop() {
	k.stopped.Do(func() { close(k.stopCh) })
}

// Allow reports whether key may proceed now, recording the event if so.
func (k *Keyed) Allow(key string) bool {
	k.mu.RLock()
	entry, exists := k.entries[key]
	k.mu.RUnlock()

	if !exists {
		k.mu.Lock()
		entry, exists = k.entries[key]
		if !exists {
			entry = &keyEntry{}
			k.entries[key] = entry
		}
		k.mu.Unlock()
	}

	now := k.now()
	cutoff := now.Add(-k.window)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	valid := entry.timestamps[:0]
	for _, ts := range entry.timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}
	entry.timestamps = valid

	if len(entry.timestamps) >= k.limit {
		return false
	}
	entry.timestamps = append(entry.timestamps, now)
	return true
}

// Cleanup removes keys with no events inside the window.
func (k *Keyed) Cleanup() {
	cutoff := k.now().Add(-k.window)

	k.mu.Lock()
	defer k.mu.Unlock()

	for key, entry := range k.entries {
		entry.mu.Lock()
		recent := false
		for _, ts := range entry.timestamps {
			if ts.After(cutoff) {
				recent = true
				break
			}
		}
		entry.mu.Unlock()

		if !recent {
			delete(k.entries, key)
		}
	}
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.entries)
}
