// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package ratelimit implements rolling-window admission: at most limit
// events in any trailing window. Window blocks callers until they may
// proceed; Keyed answers yes/no per client key.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window is a blocking rolling-window limiter shared by concurrent callers.
// Admission times are reserved under the mutex, so callers never observe
// more than limit admissions in any window even when they wake together.
type Window struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	stamps []time.Time // admission times, ascending; may lie in the future
	now    func() time.Time
}

// NewWindow returns a limiter admitting limit events per window. A limit
// or window of zero disables limiting.
func NewWindow(limit int, window time.Duration) *Window {
	return &Window{limit: limit, window: window, now: time.Now}
}

// SetClock replaces the time source. Tests use it to drive Reserve
// deterministically.
func (w *Window) SetClock(now func() time.Time) {
	w.mu.Lock()
	w.now = now
	w.mu.Unlock()
}

// Reserve records an admission for an event arriving at now and returns
// how long the caller must wait before proceeding.
func (w *Window) Reserve(now time.Time) time.Duration {
	if w.limit <= 0 || w.window <= 0 {
		return 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// Drop admissions that no longer fall inside the window ending at now.
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	w.stamps = w.stamps[i:]

	at := now
	if n := len(w.stamps); n >= w.limit {
		if earliest := w.stamps[n-w.limit].Add(w.window); earliest.After(at) {
			at = earliest
		}
	}
	if n := len(w.stamps); n > 0 && w.stamps[n-1].After(at) {
		at = w.stamps[n-1]
	}
	w.stamps = append(w.stamps, at)
	return at.Sub(now)
}

// Wait blocks until the caller is admitted or ctx is done. A cancelled
// wait still holds its reserved slot until the window moves past it.
func (w *Window) Wait(ctx context.Context) error {
	w.mu.Lock()
	now := w.now
	w.mu.Unlock()

	d := w.Reserve(now())
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
