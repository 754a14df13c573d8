package utils

import (
	"sync"
	"time"
)

// SlidingWindow counts events younger than window. An event whose age equals the
// window is already expired.
type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	hits   []time.Time
}

func NewSlidingWindow(window time.Duration) *SlidingWindow {
	return &SlidingWindow{window: window}
}

// Add records an event at now and returns the live count including it.
func (w *SlidingWindow) Add(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	w.hits = append(w.hits, now)
	return len(w.hits)
}

func (w *SlidingWindow) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	return len(w.hits)
}

// Prune drops expired events and reports whether the window is now empty.
func (w *SlidingWindow) Prune(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now)
	return len(w.hits) == 0
}

// Reset forgets every event.
func (w *SlidingWindow) Reset() {
	w.mu.Lock()
	w.hits = nil
	w.mu.Unlock()
}

func (w *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	kept := w.hits[:0]
	for _, hit := range w.hits {
		if hit.After(cutoff) {
			kept = append(kept, hit)
		}
	}
	w.hits = kept
}

// WindowSet keeps one SlidingWindow per key, typically a guild id.
type WindowSet struct {
	mu      sync.Mutex
	window  time.Duration
	windows map[string]*SlidingWindow
}

func NewWindowSet(window time.Duration) *WindowSet {
	return &WindowSet{window: window, windows: make(map[string]*SlidingWindow)}
}

func (s *WindowSet) Add(key string, now time.Time) int {
	return s.get(key).Add(now)
}

func (s *WindowSet) Count(key string, now time.Time) int {
	s.mu.Lock()
	w := s.windows[key]
	s.mu.Unlock()
	if w == nil {
		return 0
	}
	return w.Count(now)
}

func (s *WindowSet) Reset(key string) {
	s.mu.Lock()
	delete(s.windows, key)
	s.mu.Unlock()
}

// Sweep removes keys whose windows hold no live events.
func (s *WindowSet) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		if w.Prune(now) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

func (s *WindowSet) get(key string) *SlidingWindow {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.windows[key]
	if w == nil {
		w = NewSlidingWindow(s.window)
		s.windows[key] = w
	}
	return w
}
