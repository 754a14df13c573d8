package utils

import (
	"testing"
	"time"
)

func TestSlidingWindowAdd(t *testing.T) {
	window := NewSlidingWindow(2 * time.Second)
	now := time.Now()
	if count := window.Add(now); count != 1 {
		t.Fatalf("expected 1, got %d", count)
	}
	window.Add(now.Add(500 * time.Millisecond))
	if count := window.Count(now.Add(1 * time.Second)); count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
	if count := window.Count(now.Add(3 * time.Second)); count != 0 {
		t.Fatalf("expected 0, got %d", count)
	}
}

func TestSlidingWindowBoundary(t *testing.T) {
	window := NewSlidingWindow(30 * time.Second)
	start := time.Unix(1000, 0)
	window.Add(start)
	if count := window.Count(start.Add(30*time.Second - time.Millisecond)); count != 1 {
		t.Fatalf("event younger than window should count, got %d", count)
	}
	if count := window.Count(start.Add(30 * time.Second)); count != 0 {
		t.Fatalf("event aged exactly window should be pruned, got %d", count)
	}
	if !window.Prune(start.Add(time.Minute)) {
		t.Fatalf("expected empty window")
	}
}

func TestWindowSetPerKey(t *testing.T) {
	set := NewWindowSet(10 * time.Second)
	now := time.Unix(0, 0)
	set.Add("g1", now)
	set.Add("g1", now.Add(time.Second))
	set.Add("g2", now)
	if count := set.Count("g1", now.Add(2*time.Second)); count != 2 {
		t.Fatalf("expected 2 for g1, got %d", count)
	}
	if count := set.Count("g3", now); count != 0 {
		t.Fatalf("unknown key should count 0, got %d", count)
	}
	if removed := set.Sweep(now.Add(time.Minute)); removed != 2 {
		t.Fatalf("expected 2 swept keys, got %d", removed)
	}
}
