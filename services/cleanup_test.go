package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingCleanupStore struct {
	calls   int64
	failOdd bool
}

func (s *countingCleanupStore) CleanupExpired(ctx context.Context) (int64, error) {
	n := atomic.AddInt64(&s.calls, 1)
	if s.failOdd && n%2 == 1 {
		return 0, errors.New("deadlock detected")
	}
	return 3, nil
}

func TestIdempotencyJanitor_Sweeps(t *testing.T) {
	store := &countingCleanupStore{}
	janitor := NewIdempotencyJanitor(store, 5*time.Millisecond)
	janitor.Start()
	defer janitor.Close()

	deadline := time.After(time.Second)
	for atomic.LoadInt64(&store.calls) < 2 {
		select {
		case <-deadline:
			t.Fatalf("calls = %d, want at least 2 sweeps within a second", atomic.LoadInt64(&store.calls))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestIdempotencyJanitor_KeepsSweepingAfterFailure(t *testing.T) {
	store := &countingCleanupStore{failOdd: true}
	janitor := NewIdempotencyJanitor(store, 5*time.Millisecond)
	janitor.Start()
	defer janitor.Close()

	deadline := time.After(time.Second)
	for atomic.LoadInt64(&store.calls) < 3 {
		select {
		case <-deadline:
			t.Fatalf("calls = %d, want sweeps to continue past a failed one", atomic.LoadInt64(&store.calls))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestIdempotencyJanitor_CloseStops(t *testing.T) {
	store := &countingCleanupStore{}
	janitor := NewIdempotencyJanitor(store, time.Millisecond)
	janitor.Start()

	time.Sleep(20 * time.Millisecond)
	janitor.Close()
	// Let any sweep already past the select drain before sampling.
	time.Sleep(10 * time.Millisecond)
	settled := atomic.LoadInt64(&store.calls)

	time.Sleep(20 * time.Millisecond)
	if after := atomic.LoadInt64(&store.calls); after != settled {
		t.Errorf("sweeps continued after Close: %d -> %d", settled, after)
	}
}
