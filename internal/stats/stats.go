// Package stats counts claim outcomes. Recording is best effort: a failing
// recorder never changes the result of a claim.
package stats

import (
	"context"
	"sync"
	"time"
)

type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeCooldown  Outcome = "cooldown"
	OutcomeNoCoupons Outcome = "no_coupons"
	OutcomeConflict  Outcome = "conflict"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeError     Outcome = "error"
)

type Event struct {
	Identity string
	Outcome  Outcome
	At       time.Time
}

// Snapshot holds lifetime totals and the counts of the minute that contains At.
type Snapshot struct {
	Totals     map[Outcome]int64 `json:"totals"`
	LastMinute map[Outcome]int64 `json:"last_minute"`
	At         time.Time         `json:"at"`
}

type Recorder interface {
	Record(ctx context.Context, ev Event) error
	Snapshot(ctx context.Context, now time.Time) (Snapshot, error)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

func (Nop) Snapshot(_ context.Context, now time.Time) (Snapshot, error) {
	return Snapshot{Totals: map[Outcome]int64{}, LastMinute: map[Outcome]int64{}, At: now}, nil
}

// MemoryStore keeps counters in process.
type MemoryStore struct {
	mu      sync.Mutex
	totals  map[Outcome]int64
	minutes map[int64]map[Outcome]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		totals:  make(map[Outcome]int64),
		minutes: make(map[int64]map[Outcome]int64),
	}
}

func (s *MemoryStore) Record(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totals[ev.Outcome]++
	bucket := minuteBucket(ev.At)
	counts, ok := s.minutes[bucket]
	if !ok {
		counts = make(map[Outcome]int64)
		s.minutes[bucket] = counts
	}
	counts[ev.Outcome]++

	for b := range s.minutes {
		if b < bucket-60 {
			delete(s.minutes, b)
		}
	}
	return nil
}

func (s *MemoryStore) Snapshot(_ context.Context, now time.Time) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Totals:     make(map[Outcome]int64, len(s.totals)),
		LastMinute: make(map[Outcome]int64),
		At:         now,
	}
	for k, v := range s.totals {
		snap.Totals[k] = v
	}
	for k, v := range s.minutes[minuteBucket(now)] {
		snap.LastMinute[k] = v
	}
	return snap, nil
}

func minuteBucket(t time.Time) int64 {
	return t.Unix() / 60
}
