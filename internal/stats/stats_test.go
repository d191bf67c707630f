package stats

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_CountsTotalsAndCurrentMinute(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	events := []Event{
		{Identity: "a", Outcome: OutcomeSuccess, At: base.Add(-2 * time.Minute)},
		{Identity: "b", Outcome: OutcomeSuccess, At: base.Add(10 * time.Second)},
		{Identity: "a", Outcome: OutcomeCooldown, At: base.Add(20 * time.Second)},
	}
	for _, ev := range events {
		if err := store.Record(ctx, ev); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}

	snap, err := store.Snapshot(ctx, base.Add(30*time.Second))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snap.Totals[OutcomeSuccess] != 2 || snap.Totals[OutcomeCooldown] != 1 {
		t.Fatalf("unexpected totals %+v", snap.Totals)
	}
	if snap.LastMinute[OutcomeSuccess] != 1 || snap.LastMinute[OutcomeCooldown] != 1 {
		t.Fatalf("unexpected last minute %+v", snap.LastMinute)
	}
}

func TestNop_SnapshotIsEmpty(t *testing.T) {
	snap, err := Nop{}.Snapshot(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(snap.Totals) != 0 || len(snap.LastMinute) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestParseCounts_RejectsGarbage(t *testing.T) {
	if _, err := parseCounts(map[string]string{"success": "x"}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestRedisStore_Keys(t *testing.T) {
	store := NewRedisStore(nil, "", 0)
	at := time.Unix(120, 0)
	if got := store.minuteKey(at); got != "coupon:stats:minute:2" {
		t.Fatalf("unexpected minute key %s", got)
	}
	if got := store.totalsKey(); got != "coupon:stats:totals" {
		t.Fatalf("unexpected totals key %s", got)
	}
	if store.ttl != defaultBucketTTL {
		t.Fatalf("expected default ttl, got %s", store.ttl)
	}
}
