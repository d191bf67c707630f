package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/azizikri/round-robin-coupon/internal/domain"
)

func makeRing(claimed ...bool) []domain.Coupon {
	out := make([]domain.Coupon, len(claimed))
	for i, c := range claimed {
		out[i] = domain.Coupon{ID: int64(i + 1), Claimed: c}
	}
	return out
}

func TestSelectCandidate(t *testing.T) {
	tests := []struct {
		name    string
		ring    []domain.Coupon
		cursor  int64
		wantPos int
		wantOK  bool
	}{
		{name: "empty", ring: nil, cursor: 0, wantOK: false},
		{name: "all unclaimed", ring: makeRing(false, false, false), cursor: 1, wantPos: 1, wantOK: true},
		{name: "cursor wraps", ring: makeRing(false, false, false), cursor: 5, wantPos: 2, wantOK: true},
		{name: "skips claimed", ring: makeRing(true, true, false), cursor: 0, wantPos: 2, wantOK: true},
		{name: "wraps past end", ring: makeRing(false, true, true), cursor: 1, wantPos: 0, wantOK: true},
		{name: "all claimed", ring: makeRing(true, true), cursor: 0, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, ok := selectCandidate(tt.ring, tt.cursor)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && pos != tt.wantPos {
				t.Fatalf("expected position %d, got %d", tt.wantPos, pos)
			}
		})
	}
}

func TestAdvance_WrapsAndReportsMismatch(t *testing.T) {
	var gotObserved, gotNext int64
	q := &mockQuerier{
		advanceCursorFn: func(ctx context.Context, observed, next int64) (int64, error) {
			gotObserved, gotNext = observed, next
			if observed != 4 {
				return 0, nil
			}
			return 1, nil
		},
	}
	cursor := NewAssignmentCursor(&mockStore{})

	ok, err := cursor.Advance(context.Background(), q, 4, 2, 3)
	if err != nil || !ok {
		t.Fatalf("expected advance to succeed, got ok=%v err=%v", ok, err)
	}
	if gotObserved != 4 || gotNext != 0 {
		t.Fatalf("expected CAS 4->0, got %d->%d", gotObserved, gotNext)
	}

	ok, err = cursor.Advance(context.Background(), q, 1, 0, 3)
	if err != nil || ok {
		t.Fatalf("expected mismatch to report false, got ok=%v err=%v", ok, err)
	}
}

func TestPeek_WrapsStorageError(t *testing.T) {
	boom := errors.New("connection reset")
	cursor := NewAssignmentCursor(&mockStore{
		getCursorFn: func(ctx context.Context) (int64, error) { return 0, boom },
	})

	_, err := cursor.Peek(context.Background())
	if !errors.Is(err, domain.ErrPersistence) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped persistence error, got %v", err)
	}
}
