package usecase

import (
	"context"

	"github.com/azizikri/round-robin-coupon/internal/domain"
	"github.com/azizikri/round-robin-coupon/internal/repository"
)

// AssignmentCursor is the persisted rotation position shared by every
// instance working on the same store.
type AssignmentCursor struct {
	store repository.Store
}

func NewAssignmentCursor(store repository.Store) AssignmentCursor {
	return AssignmentCursor{store: store}
}

func (c AssignmentCursor) Peek(ctx context.Context) (int64, error) {
	position, err := c.store.GetCursor(ctx)
	if err != nil {
		return 0, persistenceErr("get cursor", err)
	}
	return position, nil
}

// Advance moves the cursor past position, wrapping at poolSize. It returns
// false when the stored value no longer equals observed.
func (c AssignmentCursor) Advance(ctx context.Context, q repository.Querier, observed, position, poolSize int64) (bool, error) {
	next := int64(0)
	if poolSize > 0 {
		next = (position + 1) % poolSize
	}

	rows, err := q.AdvanceCursor(ctx, observed, next)
	if err != nil {
		return false, persistenceErr("advance cursor", err)
	}
	return rows > 0, nil
}

// selectCandidate starts at cursor mod len(ring) and returns the index of the
// first unclaimed coupon, wrapping around the ring.
func selectCandidate(ring []domain.Coupon, cursor int64) (int, bool) {
	n := int64(len(ring))
	if n == 0 {
		return 0, false
	}

	start := cursor % n
	if start < 0 {
		start += n
	}
	for i := int64(0); i < n; i++ {
		pos := (start + i) % n
		if !ring[pos].Claimed {
			return int(pos), true
		}
	}
	return 0, false
}
