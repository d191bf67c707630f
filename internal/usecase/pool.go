package usecase

import (
	"context"
	"time"

	"github.com/azizikri/round-robin-coupon/internal/domain"
	"github.com/azizikri/round-robin-coupon/internal/repository"
)

// CouponPool reads the coupon set and performs the exclusive claimed flip.
type CouponPool struct {
	store repository.Store
}

func NewCouponPool(store repository.Store) CouponPool {
	return CouponPool{store: store}
}

// ListAvailable returns unclaimed, unexpired coupons in creation order.
func (p CouponPool) ListAvailable(ctx context.Context, now time.Time) ([]domain.Coupon, error) {
	ring, err := p.Rotation(ctx, now)
	if err != nil {
		return nil, err
	}

	available := make([]domain.Coupon, 0, len(ring))
	for _, c := range ring {
		if !c.Claimed {
			available = append(available, c)
		}
	}
	return available, nil
}

// Rotation returns every unexpired coupon, claimed or not, in creation order.
func (p CouponPool) Rotation(ctx context.Context, now time.Time) ([]domain.Coupon, error) {
	ring, err := p.store.ListRotation(ctx, now)
	if err != nil {
		return nil, persistenceErr("list rotation", err)
	}
	return ring, nil
}

// TryClaim marks the coupon claimed by identity and returns it as stored. It
// returns nil when the coupon was taken or expired since it was read.
func (p CouponPool) TryClaim(ctx context.Context, q repository.Querier, id int64, identity string, at time.Time) (*domain.Coupon, error) {
	coupon, err := q.ClaimCoupon(ctx, id, identity, at)
	if err != nil {
		return nil, persistenceErr("claim coupon", err)
	}
	return coupon, nil
}
