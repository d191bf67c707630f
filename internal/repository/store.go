package repository

import (
	"context"
	"time"

	"github.com/azizikri/round-robin-coupon/internal/domain"
)

// Store is the persistence port of the allocation engine and the admin surface.
// Reads outside ExecTx see committed state only.
type Store interface {
	ExecTx(ctx context.Context, fn func(Querier) error) error
	ListRotation(ctx context.Context, now time.Time) ([]domain.Coupon, error)
	GetCursor(ctx context.Context) (int64, error)
	LatestClaim(ctx context.Context, identity string) (*domain.ClaimRecord, error)
	ListClaims(ctx context.Context) ([]domain.ClaimRecord, error)
	CreateCoupon(ctx context.Context, arg domain.NewCoupon) (domain.Coupon, error)
	GetCoupon(ctx context.Context, id int64) (domain.Coupon, error)
	ListCoupons(ctx context.Context) ([]domain.Coupon, error)
	UpdateCoupon(ctx context.Context, id int64, arg domain.CouponUpdate) (domain.Coupon, error)
	DeleteCoupon(ctx context.Context, id int64) error
	Close() error
}

// Querier holds the operations that must run inside the claim transaction.
type Querier interface {
	// LockIdentity serialises concurrent claims by the same identity until commit.
	LockIdentity(ctx context.Context, identity string) error
	LatestClaim(ctx context.Context, identity string) (*domain.ClaimRecord, error)
	// ClaimCoupon flips an unclaimed, unexpired coupon to claimed and returns the
	// row as written, or nil when the coupon was not claimable.
	ClaimCoupon(ctx context.Context, id int64, identity string, at time.Time) (*domain.Coupon, error)
	CountRotation(ctx context.Context, now time.Time) (int64, error)
	// AdvanceCursor writes next only when the cursor still holds observed.
	AdvanceCursor(ctx context.Context, observed, next int64) (int64, error)
	InsertClaim(ctx context.Context, rec domain.ClaimRecord) (int64, error)
}

func applyUpdate(c domain.Coupon, arg domain.CouponUpdate) domain.Coupon {
	if arg.Discount != nil {
		c.Discount = *arg.Discount
	}
	if arg.ClearExpiry {
		c.ExpiresAt = nil
	} else if arg.ExpiresAt != nil {
		at := arg.ExpiresAt.UTC()
		c.ExpiresAt = &at
	}
	return c
}
