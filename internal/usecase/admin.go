package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/azizikri/round-robin-coupon/internal/domain"
	"github.com/azizikri/round-robin-coupon/internal/repository"
	"github.com/azizikri/round-robin-coupon/internal/stats"
	"github.com/shopspring/decimal"
)

const maxCodeLength = 64

// CouponAdmin manages the coupon set and exposes the claim history.
type CouponAdmin struct {
	store  repository.Store
	pool   CouponPool
	ledger ClaimLedger
	stats  stats.Recorder
	now    func() time.Time
}

func NewCouponAdmin(store repository.Store, recorder stats.Recorder, now func() time.Time) *CouponAdmin {
	if recorder == nil {
		recorder = stats.Nop{}
	}
	if now == nil {
		now = time.Now
	}
	return &CouponAdmin{
		store:  store,
		pool:   NewCouponPool(store),
		ledger: NewClaimLedger(store),
		stats:  recorder,
		now:    now,
	}
}

func (a *CouponAdmin) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	coupons, err := a.store.ListCoupons(ctx)
	if err != nil {
		return nil, persistenceErr("list coupons", err)
	}
	return coupons, nil
}

// AvailableCoupons lists what can still be handed out, in rotation order.
func (a *CouponAdmin) AvailableCoupons(ctx context.Context) ([]domain.Coupon, error) {
	return a.pool.ListAvailable(ctx, a.now())
}

func (a *CouponAdmin) CreateCoupon(ctx context.Context, arg domain.NewCoupon) (domain.Coupon, error) {
	arg.Code = strings.TrimSpace(arg.Code)
	if arg.Code == "" || len(arg.Code) > maxCodeLength {
		return domain.Coupon{}, fmt.Errorf("%w: code must be 1-%d characters", domain.ErrInvalidCoupon, maxCodeLength)
	}
	if err := validDiscount(arg.Discount); err != nil {
		return domain.Coupon{}, err
	}
	if arg.ExpiresAt != nil && !arg.ExpiresAt.After(a.now()) {
		return domain.Coupon{}, fmt.Errorf("%w: expiry must be in the future", domain.ErrInvalidCoupon)
	}

	coupon, err := a.store.CreateCoupon(ctx, arg)
	if err != nil {
		return domain.Coupon{}, persistenceErr("create coupon", err)
	}
	return coupon, nil
}

func (a *CouponAdmin) UpdateCoupon(ctx context.Context, id int64, arg domain.CouponUpdate) (domain.Coupon, error) {
	if arg.Discount == nil && arg.ExpiresAt == nil && !arg.ClearExpiry {
		return domain.Coupon{}, fmt.Errorf("%w: nothing to update", domain.ErrInvalidCoupon)
	}
	if arg.Discount != nil {
		if err := validDiscount(*arg.Discount); err != nil {
			return domain.Coupon{}, err
		}
	}

	coupon, err := a.store.UpdateCoupon(ctx, id, arg)
	if err != nil {
		return domain.Coupon{}, persistenceErr("update coupon", err)
	}
	return coupon, nil
}

func (a *CouponAdmin) DeleteCoupon(ctx context.Context, id int64) error {
	if err := a.store.DeleteCoupon(ctx, id); err != nil {
		return persistenceErr("delete coupon", err)
	}
	return nil
}

func (a *CouponAdmin) History(ctx context.Context) ([]domain.ClaimRecord, error) {
	return a.ledger.History(ctx)
}

func (a *CouponAdmin) Stats(ctx context.Context) (stats.Snapshot, error) {
	return a.stats.Snapshot(ctx, a.now().UTC())
}

func validDiscount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return fmt.Errorf("%w: discount must be positive", domain.ErrInvalidCoupon)
	}
	return nil
}
