package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/azizikri/round-robin-coupon/internal/domain"
	"github.com/azizikri/round-robin-coupon/internal/repository"
)

type mockStore struct {
	execTxFn       func(ctx context.Context, fn func(repository.Querier) error) error
	listRotationFn func(ctx context.Context, now time.Time) ([]domain.Coupon, error)
	getCursorFn    func(ctx context.Context) (int64, error)
	latestClaimFn  func(ctx context.Context, identity string) (*domain.ClaimRecord, error)
	listClaimsFn   func(ctx context.Context) ([]domain.ClaimRecord, error)
	createCouponFn func(ctx context.Context, arg domain.NewCoupon) (domain.Coupon, error)
	getCouponFn    func(ctx context.Context, id int64) (domain.Coupon, error)
	listCouponsFn  func(ctx context.Context) ([]domain.Coupon, error)
	updateCouponFn func(ctx context.Context, id int64, arg domain.CouponUpdate) (domain.Coupon, error)
	deleteCouponFn func(ctx context.Context, id int64) error
	querier        *mockQuerier
}

func (m *mockStore) ExecTx(ctx context.Context, fn func(repository.Querier) error) error {
	if m.execTxFn != nil {
		return m.execTxFn(ctx, fn)
	}
	q := m.querier
	if q == nil {
		q = &mockQuerier{}
	}
	return fn(q)
}

func (m *mockStore) ListRotation(ctx context.Context, now time.Time) ([]domain.Coupon, error) {
	if m.listRotationFn != nil {
		return m.listRotationFn(ctx, now)
	}
	return nil, nil
}

func (m *mockStore) GetCursor(ctx context.Context) (int64, error) {
	if m.getCursorFn != nil {
		return m.getCursorFn(ctx)
	}
	return 0, nil
}

func (m *mockStore) LatestClaim(ctx context.Context, identity string) (*domain.ClaimRecord, error) {
	if m.latestClaimFn != nil {
		return m.latestClaimFn(ctx, identity)
	}
	return nil, nil
}

func (m *mockStore) ListClaims(ctx context.Context) ([]domain.ClaimRecord, error) {
	if m.listClaimsFn != nil {
		return m.listClaimsFn(ctx)
	}
	return nil, nil
}

func (m *mockStore) CreateCoupon(ctx context.Context, arg domain.NewCoupon) (domain.Coupon, error) {
	if m.createCouponFn != nil {
		return m.createCouponFn(ctx, arg)
	}
	return domain.Coupon{ID: 1, Code: arg.Code, Discount: arg.Discount, ExpiresAt: arg.ExpiresAt}, nil
}

func (m *mockStore) GetCoupon(ctx context.Context, id int64) (domain.Coupon, error) {
	if m.getCouponFn != nil {
		return m.getCouponFn(ctx, id)
	}
	return domain.Coupon{ID: id}, nil
}

func (m *mockStore) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	if m.listCouponsFn != nil {
		return m.listCouponsFn(ctx)
	}
	return nil, nil
}

func (m *mockStore) UpdateCoupon(ctx context.Context, id int64, arg domain.CouponUpdate) (domain.Coupon, error) {
	if m.updateCouponFn != nil {
		return m.updateCouponFn(ctx, id, arg)
	}
	return domain.Coupon{ID: id}, nil
}

func (m *mockStore) DeleteCoupon(ctx context.Context, id int64) error {
	if m.deleteCouponFn != nil {
		return m.deleteCouponFn(ctx, id)
	}
	return nil
}

func (m *mockStore) Close() error { return nil }

type mockQuerier struct {
	lockIdentityFn  func(ctx context.Context, identity string) error
	latestClaimFn   func(ctx context.Context, identity string) (*domain.ClaimRecord, error)
	claimCouponFn   func(ctx context.Context, id int64, identity string, at time.Time) (*domain.Coupon, error)
	countRotationFn func(ctx context.Context, now time.Time) (int64, error)
	advanceCursorFn func(ctx context.Context, observed, next int64) (int64, error)
	insertClaimFn   func(ctx context.Context, rec domain.ClaimRecord) (int64, error)
}

func (q *mockQuerier) LockIdentity(ctx context.Context, identity string) error {
	if q.lockIdentityFn != nil {
		return q.lockIdentityFn(ctx, identity)
	}
	return nil
}

func (q *mockQuerier) LatestClaim(ctx context.Context, identity string) (*domain.ClaimRecord, error) {
	if q.latestClaimFn != nil {
		return q.latestClaimFn(ctx, identity)
	}
	return nil, nil
}

func (q *mockQuerier) ClaimCoupon(ctx context.Context, id int64, identity string, at time.Time) (*domain.Coupon, error) {
	if q.claimCouponFn != nil {
		return q.claimCouponFn(ctx, id, identity, at)
	}
	return &domain.Coupon{ID: id, Claimed: true, ClaimedBy: identity, ClaimedAt: &at}, nil
}

func (q *mockQuerier) CountRotation(ctx context.Context, now time.Time) (int64, error) {
	if q.countRotationFn != nil {
		return q.countRotationFn(ctx, now)
	}
	return 1, nil
}

func (q *mockQuerier) AdvanceCursor(ctx context.Context, observed, next int64) (int64, error) {
	if q.advanceCursorFn != nil {
		return q.advanceCursorFn(ctx, observed, next)
	}
	return 1, nil
}

func (q *mockQuerier) InsertClaim(ctx context.Context, rec domain.ClaimRecord) (int64, error) {
	if q.insertClaimFn != nil {
		return q.insertClaimFn(ctx, rec)
	}
	return 1, nil
}

type fakeClock struct {
	mu   sync.Mutex
	base time.Time
	now  time.Time
}

func newFakeClock() *fakeClock {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &fakeClock{base: base, now: base}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// At moves the clock to base+offset.
func (c *fakeClock) At(offset time.Duration) {
	c.mu.Lock()
	c.now = c.base.Add(offset)
	c.mu.Unlock()
}
