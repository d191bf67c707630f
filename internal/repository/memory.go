package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/azizikri/round-robin-coupon/internal/domain"
)

// MemoryStore keeps all state in process. ExecTx runs one transaction at a time
// and restores a snapshot when fn fails, so it honours the same atomicity as the
// database stores. Useful for tests and single-instance development.
type MemoryStore struct {
	mu          sync.Mutex
	coupons     []domain.Coupon
	claims      []domain.ClaimRecord
	cursor      int64
	nextCoupon  int64
	nextClaimID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) ExecTx(ctx context.Context, fn func(Querier) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coupons := append([]domain.Coupon(nil), s.coupons...)
	claimCount := len(s.claims)
	cursor := s.cursor
	nextClaimID := s.nextClaimID

	if err := fn(memoryTx{s: s}); err != nil {
		s.coupons = coupons
		s.claims = s.claims[:claimCount]
		s.cursor = cursor
		s.nextClaimID = nextClaimID
		return err
	}
	return nil
}

func (s *MemoryStore) ListRotation(_ context.Context, now time.Time) ([]domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotation(now), nil
}

func (s *MemoryStore) GetCursor(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor, nil
}

func (s *MemoryStore) LatestClaim(_ context.Context, identity string) (*domain.ClaimRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestClaim(identity), nil
}

func (s *MemoryStore) ListClaims(context.Context) ([]domain.ClaimRecord, error) {
	s.mu.Lock()
	claims := append([]domain.ClaimRecord(nil), s.claims...)
	s.mu.Unlock()

	sort.SliceStable(claims, func(i, j int) bool {
		if claims[i].ClaimedAt.Equal(claims[j].ClaimedAt) {
			return claims[i].ID > claims[j].ID
		}
		return claims[i].ClaimedAt.After(claims[j].ClaimedAt)
	})
	return claims, nil
}

func (s *MemoryStore) CreateCoupon(_ context.Context, arg domain.NewCoupon) (domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.coupons {
		if c.Code == arg.Code {
			return domain.Coupon{}, domain.ErrDuplicateCoupon
		}
	}

	s.nextCoupon++
	c := domain.Coupon{
		ID:        s.nextCoupon,
		Code:      arg.Code,
		Discount:  arg.Discount,
		CreatedAt: time.Now().UTC(),
	}
	if arg.ExpiresAt != nil {
		at := arg.ExpiresAt.UTC()
		c.ExpiresAt = &at
	}
	s.coupons = append(s.coupons, c)
	return c, nil
}

func (s *MemoryStore) GetCoupon(_ context.Context, id int64) (domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		return s.coupons[i], nil
	}
	return domain.Coupon{}, domain.ErrNotFound
}

func (s *MemoryStore) ListCoupons(context.Context) ([]domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Coupon{}, s.coupons...), nil
}

func (s *MemoryStore) UpdateCoupon(_ context.Context, id int64, arg domain.CouponUpdate) (domain.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return domain.Coupon{}, domain.ErrNotFound
	}
	s.coupons[i] = applyUpdate(s.coupons[i], arg)
	return s.coupons[i], nil
}

func (s *MemoryStore) DeleteCoupon(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return domain.ErrNotFound
	}
	s.coupons = append(s.coupons[:i:i], s.coupons[i+1:]...)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) rotation(now time.Time) []domain.Coupon {
	out := make([]domain.Coupon, 0, len(s.coupons))
	for _, c := range s.coupons {
		if !c.Expired(now) {
			out = append(out, c)
		}
	}
	return out
}

func (s *MemoryStore) latestClaim(identity string) *domain.ClaimRecord {
	var latest *domain.ClaimRecord
	for i := range s.claims {
		c := s.claims[i]
		if c.Identity != identity {
			continue
		}
		if latest == nil || !c.ClaimedAt.Before(latest.ClaimedAt) {
			latest = &c
		}
	}
	return latest
}

func (s *MemoryStore) indexOf(id int64) int {
	for i, c := range s.coupons {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// memoryTx runs with MemoryStore.mu already held.
type memoryTx struct {
	s *MemoryStore
}

func (tx memoryTx) LockIdentity(context.Context, string) error { return nil }

func (tx memoryTx) LatestClaim(_ context.Context, identity string) (*domain.ClaimRecord, error) {
	return tx.s.latestClaim(identity), nil
}

func (tx memoryTx) ClaimCoupon(_ context.Context, id int64, identity string, at time.Time) (*domain.Coupon, error) {
	i := tx.s.indexOf(id)
	if i < 0 || !tx.s.coupons[i].Available(at) {
		return nil, nil
	}
	claimedAt := at.UTC()
	c := tx.s.coupons[i]
	c.Claimed = true
	c.ClaimedBy = identity
	c.ClaimedAt = &claimedAt
	tx.s.coupons[i] = c
	return &c, nil
}

func (tx memoryTx) CountRotation(_ context.Context, now time.Time) (int64, error) {
	return int64(len(tx.s.rotation(now))), nil
}

func (tx memoryTx) AdvanceCursor(_ context.Context, observed, next int64) (int64, error) {
	if tx.s.cursor != observed {
		return 0, nil
	}
	tx.s.cursor = next
	return 1, nil
}

func (tx memoryTx) InsertClaim(_ context.Context, rec domain.ClaimRecord) (int64, error) {
	tx.s.nextClaimID++
	rec.ID = tx.s.nextClaimID
	rec.ClaimedAt = rec.ClaimedAt.UTC()
	tx.s.claims = append(tx.s.claims, rec)
	return rec.ID, nil
}
