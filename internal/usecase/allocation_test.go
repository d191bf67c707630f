package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/azizikri/round-robin-coupon/internal/domain"
	"github.com/azizikri/round-robin-coupon/internal/repository"
	"github.com/azizikri/round-robin-coupon/internal/stats"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func seedCoupons(t *testing.T, store repository.Store, codes ...string) {
	t.Helper()
	for _, code := range codes {
		_, err := store.CreateCoupon(context.Background(), domain.NewCoupon{
			Code:     code,
			Discount: decimal.NewFromInt(10),
		})
		if err != nil {
			t.Fatalf("seed coupon %s: %v", code, err)
		}
	}
}

func newTestEngine(store repository.Store, clock *fakeClock, cooldown time.Duration, opts ...Option) *AllocationEngine {
	opts = append([]Option{WithClock(clock.Now), WithLogger(zap.NewNop())}, opts...)
	return NewAllocationEngine(store, cooldown, opts...)
}

func TestClaim_Scenario(t *testing.T) {
	store := repository.NewMemoryStore()
	seedCoupons(t, store, "A", "B", "C")
	clock := newFakeClock()
	recorder := stats.NewMemoryStore()
	engine := newTestEngine(store, clock, 60*time.Second, WithStats(recorder))
	ctx := context.Background()

	alloc, err := engine.Claim(ctx, "ip1")
	if err != nil || alloc.CouponCode != "A" {
		t.Fatalf("expected ip1 to get A, got %+v err=%v", alloc, err)
	}
	if cursor, _ := store.GetCursor(ctx); cursor != 1 {
		t.Fatalf("expected cursor 1, got %d", cursor)
	}

	clock.At(time.Second)
	alloc, err = engine.Claim(ctx, "ip2")
	if err != nil || alloc.CouponCode != "B" {
		t.Fatalf("expected ip2 to get B, got %+v err=%v", alloc, err)
	}

	clock.At(2 * time.Second)
	_, err = engine.Claim(ctx, "ip1")
	var cooldown *domain.CooldownError
	if !errors.As(err, &cooldown) {
		t.Fatalf("expected CooldownError, got %v", err)
	}
	if cooldown.RemainingSeconds() != 58 {
		t.Fatalf("expected 58 seconds remaining, got %d", cooldown.RemainingSeconds())
	}

	clock.At(3 * time.Second)
	alloc, err = engine.Claim(ctx, "ip3")
	if err != nil || alloc.CouponCode != "C" {
		t.Fatalf("expected ip3 to get C, got %+v err=%v", alloc, err)
	}

	clock.At(4 * time.Second)
	_, err = engine.Claim(ctx, "ip3")
	if !errors.Is(err, domain.ErrNoCouponsAvailable) {
		t.Fatalf("expected ErrNoCouponsAvailable, got %v", err)
	}

	snap, _ := recorder.Snapshot(ctx, clock.Now())
	if snap.Totals[stats.OutcomeSuccess] != 3 ||
		snap.Totals[stats.OutcomeCooldown] != 1 ||
		snap.Totals[stats.OutcomeNoCoupons] != 1 {
		t.Fatalf("unexpected stats %+v", snap.Totals)
	}

	claims, _ := store.ListClaims(ctx)
	if len(claims) != 3 {
		t.Fatalf("expected 3 ledger entries, got %d", len(claims))
	}
}

func TestClaim_RotationOrderAndWrap(t *testing.T) {
	store := repository.NewMemoryStore()
	seedCoupons(t, store, "A", "B", "C", "D")
	clock := newFakeClock()
	engine := newTestEngine(store, clock, 0)
	ctx := context.Background()

	for _, want := range []string{"A", "B", "C", "D"} {
		alloc, err := engine.Claim(ctx, "same-identity")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if alloc.CouponCode != want {
			t.Fatalf("expected %s, got %s", want, alloc.CouponCode)
		}
	}
	if cursor, _ := store.GetCursor(ctx); cursor != 0 {
		t.Fatalf("expected cursor to wrap to 0, got %d", cursor)
	}

	seedCoupons(t, store, "E")
	alloc, err := engine.Claim(ctx, "other")
	if err != nil || alloc.CouponCode != "E" {
		t.Fatalf("expected E after restock, got %+v err=%v", alloc, err)
	}
}

func TestClaim_SkipsExpiredCoupons(t *testing.T) {
	store := repository.NewMemoryStore()
	clock := newFakeClock()
	expiresAt := clock.Now().Add(10 * time.Second)
	_, err := store.CreateCoupon(context.Background(), domain.NewCoupon{
		Code:      "EXPIRING",
		Discount:  decimal.NewFromInt(5),
		ExpiresAt: &expiresAt,
	})
	if err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
	seedCoupons(t, store, "B")
	engine := newTestEngine(store, clock, time.Minute)

	clock.At(10 * time.Second)
	alloc, err := engine.Claim(context.Background(), "ip1")
	if err != nil || alloc.CouponCode != "B" {
		t.Fatalf("expected B once EXPIRING expired, got %+v err=%v", alloc, err)
	}
}

func TestClaim_EmptyPool(t *testing.T) {
	engine := newTestEngine(repository.NewMemoryStore(), newFakeClock(), time.Minute)
	_, err := engine.Claim(context.Background(), "ip1")
	if !errors.Is(err, domain.ErrNoCouponsAvailable) {
		t.Fatalf("expected ErrNoCouponsAvailable, got %v", err)
	}
}

func TestClaim_RejectsEmptyIdentity(t *testing.T) {
	engine := newTestEngine(repository.NewMemoryStore(), newFakeClock(), time.Minute)
	_, err := engine.Claim(context.Background(), "  ")
	if !errors.Is(err, domain.ErrInvalidIdentity) {
		t.Fatalf("expected ErrInvalidIdentity, got %v", err)
	}
}

func TestClaim_ConcurrentClaimsAreExclusive(t *testing.T) {
	store := repository.NewMemoryStore()
	codes := []string{"C1", "C2", "C3", "C4", "C5", "C6", "C7", "C8", "C9", "C10"}
	seedCoupons(t, store, codes...)
	engine := newTestEngine(store, newFakeClock(), time.Minute, WithMaxRetries(50))

	const workers = 25
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners = make(map[string]string)
		errs    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			identity := "ip-" + string(rune('a'+i))
			alloc, err := engine.Claim(context.Background(), identity)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if prev, taken := winners[alloc.CouponCode]; taken {
				t.Errorf("coupon %s handed to both %s and %s", alloc.CouponCode, prev, identity)
			}
			winners[alloc.CouponCode] = identity
		}(i)
	}
	wg.Wait()

	if len(winners) != len(codes) {
		t.Fatalf("expected every coupon to be claimed once, got %d", len(winners))
	}
	for _, err := range errs {
		if !errors.Is(err, domain.ErrNoCouponsAvailable) && !errors.Is(err, domain.ErrConflictRetryExhausted) {
			t.Fatalf("unexpected error %v", err)
		}
	}
	claims, _ := store.ListClaims(context.Background())
	if len(claims) != len(codes) {
		t.Fatalf("expected %d ledger entries, got %d", len(codes), len(claims))
	}
}

func TestClaim_ConflictRetryExhausted(t *testing.T) {
	attempts := 0
	store := &mockStore{
		listRotationFn: func(ctx context.Context, now time.Time) ([]domain.Coupon, error) {
			return []domain.Coupon{{ID: 1, Code: "A"}}, nil
		},
		querier: &mockQuerier{
			claimCouponFn: func(ctx context.Context, id int64, identity string, at time.Time) (*domain.Coupon, error) {
				attempts++
				return nil, nil
			},
		},
	}
	engine := newTestEngine(store, newFakeClock(), time.Minute, WithMaxRetries(3))

	_, err := engine.Claim(context.Background(), "ip1")
	if !errors.Is(err, domain.ErrConflictRetryExhausted) {
		t.Fatalf("expected ErrConflictRetryExhausted, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestClaim_CursorConflictRetriesThenSucceeds(t *testing.T) {
	cursorCalls := 0
	store := &mockStore{
		listRotationFn: func(ctx context.Context, now time.Time) ([]domain.Coupon, error) {
			return []domain.Coupon{{ID: 1, Code: "A"}, {ID: 2, Code: "B"}}, nil
		},
		querier: &mockQuerier{
			claimCouponFn: func(ctx context.Context, id int64, identity string, at time.Time) (*domain.Coupon, error) {
				return &domain.Coupon{ID: id, Code: map[int64]string{1: "A", 2: "B"}[id], Claimed: true}, nil
			},
			advanceCursorFn: func(ctx context.Context, observed, next int64) (int64, error) {
				cursorCalls++
				if cursorCalls == 1 {
					return 0, nil
				}
				return 1, nil
			},
		},
	}
	engine := newTestEngine(store, newFakeClock(), time.Minute)

	alloc, err := engine.Claim(context.Background(), "ip1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if alloc.CouponCode != "A" || cursorCalls != 2 {
		t.Fatalf("expected A after one retry, got %s with %d cursor calls", alloc.CouponCode, cursorCalls)
	}
}

func TestClaim_WrapsPersistenceErrors(t *testing.T) {
	boom := errors.New("connection refused")
	store := &mockStore{
		listRotationFn: func(ctx context.Context, now time.Time) ([]domain.Coupon, error) {
			return nil, boom
		},
	}
	engine := newTestEngine(store, newFakeClock(), time.Minute)

	_, err := engine.Claim(context.Background(), "ip1")
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected underlying error to be reachable, got %v", err)
	}
}

func TestClaim_PassesContextCancellation(t *testing.T) {
	store := &mockStore{
		listRotationFn: func(ctx context.Context, now time.Time) ([]domain.Coupon, error) {
			return nil, ctx.Err()
		},
	}
	engine := newTestEngine(store, newFakeClock(), time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Claim(ctx, "ip1")
	if !errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected bare context.Canceled, got %v", err)
	}
}

func TestClaim_RechecksCooldownInsideTransaction(t *testing.T) {
	clock := newFakeClock()
	claimed := false
	store := &mockStore{
		listRotationFn: func(ctx context.Context, now time.Time) ([]domain.Coupon, error) {
			return []domain.Coupon{{ID: 1, Code: "A"}}, nil
		},
		querier: &mockQuerier{
			latestClaimFn: func(ctx context.Context, identity string) (*domain.ClaimRecord, error) {
				return &domain.ClaimRecord{Identity: identity, ClaimedAt: clock.Now().Add(-10 * time.Second)}, nil
			},
			claimCouponFn: func(ctx context.Context, id int64, identity string, at time.Time) (*domain.Coupon, error) {
				claimed = true
				return &domain.Coupon{ID: id, Code: "A"}, nil
			},
		},
	}
	engine := newTestEngine(store, clock, time.Minute)

	_, err := engine.Claim(context.Background(), "ip1")
	var cooldown *domain.CooldownError
	if !errors.As(err, &cooldown) || cooldown.RemainingSeconds() != 50 {
		t.Fatalf("expected CooldownError with 50s, got %v", err)
	}
	if claimed {
		t.Fatalf("expected no coupon to be claimed")
	}
}

// failingInsertStore fails the ledger append after the coupon and cursor were written.
type failingInsertStore struct {
	*repository.MemoryStore
}

type failingInsertQuerier struct {
	repository.Querier
}

func (q failingInsertQuerier) InsertClaim(context.Context, domain.ClaimRecord) (int64, error) {
	return 0, errors.New("disk full")
}

func (s failingInsertStore) ExecTx(ctx context.Context, fn func(repository.Querier) error) error {
	return s.MemoryStore.ExecTx(ctx, func(q repository.Querier) error {
		return fn(failingInsertQuerier{Querier: q})
	})
}

func TestClaim_FailureLeavesNoPartialState(t *testing.T) {
	mem := repository.NewMemoryStore()
	seedCoupons(t, mem, "A", "B")
	engine := newTestEngine(failingInsertStore{MemoryStore: mem}, newFakeClock(), time.Minute)
	ctx := context.Background()

	_, err := engine.Claim(ctx, "ip1")
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}

	coupons, _ := mem.ListCoupons(ctx)
	for _, c := range coupons {
		if c.Claimed {
			t.Fatalf("expected %s to stay unclaimed", c.Code)
		}
	}
	if cursor, _ := mem.GetCursor(ctx); cursor != 0 {
		t.Fatalf("expected cursor 0, got %d", cursor)
	}
	if claims, _ := mem.ListClaims(ctx); len(claims) != 0 {
		t.Fatalf("expected empty ledger, got %d entries", len(claims))
	}
}

// editAfterReadStore changes every discount right after the rotation is read,
// as an admin edit racing a claim would.
type editAfterReadStore struct {
	*repository.MemoryStore
	discount decimal.Decimal
}

func (s editAfterReadStore) ListRotation(ctx context.Context, now time.Time) ([]domain.Coupon, error) {
	ring, err := s.MemoryStore.ListRotation(ctx, now)
	if err != nil {
		return nil, err
	}
	for _, c := range ring {
		if _, err := s.MemoryStore.UpdateCoupon(ctx, c.ID, domain.CouponUpdate{Discount: &s.discount}); err != nil {
			return nil, err
		}
	}
	return ring, nil
}

func TestClaim_RecordsDiscountAsClaimed(t *testing.T) {
	mem := repository.NewMemoryStore()
	seedCoupons(t, mem, "A")
	edited := decimal.NewFromInt(25)
	engine := newTestEngine(editAfterReadStore{MemoryStore: mem, discount: edited}, newFakeClock(), time.Minute)
	ctx := context.Background()

	alloc, err := engine.Claim(ctx, "ip1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !alloc.Discount.Equal(edited) {
		t.Fatalf("expected discount %s, got %s", edited, alloc.Discount)
	}
	claims, _ := mem.ListClaims(ctx)
	if len(claims) != 1 || !claims[0].Discount.Equal(edited) {
		t.Fatalf("expected ledger discount %s, got %+v", edited, claims)
	}
}

func TestClaim_CursorSurvivesRestart(t *testing.T) {
	path := t.TempDir() + "/coupons.db"
	clock := newFakeClock()
	ctx := context.Background()

	first, err := repository.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	seedCoupons(t, first, "A", "B", "C")
	alloc, err := newTestEngine(first, clock, time.Minute).Claim(ctx, "ip1")
	if err != nil || alloc.CouponCode != "A" {
		t.Fatalf("expected A, got %+v err=%v", alloc, err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close sqlite: %v", err)
	}

	second, err := repository.OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer second.Close()

	clock.At(time.Second)
	alloc, err = newTestEngine(second, clock, time.Minute).Claim(ctx, "ip2")
	if err != nil || alloc.CouponCode != "B" {
		t.Fatalf("expected B after restart, got %+v err=%v", alloc, err)
	}
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		err  error
		want stats.Outcome
	}{
		{nil, stats.OutcomeSuccess},
		{&domain.CooldownError{Remaining: time.Second}, stats.OutcomeCooldown},
		{domain.ErrNoCouponsAvailable, stats.OutcomeNoCoupons},
		{domain.ErrConflictRetryExhausted, stats.OutcomeConflict},
		{domain.ErrInvalidIdentity, stats.OutcomeInvalid},
		{errors.New("boom"), stats.OutcomeError},
	}
	for _, tt := range tests {
		if got := OutcomeOf(tt.err); got != tt.want {
			t.Fatalf("OutcomeOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
