package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/azizikri/round-robin-coupon/internal/domain"
	"github.com/azizikri/round-robin-coupon/internal/logger"
	"github.com/azizikri/round-robin-coupon/internal/repository"
	"github.com/azizikri/round-robin-coupon/internal/stats"
	"go.uber.org/zap"
)

const DefaultMaxRetries = 5

// AllocationEngine hands out coupons in round-robin order, one per identity
// per cooldown window.
type AllocationEngine struct {
	store   repository.Store
	pool    CouponPool
	ledger  ClaimLedger
	cursor  AssignmentCursor
	limiter RateLimiter

	now        func() time.Time
	maxRetries int
	stats      stats.Recorder
	log        *zap.Logger
}

type Option func(*AllocationEngine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *AllocationEngine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(e *AllocationEngine) {
		if n > 0 {
			e.maxRetries = n
		}
	}
}

func WithStats(r stats.Recorder) Option {
	return func(e *AllocationEngine) {
		if r != nil {
			e.stats = r
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *AllocationEngine) {
		if l != nil {
			e.log = l
		}
	}
}

func NewAllocationEngine(store repository.Store, cooldown time.Duration, opts ...Option) *AllocationEngine {
	e := &AllocationEngine{
		store:      store,
		pool:       NewCouponPool(store),
		ledger:     NewClaimLedger(store),
		cursor:     NewAssignmentCursor(store),
		limiter:    NewRateLimiter(cooldown),
		now:        time.Now,
		maxRetries: DefaultMaxRetries,
		stats:      stats.Nop{},
		log:        logger.Z(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Claim allocates the next coupon in rotation to identity.
func (e *AllocationEngine) Claim(ctx context.Context, identity string) (*domain.Allocation, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		e.observe(ctx, identity, domain.ErrInvalidIdentity)
		return nil, domain.ErrInvalidIdentity
	}

	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		alloc, err := e.attempt(ctx, identity)
		if err == nil {
			e.observe(ctx, identity, nil)
			e.log.Info("coupon claimed",
				zap.String("identity", identity),
				zap.String("coupon_code", alloc.CouponCode),
				zap.Int("attempt", attempt),
			)
			return alloc, nil
		}
		if !errors.Is(err, errConflict) {
			e.observe(ctx, identity, err)
			e.logFailure(identity, err)
			return nil, err
		}
		e.log.Debug("claim conflict, retrying", zap.String("identity", identity), zap.Int("attempt", attempt))
	}

	e.observe(ctx, identity, domain.ErrConflictRetryExhausted)
	e.log.Warn("claim retries exhausted", zap.String("identity", identity), zap.Int("attempts", e.maxRetries))
	return nil, domain.ErrConflictRetryExhausted
}

func (e *AllocationEngine) attempt(ctx context.Context, identity string) (*domain.Allocation, error) {
	now := e.now().UTC()

	ring, err := e.pool.Rotation(ctx, now)
	if err != nil {
		return nil, err
	}
	pos, ok := selectCandidate(ring, 0)
	if !ok {
		return nil, domain.ErrNoCouponsAvailable
	}

	last, err := e.ledger.MostRecentClaim(ctx, identity)
	if err != nil {
		return nil, err
	}
	if d := e.limiter.CheckCooldown(last, now); !d.Allowed {
		return nil, &domain.CooldownError{Remaining: d.RetryAfter}
	}

	observed, err := e.cursor.Peek(ctx)
	if err != nil {
		return nil, err
	}
	if pos, ok = selectCandidate(ring, observed); !ok {
		return nil, domain.ErrNoCouponsAvailable
	}
	candidate := ring[pos]

	var alloc domain.Allocation
	err = e.store.ExecTx(ctx, func(q repository.Querier) error {
		if err := q.LockIdentity(ctx, identity); err != nil {
			return persistenceErr("lock identity", err)
		}
		last, err := q.LatestClaim(ctx, identity)
		if err != nil {
			return persistenceErr("latest claim", err)
		}
		if d := e.limiter.CheckCooldown(last, now); !d.Allowed {
			return &domain.CooldownError{Remaining: d.RetryAfter}
		}

		claimed, err := e.pool.TryClaim(ctx, q, candidate.ID, identity, now)
		if err != nil {
			return err
		}
		if claimed == nil {
			return errConflict
		}

		size, err := q.CountRotation(ctx, now)
		if err != nil {
			return persistenceErr("count rotation", err)
		}
		advanced, err := e.cursor.Advance(ctx, q, observed, int64(pos), size)
		if err != nil {
			return err
		}
		if !advanced {
			return errConflict
		}

		rec, err := e.ledger.Record(ctx, q, domain.ClaimRecord{
			Identity:   identity,
			CouponCode: claimed.Code,
			Discount:   claimed.Discount,
			ClaimedAt:  now,
		})
		if err != nil {
			return err
		}

		alloc = domain.Allocation{
			CouponCode: rec.CouponCode,
			Discount:   rec.Discount,
			ClaimedAt:  rec.ClaimedAt,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errConflict) || errors.Is(err, domain.ErrCooldownActive) {
			return nil, err
		}
		return nil, persistenceErr("claim transaction", err)
	}
	return &alloc, nil
}

func (e *AllocationEngine) observe(ctx context.Context, identity string, err error) {
	ev := stats.Event{Identity: identity, Outcome: OutcomeOf(err), At: e.now().UTC()}
	if recErr := e.stats.Record(ctx, ev); recErr != nil {
		e.log.Warn("record claim stats failed", zap.Error(recErr))
	}
}

func (e *AllocationEngine) logFailure(identity string, err error) {
	switch {
	case errors.Is(err, domain.ErrCooldownActive), errors.Is(err, domain.ErrNoCouponsAvailable):
		e.log.Info("claim rejected", zap.String("identity", identity), zap.Error(err))
	default:
		e.log.Error("claim failed", zap.String("identity", identity), zap.Error(err))
	}
}

// OutcomeOf maps a Claim result to its stats outcome.
func OutcomeOf(err error) stats.Outcome {
	switch {
	case err == nil:
		return stats.OutcomeSuccess
	case errors.Is(err, domain.ErrCooldownActive):
		return stats.OutcomeCooldown
	case errors.Is(err, domain.ErrNoCouponsAvailable):
		return stats.OutcomeNoCoupons
	case errors.Is(err, domain.ErrConflictRetryExhausted):
		return stats.OutcomeConflict
	case errors.Is(err, domain.ErrInvalidIdentity):
		return stats.OutcomeInvalid
	default:
		return stats.OutcomeError
	}
}
