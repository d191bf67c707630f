package usecase

import (
	"time"

	"github.com/azizikri/round-robin-coupon/internal/domain"
)

// Decision is the outcome of a cooldown check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RateLimiter enforces the minimum gap between two successful claims by the
// same identity.
type RateLimiter struct {
	cooldown time.Duration
}

func NewRateLimiter(cooldown time.Duration) RateLimiter {
	if cooldown < 0 {
		cooldown = 0
	}
	return RateLimiter{cooldown: cooldown}
}

// CheckCooldown reports whether an identity whose latest claim is last may
// claim at now. RetryAfter is rounded up to whole seconds.
func (r RateLimiter) CheckCooldown(last *domain.ClaimRecord, now time.Time) Decision {
	if last == nil {
		return Decision{Allowed: true}
	}

	elapsed := now.Sub(last.ClaimedAt)
	if elapsed >= r.cooldown {
		return Decision{Allowed: true}
	}

	remaining := r.cooldown - elapsed
	if rounded := remaining.Truncate(time.Second); rounded < remaining {
		remaining = rounded + time.Second
	}
	return Decision{RetryAfter: remaining}
}
