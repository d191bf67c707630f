package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrNoCouponsAvailable     = errors.New("no coupons available")
	ErrConflictRetryExhausted = errors.New("too much contention, retry the request")
	ErrCooldownActive         = errors.New("identity is cooling down")
	ErrPersistence            = errors.New("persistence failure")
	ErrNotFound               = errors.New("coupon not found")
	ErrDuplicateCoupon        = errors.New("coupon already exists")
	ErrInvalidCoupon          = errors.New("invalid coupon")
	ErrInvalidIdentity        = errors.New("identity is required")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrClaimTimeout           = errors.New("claim timed out")
)

// CooldownError is returned when an identity claims again inside its cooldown window.
// It matches ErrCooldownActive with errors.Is.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("please wait %d seconds before claiming again", e.RemainingSeconds())
}

// RemainingSeconds rounds the remaining wait up to whole seconds.
func (e *CooldownError) RemainingSeconds() int64 {
	if e.Remaining <= 0 {
		return 0
	}
	return int64(math.Ceil(e.Remaining.Seconds()))
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldownActive
}

// NewCooldownError builds a CooldownError from a whole number of seconds.
func NewCooldownError(seconds int64) *CooldownError {
	return &CooldownError{Remaining: time.Duration(seconds) * time.Second}
}
