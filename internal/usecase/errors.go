package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/azizikri/round-robin-coupon/internal/domain"
)

// errConflict marks an attempt that lost a race and should be retried.
var errConflict = errors.New("claim conflict")

// persistenceErr wraps a storage failure in domain.ErrPersistence. Domain
// sentinels and context errors pass through unchanged.
func persistenceErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, domain.ErrPersistence),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrDuplicateCoupon):
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrPersistence, op, err)
}
