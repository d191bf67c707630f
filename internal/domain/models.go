package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Coupon struct {
	ID        int64           `json:"id"`
	Code      string          `json:"code"`
	Discount  decimal.Decimal `json:"discount"`
	Claimed   bool            `json:"claimed"`
	ClaimedBy string          `json:"claimed_by,omitempty"`
	ClaimedAt *time.Time      `json:"claimed_at,omitempty"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Expired reports whether the coupon is past its expiry at now.
func (c Coupon) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// Available reports whether the coupon can still be handed out at now.
func (c Coupon) Available(now time.Time) bool {
	return !c.Claimed && !c.Expired(now)
}

type NewCoupon struct {
	Code      string
	Discount  decimal.Decimal
	ExpiresAt *time.Time
}

type CouponUpdate struct {
	Discount  *decimal.Decimal
	ExpiresAt *time.Time
	// ClearExpiry removes the expiry instead of setting it.
	ClearExpiry bool
}

// ClaimRecord is one append-only ledger entry.
type ClaimRecord struct {
	ID         int64           `json:"id"`
	Identity   string          `json:"identity"`
	CouponCode string          `json:"coupon_code"`
	Discount   decimal.Decimal `json:"discount"`
	ClaimedAt  time.Time       `json:"claimed_at"`
}

type Allocation struct {
	CouponCode string          `json:"coupon_code"`
	Discount   decimal.Decimal `json:"discount"`
	ClaimedAt  time.Time       `json:"claimed_at"`
}
