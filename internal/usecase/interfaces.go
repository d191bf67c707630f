package usecase

import (
	"context"

	"github.com/azizikri/round-robin-coupon/internal/domain"
)

// ClaimGateway is what the delivery layer claims through: either the engine in
// process or a request/reply round trip over Kafka.
type ClaimGateway interface {
	Claim(ctx context.Context, identity string) (*domain.Allocation, error)
}

var _ ClaimGateway = (*AllocationEngine)(nil)
