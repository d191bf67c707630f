package kafka

import (
	"context"

	"github.com/azizikri/round-robin-coupon/internal/domain"
	"github.com/azizikri/round-robin-coupon/internal/usecase"
)

// DirectGateway claims in process, used when the event-driven path is off.
type DirectGateway struct {
	engine *usecase.AllocationEngine
}

func NewDirectGateway(engine *usecase.AllocationEngine) usecase.ClaimGateway {
	return &DirectGateway{engine: engine}
}

func (g *DirectGateway) Claim(ctx context.Context, identity string) (*domain.Allocation, error) {
	return g.engine.Claim(ctx, identity)
}
