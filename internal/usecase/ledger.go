package usecase

import (
	"context"

	"github.com/azizikri/round-robin-coupon/internal/domain"
	"github.com/azizikri/round-robin-coupon/internal/repository"
)

// ClaimLedger is the append-only history of successful claims.
type ClaimLedger struct {
	store repository.Store
}

func NewClaimLedger(store repository.Store) ClaimLedger {
	return ClaimLedger{store: store}
}

// MostRecentClaim returns nil when identity has never claimed.
func (l ClaimLedger) MostRecentClaim(ctx context.Context, identity string) (*domain.ClaimRecord, error) {
	rec, err := l.store.LatestClaim(ctx, identity)
	if err != nil {
		return nil, persistenceErr("latest claim", err)
	}
	return rec, nil
}

func (l ClaimLedger) Record(ctx context.Context, q repository.Querier, rec domain.ClaimRecord) (domain.ClaimRecord, error) {
	id, err := q.InsertClaim(ctx, rec)
	if err != nil {
		return domain.ClaimRecord{}, persistenceErr("insert claim", err)
	}
	rec.ID = id
	return rec, nil
}

// History lists all claims, newest first.
func (l ClaimLedger) History(ctx context.Context) ([]domain.ClaimRecord, error) {
	claims, err := l.store.ListClaims(ctx)
	if err != nil {
		return nil, persistenceErr("list claims", err)
	}
	return claims, nil
}
