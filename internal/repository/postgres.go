package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	db "github.com/azizikri/round-robin-coupon/db/gen"
	"github.com/azizikri/round-robin-coupon/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const pgUniqueViolation = "23505"

type pgStore struct {
	pool    *pgxpool.Pool
	queries *db.Queries
}

func New(pool *pgxpool.Pool) Store {
	return &pgStore{
		pool:    pool,
		queries: db.New(pool),
	}
}

func (s *pgStore) ExecTx(ctx context.Context, fn func(Querier) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	q := &pgQuerier{queries: s.queries.WithTx(tx)}
	if err := fn(q); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx err: %w, rollback err: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *pgStore) ListRotation(ctx context.Context, now time.Time) ([]domain.Coupon, error) {
	rows, err := s.queries.ListRotation(ctx, timestamptz(&now))
	if err != nil {
		return nil, err
	}
	return couponsFromRows(rows), nil
}

func (s *pgStore) GetCursor(ctx context.Context) (int64, error) {
	position, err := s.queries.GetCursor(ctx)
	if errors.Is(err, pgx.ErrNoRows) {
		if err := s.queries.EnsureCursor(ctx); err != nil {
			return 0, err
		}
		return s.queries.GetCursor(ctx)
	}
	return position, err
}

func (s *pgStore) LatestClaim(ctx context.Context, identity string) (*domain.ClaimRecord, error) {
	return latestClaim(ctx, s.queries, identity)
}

func (s *pgStore) ListClaims(ctx context.Context) ([]domain.ClaimRecord, error) {
	rows, err := s.queries.ListClaims(ctx)
	if err != nil {
		return nil, err
	}
	claims := make([]domain.ClaimRecord, 0, len(rows))
	for _, row := range rows {
		claims = append(claims, claimFromRow(row))
	}
	return claims, nil
}

func (s *pgStore) CreateCoupon(ctx context.Context, arg domain.NewCoupon) (domain.Coupon, error) {
	row, err := s.queries.CreateCoupon(ctx, db.CreateCouponParams{
		Code:      arg.Code,
		Discount:  numeric(arg.Discount),
		ExpiresAt: timestamptz(arg.ExpiresAt),
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.Coupon{}, domain.ErrDuplicateCoupon
		}
		return domain.Coupon{}, err
	}
	return couponFromRow(row), nil
}

func (s *pgStore) GetCoupon(ctx context.Context, id int64) (domain.Coupon, error) {
	row, err := s.queries.GetCoupon(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Coupon{}, domain.ErrNotFound
		}
		return domain.Coupon{}, err
	}
	return couponFromRow(row), nil
}

func (s *pgStore) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	rows, err := s.queries.ListCoupons(ctx)
	if err != nil {
		return nil, err
	}
	return couponsFromRows(rows), nil
}

func (s *pgStore) UpdateCoupon(ctx context.Context, id int64, arg domain.CouponUpdate) (domain.Coupon, error) {
	current, err := s.GetCoupon(ctx, id)
	if err != nil {
		return domain.Coupon{}, err
	}
	next := applyUpdate(current, arg)

	row, err := s.queries.UpdateCoupon(ctx, db.UpdateCouponParams{
		ID:        id,
		Discount:  numeric(next.Discount),
		ExpiresAt: timestamptz(next.ExpiresAt),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Coupon{}, domain.ErrNotFound
		}
		return domain.Coupon{}, err
	}
	return couponFromRow(row), nil
}

func (s *pgStore) DeleteCoupon(ctx context.Context, id int64) error {
	n, err := s.queries.DeleteCoupon(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *pgStore) Close() error {
	s.pool.Close()
	return nil
}

type pgQuerier struct {
	queries *db.Queries
}

func (q *pgQuerier) LockIdentity(ctx context.Context, identity string) error {
	return q.queries.LockIdentity(ctx, identity)
}

func (q *pgQuerier) LatestClaim(ctx context.Context, identity string) (*domain.ClaimRecord, error) {
	return latestClaim(ctx, q.queries, identity)
}

func (q *pgQuerier) ClaimCoupon(ctx context.Context, id int64, identity string, at time.Time) (*domain.Coupon, error) {
	row, err := q.queries.ClaimCoupon(ctx, db.ClaimCouponParams{
		ID:        id,
		ClaimedBy: pgtype.Text{String: identity, Valid: true},
		ClaimedAt: timestamptz(&at),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	coupon := couponFromRow(row)
	return &coupon, nil
}

func (q *pgQuerier) CountRotation(ctx context.Context, now time.Time) (int64, error) {
	return q.queries.CountRotation(ctx, timestamptz(&now))
}

func (q *pgQuerier) AdvanceCursor(ctx context.Context, observed, next int64) (int64, error) {
	return q.queries.AdvanceCursor(ctx, db.AdvanceCursorParams{
		NextPosition:     next,
		ObservedPosition: observed,
	})
}

func (q *pgQuerier) InsertClaim(ctx context.Context, rec domain.ClaimRecord) (int64, error) {
	return q.queries.InsertClaim(ctx, db.InsertClaimParams{
		Identity:   rec.Identity,
		CouponCode: rec.CouponCode,
		Discount:   numeric(rec.Discount),
		ClaimedAt:  timestamptz(&rec.ClaimedAt),
	})
}

func latestClaim(ctx context.Context, q *db.Queries, identity string) (*domain.ClaimRecord, error) {
	row, err := q.LatestClaimByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rec := claimFromRow(row)
	return &rec, nil
}

func couponsFromRows(rows []db.Coupon) []domain.Coupon {
	coupons := make([]domain.Coupon, 0, len(rows))
	for _, row := range rows {
		coupons = append(coupons, couponFromRow(row))
	}
	return coupons
}

func couponFromRow(row db.Coupon) domain.Coupon {
	return domain.Coupon{
		ID:        row.ID,
		Code:      row.Code,
		Discount:  fromNumeric(row.Discount),
		Claimed:   row.Claimed,
		ClaimedBy: row.ClaimedBy.String,
		ClaimedAt: fromTimestamptz(row.ClaimedAt),
		ExpiresAt: fromTimestamptz(row.ExpiresAt),
		CreatedAt: row.CreatedAt.Time,
	}
}

func claimFromRow(row db.Claim) domain.ClaimRecord {
	return domain.ClaimRecord{
		ID:         row.ID,
		Identity:   row.Identity,
		CouponCode: row.CouponCode,
		Discount:   fromNumeric(row.Discount),
		ClaimedAt:  row.ClaimedAt.Time,
	}
}

func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func fromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func timestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

func fromTimestamptz(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}
