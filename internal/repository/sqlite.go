package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/azizikri/round-robin-coupon/internal/domain"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type couponModel struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	Code      string          `gorm:"uniqueIndex;not null"`
	Discount  decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Claimed   bool            `gorm:"not null;default:false;index"`
	ClaimedBy *string
	ClaimedAt *time.Time
	ExpiresAt *time.Time `gorm:"index"`
	CreatedAt time.Time
}

func (couponModel) TableName() string { return "coupons" }

type claimModel struct {
	ID         int64           `gorm:"primaryKey;autoIncrement"`
	Identity   string          `gorm:"not null;index:idx_claims_identity_claimed_at,priority:1"`
	CouponCode string          `gorm:"not null"`
	Discount   decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	ClaimedAt  time.Time       `gorm:"not null;index:idx_claims_identity_claimed_at,priority:2"`
}

func (claimModel) TableName() string { return "claims" }

type cursorModel struct {
	ID       int `gorm:"primaryKey;autoIncrement:false"`
	Position int64
}

func (cursorModel) TableName() string { return "assignment_cursor" }

const cursorRowID = 1

// GormStore is the SQLite adapter. Writers are serialised through a single
// connection, which is what makes the conditional updates race-free.
type GormStore struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the database at dsn and migrates the schema.
func OpenSQLite(dsn string) (*GormStore, error) {
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := gdb.AutoMigrate(&couponModel{}, &claimModel{}, &cursorModel{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return NewGormStore(gdb), nil
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) ExecTx(ctx context.Context, fn func(Querier) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(gormTx{db: tx})
	})
}

func (s *GormStore) ListRotation(ctx context.Context, now time.Time) ([]domain.Coupon, error) {
	return listRotation(s.db.WithContext(ctx), now)
}

func (s *GormStore) GetCursor(ctx context.Context) (int64, error) {
	var row cursorModel
	err := s.db.WithContext(ctx).
		Where(cursorModel{ID: cursorRowID}).
		Attrs(cursorModel{Position: 0}).
		FirstOrCreate(&row).Error
	if err != nil {
		return 0, err
	}
	return row.Position, nil
}

func (s *GormStore) LatestClaim(ctx context.Context, identity string) (*domain.ClaimRecord, error) {
	return gormLatestClaim(s.db.WithContext(ctx), identity)
}

func (s *GormStore) ListClaims(ctx context.Context) ([]domain.ClaimRecord, error) {
	var rows []claimModel
	if err := s.db.WithContext(ctx).Order("claimed_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	claims := make([]domain.ClaimRecord, 0, len(rows))
	for _, row := range rows {
		claims = append(claims, row.toDomain())
	}
	return claims, nil
}

func (s *GormStore) CreateCoupon(ctx context.Context, arg domain.NewCoupon) (domain.Coupon, error) {
	row := couponModel{
		Code:      arg.Code,
		Discount:  arg.Discount,
		ExpiresAt: utcPtr(arg.ExpiresAt),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicate(err) {
			return domain.Coupon{}, domain.ErrDuplicateCoupon
		}
		return domain.Coupon{}, err
	}
	return row.toDomain(), nil
}

func (s *GormStore) GetCoupon(ctx context.Context, id int64) (domain.Coupon, error) {
	var row couponModel
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Coupon{}, domain.ErrNotFound
		}
		return domain.Coupon{}, err
	}
	return row.toDomain(), nil
}

func (s *GormStore) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	var rows []couponModel
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return couponsFromModels(rows), nil
}

func (s *GormStore) UpdateCoupon(ctx context.Context, id int64, arg domain.CouponUpdate) (domain.Coupon, error) {
	var out domain.Coupon
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row couponModel
		if err := tx.First(&row, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		next := applyUpdate(row.toDomain(), arg)
		err := tx.Model(&couponModel{}).Where("id = ?", id).Updates(map[string]interface{}{
			"discount":   next.Discount,
			"expires_at": next.ExpiresAt,
		}).Error
		if err != nil {
			return err
		}
		out = next
		return nil
	})
	return out, err
}

func (s *GormStore) DeleteCoupon(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&couponModel{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gormTx struct {
	db *gorm.DB
}

// LockIdentity is a no-op: SQLite already runs one writer at a time.
func (tx gormTx) LockIdentity(context.Context, string) error { return nil }

func (tx gormTx) LatestClaim(_ context.Context, identity string) (*domain.ClaimRecord, error) {
	return gormLatestClaim(tx.db, identity)
}

func (tx gormTx) ClaimCoupon(_ context.Context, id int64, identity string, at time.Time) (*domain.Coupon, error) {
	var row couponModel
	if err := tx.db.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !row.toDomain().Available(at) {
		return nil, nil
	}

	claimedAt := at.UTC()
	result := tx.db.Model(&couponModel{}).
		Where("id = ? AND claimed = ?", id, false).
		Updates(map[string]interface{}{
			"claimed":    true,
			"claimed_by": identity,
			"claimed_at": claimedAt,
		})
	if result.Error != nil || result.RowsAffected == 0 {
		return nil, result.Error
	}

	row.Claimed = true
	row.ClaimedBy = &identity
	row.ClaimedAt = &claimedAt
	coupon := row.toDomain()
	return &coupon, nil
}

func (tx gormTx) CountRotation(_ context.Context, now time.Time) (int64, error) {
	coupons, err := listRotation(tx.db, now)
	if err != nil {
		return 0, err
	}
	return int64(len(coupons)), nil
}

func (tx gormTx) AdvanceCursor(_ context.Context, observed, next int64) (int64, error) {
	result := tx.db.Model(&cursorModel{}).
		Where("id = ? AND position = ?", cursorRowID, observed).
		Update("position", next)
	return result.RowsAffected, result.Error
}

func (tx gormTx) InsertClaim(_ context.Context, rec domain.ClaimRecord) (int64, error) {
	row := claimModel{
		Identity:   rec.Identity,
		CouponCode: rec.CouponCode,
		Discount:   rec.Discount,
		ClaimedAt:  rec.ClaimedAt.UTC(),
	}
	if err := tx.db.Create(&row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

// listRotation filters expiry in Go so the comparison does not depend on how
// the driver serialises timestamps.
func listRotation(db *gorm.DB, now time.Time) ([]domain.Coupon, error) {
	var rows []couponModel
	if err := db.Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Coupon, 0, len(rows))
	for _, row := range rows {
		c := row.toDomain()
		if !c.Expired(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func gormLatestClaim(db *gorm.DB, identity string) (*domain.ClaimRecord, error) {
	var row claimModel
	err := db.Where("identity = ?", identity).Order("claimed_at DESC").Order("id DESC").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	rec := row.toDomain()
	return &rec, nil
}

func couponsFromModels(rows []couponModel) []domain.Coupon {
	out := make([]domain.Coupon, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out
}

func (m couponModel) toDomain() domain.Coupon {
	c := domain.Coupon{
		ID:        m.ID,
		Code:      m.Code,
		Discount:  m.Discount,
		Claimed:   m.Claimed,
		ClaimedAt: utcPtr(m.ClaimedAt),
		ExpiresAt: utcPtr(m.ExpiresAt),
		CreatedAt: m.CreatedAt.UTC(),
	}
	if m.ClaimedBy != nil {
		c.ClaimedBy = *m.ClaimedBy
	}
	return c
}

func (m claimModel) toDomain() domain.ClaimRecord {
	return domain.ClaimRecord{
		ID:         m.ID,
		Identity:   m.Identity,
		CouponCode: m.CouponCode,
		Discount:   m.Discount,
		ClaimedAt:  m.ClaimedAt.UTC(),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
