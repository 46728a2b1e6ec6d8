package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/godswillmedia-source/stylesync-pwa/internal/domain"
)

type ClientRepo struct{ db *gorm.DB }

func NewClientRepo(db *gorm.DB) *ClientRepo {
	return &ClientRepo{db: db}
}

// WithTx returns a copy bound to an open transaction.
func (r *ClientRepo) WithTx(tx *gorm.DB) *ClientRepo {
	return &ClientRepo{db: tx}
}

func (r *ClientRepo) Create(ctx context.Context, c *domain.Client) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *ClientRepo) Save(ctx context.Context, c *domain.Client) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *ClientRepo) ByID(ctx context.Context, id string) (*domain.Client, error) {
	var c domain.Client
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByOwner returns the owner's full roster, most recently seen first.
// Rosters are a single stylist's client book; loading it whole for the
// resolver's in-memory matching is fine.
func (r *ClientRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.Client, error) {
	var out []domain.Client
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("last_seen DESC").
		Find(&out).Error
	return out, err
}

// Attribute bumps the booking counter and freshens last_seen. Runs on
// every booking credited to the client, whatever the eventual sync
// outcome.
func (r *ClientRepo) Attribute(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Client{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"booking_count": gorm.Expr("booking_count + 1"),
			"last_seen":     at,
		}).Error
}
