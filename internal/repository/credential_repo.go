package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/godswillmedia-source/stylesync-pwa/internal/domain"
)

type CredentialRepo struct{ db *gorm.DB }

func NewCredentialRepo(db *gorm.DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

func (r *CredentialRepo) ByOwner(ctx context.Context, ownerID string) (*domain.CredentialRecord, error) {
	var rec domain.CredentialRecord
	if err := r.db.WithContext(ctx).First(&rec, "owner_id = ?", ownerID).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// ByEmail maps the webhook's ?user= parameter to an owner. The external
// auth collaborator writes these rows at sign-in; the pipeline only
// reads and refreshes them.
func (r *CredentialRepo) ByEmail(ctx context.Context, email string) (*domain.CredentialRecord, error) {
	var rec domain.CredentialRecord
	if err := r.db.WithContext(ctx).First(&rec, "owner_email = ?", email).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *CredentialRepo) Upsert(ctx context.Context, rec *domain.CredentialRecord) error {
	rec.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Save(rec).Error
}

// SaveTokens persists refreshed ciphertext. Called under the calendar
// adapter's per-owner lock, so concurrent refreshes serialize and the
// latest write wins whole.
func (r *CredentialRepo) SaveTokens(ctx context.Context, ownerID, accessCT, refreshCT string, expiry time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.CredentialRecord{}).
		Where("owner_id = ?", ownerID).
		Updates(map[string]any{
			"access_token_ciphertext":  accessCT,
			"refresh_token_ciphertext": refreshCT,
			"token_expiry":             expiry,
			"updated_at":               time.Now().UTC(),
		}).Error
}
