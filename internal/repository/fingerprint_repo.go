package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/godswillmedia-source/stylesync-pwa/internal/domain"
)

// ErrDuplicate means the fingerprint was already recorded for this owner.
// Informational, not a failure: the message must simply not produce a
// second booking.
var ErrDuplicate = errors.New("duplicate_message")

type FingerprintRepo struct{ db *gorm.DB }

func NewFingerprintRepo(db *gorm.DB) *FingerprintRepo {
	return &FingerprintRepo{db: db}
}

// WithTx returns a copy bound to an open transaction.
func (r *FingerprintRepo) WithTx(tx *gorm.DB) *FingerprintRepo {
	return &FingerprintRepo{db: tx}
}

// Record claims a fingerprint for an owner. The unique insert is the
// atomicity point: two concurrent deliveries of the same message race on
// the composite key and exactly one wins. No pre-check, no expiry.
func (r *FingerprintRepo) Record(ctx context.Context, ownerID, fingerprint string) error {
	rec := domain.MessageFingerprint{
		OwnerID:     ownerID,
		Fingerprint: fingerprint,
		SeenAt:      time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).Create(&rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (r *FingerprintRepo) Seen(ctx context.Context, ownerID, fingerprint string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.MessageFingerprint{}).
		Where("owner_id = ? AND fingerprint = ?", ownerID, fingerprint).
		Count(&n).Error
	return n > 0, err
}
