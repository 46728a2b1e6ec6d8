package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/godswillmedia-source/stylesync-pwa/internal/domain"
)

type MessageRepo struct{ db *gorm.DB }

func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Store persists the raw message before anything else touches it. A
// byte-identical text from the same owner inside the window is a
// transport-level retry: the existing row is returned with dup=true and
// nothing new is written.
func (r *MessageRepo) Store(ctx context.Context, ownerID, text, sender string, window time.Duration) (*domain.RawMessage, bool, error) {
	var existing domain.RawMessage
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND text = ? AND received_at >= ?", ownerID, text, time.Now().UTC().Add(-window)).
		Take(&existing).Error
	if err == nil {
		return &existing, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	m := &domain.RawMessage{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Text:       text,
		Sender:     sender,
		ReceivedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, false, err
	}
	return m, false, nil
}

func (r *MessageRepo) ByID(ctx context.Context, id string) (*domain.RawMessage, error) {
	var m domain.RawMessage
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MessageRepo) MarkProcessed(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&domain.RawMessage{}).
		Where("id = ?", id).
		Update("processed", true).Error
}

func (r *MessageRepo) List(ctx context.Context, ownerID string, limit int) ([]domain.RawMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []domain.RawMessage
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("received_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Stats returns total and still-unprocessed message counts for an owner.
func (r *MessageRepo) Stats(ctx context.Context, ownerID string) (total, pending int64, err error) {
	if err = r.db.WithContext(ctx).Model(&domain.RawMessage{}).
		Where("owner_id = ?", ownerID).
		Count(&total).Error; err != nil {
		return 0, 0, err
	}
	err = r.db.WithContext(ctx).Model(&domain.RawMessage{}).
		Where("owner_id = ? AND processed = ?", ownerID, false).
		Count(&pending).Error
	return total, pending, err
}
