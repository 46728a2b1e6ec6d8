package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/godswillmedia-source/stylesync-pwa/internal/domain"
)

// longest slot we ever book; bounds the overlap candidate window
const maxSlot = 24 * time.Hour

type BookingRepo struct{ db *gorm.DB }

func NewBookingRepo(db *gorm.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

// WithTx returns a copy bound to an open transaction.
func (r *BookingRepo) WithTx(tx *gorm.DB) *BookingRepo {
	return &BookingRepo{db: tx}
}

func (r *BookingRepo) Create(ctx context.Context, b *domain.Booking) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *BookingRepo) Save(ctx context.Context, b *domain.Booking) error {
	return r.db.WithContext(ctx).Save(b).Error
}

func (r *BookingRepo) ByID(ctx context.Context, id string) (*domain.Booking, error) {
	var b domain.Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepo) UpdateStatus(ctx context.Context, id, to string) (*domain.Booking, error) {
	var b domain.Booking
	tx := r.db.WithContext(ctx).Begin()
	if err := tx.First(&b, "id = ?", id).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	b.Status = to
	if err := tx.Save(&b).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	return &b, tx.Commit().Error
}

func (r *BookingRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.Booking, error) {
	var out []domain.Booking
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("appointment_time ASC").
		Find(&out).Error
	return out, err
}

// Overlapping finds live bookings whose [start, start+duration) slot
// intersects [start, end). The end bound is computed in Go to keep the
// query portable; candidates are prefiltered to a window no slot can
// outrun.
func (r *BookingRepo) Overlapping(ctx context.Context, ownerID string, start, end time.Time, excludeID string) ([]domain.Booking, error) {
	var candidates []domain.Booking
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND status IN ?", ownerID,
			[]string{domain.StatusPending, domain.StatusAutoSynced, domain.StatusNeedsReview, domain.StatusApproved}).
		Where("appointment_time < ? AND appointment_time > ?", end, start.Add(-maxSlot)).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	var out []domain.Booking
	for i := range candidates {
		b := candidates[i]
		if b.ID == excludeID {
			continue
		}
		if b.End().After(start) && b.AppointmentTime.Before(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *BookingRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&domain.Booking{}, "id = ?", id).Error
}
