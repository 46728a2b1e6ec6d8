package domain

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusPending     = "PENDING"
	StatusAutoSynced  = "AUTO_SYNCED"
	StatusNeedsReview = "NEEDS_REVIEW"
	StatusApproved    = "APPROVED"
	StatusRejected    = "REJECTED"
)

// RawMessage is the durable record of every inbound SMS. Rows are written
// before any parsing happens and never deleted; only Processed flips.
type RawMessage struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	OwnerID    string    `gorm:"index" json:"owner_id"`
	Text       string    `json:"raw_content"`
	Sender     string    `json:"sender"`
	ReceivedAt time.Time `gorm:"index" json:"received_at"`
	Processed  bool      `gorm:"index" json:"processed"`
}

// MessageFingerprint is the permanent dedup ledger. The composite primary
// key makes the insert the atomic check-and-record step: a second insert
// for the same (owner, fingerprint) fails with a duplicate-key error.
type MessageFingerprint struct {
	OwnerID     string `gorm:"primaryKey"`
	Fingerprint string `gorm:"primaryKey"`
	SeenAt      time.Time
}

type Client struct {
	ID                string                      `gorm:"primaryKey" json:"id"`
	OwnerID           string                      `gorm:"index" json:"owner_id"`
	CanonicalName     string                      `gorm:"index" json:"canonical_name"`
	Aliases           datatypes.JSONSlice[string] `json:"aliases"`
	BookingCount      int                         `json:"booking_count"`
	CancellationCount int                         `json:"cancellation_count"`
	NoShowCount       int                         `json:"no_show_count"`
	FirstSeen         time.Time                   `json:"first_seen"`
	LastSeen          time.Time                   `gorm:"index" json:"last_seen"`
}

type Booking struct {
	ID              string    `gorm:"primaryKey" json:"id"`
	OwnerID         string    `gorm:"index" json:"owner_id"`
	ClientID        string    `gorm:"index" json:"client_id"`
	MessageID       string    `gorm:"index" json:"message_id"`
	CustomerName    string    `json:"customer_name"`
	Service         string    `json:"service"`
	AppointmentTime time.Time `gorm:"index" json:"appointment_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Confidence      float64   `json:"confidence"`
	Status          string    `gorm:"index" json:"status"`
	ReviewReason    string    `json:"review_reason,omitempty"`
	ExternalEventID string    `json:"external_event_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// End returns the exclusive end of the appointment slot.
func (b *Booking) End() time.Time {
	return b.AppointmentTime.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// CredentialRecord stores calendar OAuth tokens for one owner. Token
// columns hold vault ciphertext only; plaintext never reaches the DB.
type CredentialRecord struct {
	OwnerID                string    `gorm:"primaryKey"`
	OwnerEmail             string    `gorm:"uniqueIndex"`
	AccessTokenCiphertext  string
	RefreshTokenCiphertext string
	TokenExpiry            time.Time
	AuthMethod             string // "web" or "ios"
	UpdatedAt              time.Time
}
