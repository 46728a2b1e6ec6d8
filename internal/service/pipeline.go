package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/godswillmedia-source/stylesync-pwa/internal/domain"
	"github.com/godswillmedia-source/stylesync-pwa/internal/extract"
	"github.com/godswillmedia-source/stylesync-pwa/internal/repository"
)

// CalendarSyncer is the outbound calendar boundary. Implementations must
// be idempotent by event id: Push updates in place when the booking
// already carries one.
type CalendarSyncer interface {
	Push(ctx context.Context, ownerID string, b *domain.Booking) (eventID string, err error)
	Remove(ctx context.Context, ownerID, eventID string) error
}

// Pipeline drives a stored message through extraction, dedup, client
// resolution, reconciliation and calendar sync. Everything downstream of
// the message store is recoverable: failures change a booking's status,
// never the pipeline's availability.
type Pipeline struct {
	db           *gorm.DB
	messages     *repository.MessageRepo
	fingerprints *repository.FingerprintRepo
	clients      *repository.ClientRepo
	bookings     *repository.BookingRepo
	resolver     *ClientResolver
	reconciler   Reconciler
	calendar     CalendarSyncer

	loc             *time.Location
	defaultDuration int
}

func NewPipeline(
	db *gorm.DB,
	messages *repository.MessageRepo,
	fingerprints *repository.FingerprintRepo,
	clients *repository.ClientRepo,
	bookings *repository.BookingRepo,
	calendar CalendarSyncer,
	threshold float64,
	loc *time.Location,
	defaultDuration int,
) *Pipeline {
	return &Pipeline{
		db:              db,
		messages:        messages,
		fingerprints:    fingerprints,
		clients:         clients,
		bookings:        bookings,
		resolver:        NewClientResolver(clients),
		reconciler:      Reconciler{Threshold: threshold},
		calendar:        calendar,
		loc:             loc,
		defaultDuration: defaultDuration,
	}
}

// Process turns one stored message into at most one booking. Safe to
// re-run at any time: the fingerprint ledger guarantees a replay cannot
// produce a second booking or a second counter bump.
func (p *Pipeline) Process(ctx context.Context, messageID string) error {
	msg, err := p.messages.ByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("load message %s: %w", messageID, err)
	}
	if msg.Processed {
		return nil
	}

	res, err := extract.Extract(msg.Text)
	if errors.Is(err, extract.ErrNoMatch) {
		// terminal non-error: message stays stored and unprocessed
		log.Printf("[pipeline] %s: no booking fields recognized", msg.ID)
		return nil
	}
	if err != nil {
		return err
	}

	when, err := res.ResolveTime(time.Now(), p.loc)
	if err != nil {
		log.Printf("[pipeline] %s: %v", msg.ID, err)
		return nil
	}

	// Claiming the fingerprint and creating its booking commit together.
	// The unique insert is still the atomicity point for racing
	// deliveries; the surrounding transaction makes sure a failure
	// anywhere after the claim releases it, so a redelivery can finish
	// the work instead of seeing a claim with no booking behind it.
	fp := extract.Fingerprint(msg.Text)
	var b *domain.Booking
	txErr := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := p.fingerprints.WithTx(tx).Record(ctx, msg.OwnerID, fp); err != nil {
			return err
		}

		clients := p.clients.WithTx(tx)
		client, err := NewClientResolver(clients).Resolve(ctx, msg.OwnerID, res.CustomerName)
		if err != nil {
			return fmt.Errorf("resolve client: %w", err)
		}

		b = &domain.Booking{
			OwnerID:         msg.OwnerID,
			ClientID:        client.ID,
			MessageID:       msg.ID,
			CustomerName:    client.CanonicalName,
			Service:         res.Service,
			AppointmentTime: when,
			DurationMinutes: p.defaultDuration,
			Confidence:      res.Confidence,
			Status:          domain.StatusPending,
		}

		bookings := p.bookings.WithTx(tx)
		overlaps, err := bookings.Overlapping(ctx, msg.OwnerID, when, b.End(), "")
		if err != nil {
			return fmt.Errorf("overlap check: %w", err)
		}
		b.ReviewReason = OverlapReason(overlaps)

		if err := bookings.Create(ctx, b); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		return clients.Attribute(ctx, client.ID, time.Now().UTC())
	})
	if errors.Is(txErr, repository.ErrDuplicate) {
		// another delivery already built the booking
		log.Printf("[pipeline] %s: duplicate fingerprint, skipping", msg.ID)
		return p.messages.MarkProcessed(ctx, msg.ID)
	}
	if txErr != nil {
		return txErr
	}

	switch p.reconciler.Decide(res.Confidence) {
	case domain.StatusAutoSynced:
		p.trySync(ctx, b)
	default:
		if _, err := p.bookings.UpdateStatus(ctx, b.ID, domain.StatusNeedsReview); err != nil {
			return err
		}
	}

	return p.messages.MarkProcessed(ctx, msg.ID)
}

// trySync performs the calendar side effect. A sync failure never
// destroys the booking: it stays PENDING with no event id and can be
// retried via review.
func (p *Pipeline) trySync(ctx context.Context, b *domain.Booking) {
	eventID, err := p.calendar.Push(ctx, b.OwnerID, b)
	if err != nil {
		log.Printf("[pipeline] sync booking %s failed (kept as %s): %v", b.ID, b.Status, err)
		return
	}
	b.ExternalEventID = eventID
	b.Status = domain.StatusAutoSynced
	if err := p.bookings.Save(ctx, b); err != nil {
		log.Printf("[pipeline] persist synced booking %s: %v", b.ID, err)
	}
}

// ApproveEdits are the reviewer's optional field overrides.
type ApproveEdits struct {
	CustomerName    string
	Service         string
	AppointmentTime *time.Time
}

// Approve applies reviewer edits, re-validates only the appointment time
// and performs the calendar sync. On sync success the booking lands in
// AUTO_SYNCED; on failure it stays APPROVED and retryable.
func (p *Pipeline) Approve(ctx context.Context, bookingID string, edits ApproveEdits) (*domain.Booking, error) {
	b, err := p.bookings.ByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != domain.StatusNeedsReview && b.Status != domain.StatusPending && b.Status != domain.StatusApproved {
		return nil, fmt.Errorf("booking %s is %s, not reviewable", b.ID, b.Status)
	}

	if edits.CustomerName != "" {
		b.CustomerName = edits.CustomerName
	}
	if edits.Service != "" {
		b.Service = edits.Service
	}
	if edits.AppointmentTime != nil {
		if err := ValidateAppointment(*edits.AppointmentTime, time.Now()); err != nil {
			return nil, err
		}
		b.AppointmentTime = *edits.AppointmentTime
	}

	b.Status = domain.StatusApproved
	if err := p.bookings.Save(ctx, b); err != nil {
		return nil, err
	}

	p.trySync(ctx, b)
	return b, nil
}

// Reject is terminal. Client counters already applied stay applied.
func (p *Pipeline) Reject(ctx context.Context, bookingID string) (*domain.Booking, error) {
	b, err := p.bookings.ByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status == domain.StatusRejected {
		return b, nil
	}
	if b.Status == domain.StatusAutoSynced {
		return nil, fmt.Errorf("booking %s already synced, delete it instead", b.ID)
	}
	return p.bookings.UpdateStatus(ctx, bookingID, domain.StatusRejected)
}

// QuickBook creates a manually entered booking. It still traces to a raw
// message: a synthetic one, so the one-message-one-booking invariant
// holds for the whole table.
func (p *Pipeline) QuickBook(ctx context.Context, ownerID, clientName, serviceName string, at time.Time) (*domain.Booking, error) {
	if err := ValidateAppointment(at, time.Now()); err != nil {
		return nil, err
	}

	text := fmt.Sprintf("Manual booking: %s - %s at %s", serviceName, clientName, at.Format(time.RFC3339))
	msg, _, err := p.messages.Store(ctx, ownerID, text, "manual", 0)
	if err != nil {
		return nil, err
	}

	client, err := p.resolver.Resolve(ctx, ownerID, clientName)
	if err != nil {
		return nil, err
	}

	b := &domain.Booking{
		OwnerID:         ownerID,
		ClientID:        client.ID,
		MessageID:       msg.ID,
		CustomerName:    client.CanonicalName,
		Service:         serviceName,
		AppointmentTime: at,
		DurationMinutes: p.defaultDuration,
		Confidence:      1.0,
		Status:          domain.StatusPending,
	}
	overlaps, err := p.bookings.Overlapping(ctx, ownerID, at, b.End(), "")
	if err != nil {
		return nil, err
	}
	b.ReviewReason = OverlapReason(overlaps)

	if err := p.bookings.Create(ctx, b); err != nil {
		return nil, err
	}
	if err := p.clients.Attribute(ctx, client.ID, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := p.messages.MarkProcessed(ctx, msg.ID); err != nil {
		return nil, err
	}

	p.trySync(ctx, b)
	return b, nil
}

// DeleteBooking removes the booking and, when synced, its calendar
// event. A missing row is not an error for the caller.
func (p *Pipeline) DeleteBooking(ctx context.Context, bookingID string) error {
	b, err := p.bookings.ByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if b.ExternalEventID != "" {
		if err := p.calendar.Remove(ctx, b.OwnerID, b.ExternalEventID); err != nil {
			log.Printf("[pipeline] delete calendar event %s: %v", b.ExternalEventID, err)
		}
	}
	return p.bookings.Delete(ctx, b.ID)
}
