package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/godswillmedia-source/stylesync-pwa/internal/domain"
	"github.com/godswillmedia-source/stylesync-pwa/internal/repository"
)

type mockCalendar struct{ mock.Mock }

func (m *mockCalendar) Push(ctx context.Context, ownerID string, b *domain.Booking) (string, error) {
	args := m.Called(ctx, ownerID, b)
	return args.String(0), args.Error(1)
}

func (m *mockCalendar) Remove(ctx context.Context, ownerID, eventID string) error {
	args := m.Called(ctx, ownerID, eventID)
	return args.Error(0)
}

type pipelineFixture struct {
	gdb      *gorm.DB
	messages *repository.MessageRepo
	bookings *repository.BookingRepo
	clients  *repository.ClientRepo
	cal      *mockCalendar
	pipeline *Pipeline
}

func newFixture(t *testing.T) *pipelineFixture {
	gdb := testDB(t)
	f := &pipelineFixture{
		gdb:      gdb,
		messages: repository.NewMessageRepo(gdb),
		bookings: repository.NewBookingRepo(gdb),
		clients:  repository.NewClientRepo(gdb),
		cal:      &mockCalendar{},
	}
	f.pipeline = NewPipeline(
		gdb,
		f.messages,
		repository.NewFingerprintRepo(gdb),
		f.clients,
		f.bookings,
		f.cal,
		0.8,
		time.UTC,
		60,
	)
	return f
}

func (f *pipelineFixture) store(t *testing.T, owner, text string) string {
	m, dup, err := f.messages.Store(context.Background(), owner, text, "StyleSeat", 0)
	require.NoError(t, err)
	require.False(t, dup)
	return m.ID
}

const fullMessage = "You just got booked! Jane Smith scheduled a Haircut with you on Jan 20 at 2:00 PM"

func TestProcessHighConfidenceAutoSyncs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cal.On("Push", mock.Anything, "owner-1", mock.Anything).Return("evt-123", nil).Once()

	id := f.store(t, "owner-1", fullMessage)
	require.NoError(t, f.pipeline.Process(ctx, id))

	list, err := f.bookings.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	b := list[0]
	assert.Equal(t, domain.StatusAutoSynced, b.Status)
	assert.Equal(t, "evt-123", b.ExternalEventID)
	assert.Equal(t, "Jane Smith", b.CustomerName)
	assert.Equal(t, "Haircut", b.Service)
	assert.Equal(t, id, b.MessageID)
	assert.InDelta(t, 1.0, b.Confidence, 1e-9)

	msg, err := f.messages.ByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, msg.Processed)

	f.cal.AssertExpectations(t)
}

func TestProcessLowConfidenceNeedsReview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	// no Push expectation: review never touches the calendar

	id := f.store(t, "owner-1", "...Sam... at 10:00 AM")
	require.NoError(t, f.pipeline.Process(ctx, id))

	list, err := f.bookings.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.StatusNeedsReview, list[0].Status)
	assert.Empty(t, list[0].ExternalEventID)
	assert.InDelta(t, 0.5, list[0].Confidence, 1e-9)

	f.cal.AssertNotCalled(t, "Push", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessDuplicateNeverMakesSecondBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cal.On("Push", mock.Anything, "owner-1", mock.Anything).Return("evt-123", nil).Once()

	// two deliveries seconds apart; window 0 so both rows stored, the
	// fingerprint ledger must still collapse them to one booking
	id1 := f.store(t, "owner-1", fullMessage)
	id2 := f.store(t, "owner-1", fullMessage)

	require.NoError(t, f.pipeline.Process(ctx, id1))
	require.NoError(t, f.pipeline.Process(ctx, id2))

	list, err := f.bookings.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// client counters bumped once, not twice
	roster, err := f.clients.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, 1, roster[0].BookingCount)

	f.cal.AssertExpectations(t)
}

func TestProcessIsIdempotentPerMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cal.On("Push", mock.Anything, "owner-1", mock.Anything).Return("evt-123", nil).Once()

	id := f.store(t, "owner-1", fullMessage)
	require.NoError(t, f.pipeline.Process(ctx, id))
	// redelivery of the same MQ event
	require.NoError(t, f.pipeline.Process(ctx, id))

	list, err := f.bookings.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	f.cal.AssertNumberOfCalls(t, "Push", 1)
}

func TestProcessFailureAfterClaimIsRetryable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cal.On("Push", mock.Anything, "owner-1", mock.Anything).Return("evt-123", nil).Once()

	id := f.store(t, "owner-1", fullMessage)

	// simulate a transient storage fault between the fingerprint claim
	// and the booking insert
	require.NoError(t, f.gdb.Migrator().DropTable(&domain.Booking{}))
	require.Error(t, f.pipeline.Process(ctx, id))

	// the failed run must not leave a claim behind: the message stays
	// unprocessed and the redelivery builds the booking
	msg, err := f.messages.ByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, msg.Processed)

	require.NoError(t, f.gdb.Migrator().CreateTable(&domain.Booking{}))
	require.NoError(t, f.pipeline.Process(ctx, id))

	list, err := f.bookings.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.StatusAutoSynced, list[0].Status)
	f.cal.AssertExpectations(t)
}

func TestProcessSyncFailureKeepsBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cal.On("Push", mock.Anything, "owner-1", mock.Anything).
		Return("", assert.AnError).Once()

	id := f.store(t, "owner-1", fullMessage)
	require.NoError(t, f.pipeline.Process(ctx, id))

	list, err := f.bookings.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.StatusPending, list[0].Status)
	assert.Empty(t, list[0].ExternalEventID)

	// retryable: approving later syncs it
	f.cal.On("Push", mock.Anything, "owner-1", mock.Anything).Return("evt-9", nil).Once()
	b, err := f.pipeline.Approve(ctx, list[0].ID, ApproveEdits{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAutoSynced, b.Status)
	assert.Equal(t, "evt-9", b.ExternalEventID)
}

func TestProcessUnparseableLeavesMessageUnprocessed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id := f.store(t, "owner-1", "Your subscription renews next month")
	require.NoError(t, f.pipeline.Process(ctx, id))

	list, err := f.bookings.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Empty(t, list)

	msg, err := f.messages.ByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, msg.Processed, "extraction miss is terminal but the message stays visible as unprocessed")
}

func TestApproveWithEdits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id := f.store(t, "owner-1", "...Sam... at 10:00 AM")
	require.NoError(t, f.pipeline.Process(ctx, id))
	list, err := f.bookings.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	future := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)
	f.cal.On("Push", mock.Anything, "owner-1", mock.Anything).Return("evt-42", nil).Once()

	b, err := f.pipeline.Approve(ctx, list[0].ID, ApproveEdits{
		Service:         "Beard Trim",
		AppointmentTime: &future,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAutoSynced, b.Status)
	assert.Equal(t, "Beard Trim", b.Service)
	assert.WithinDuration(t, future, b.AppointmentTime, time.Second)
}

func TestApproveRejectsPastTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id := f.store(t, "owner-1", "...Sam... at 10:00 AM")
	require.NoError(t, f.pipeline.Process(ctx, id))
	list, err := f.bookings.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	past := time.Now().UTC().Add(-time.Hour)
	_, err = f.pipeline.Approve(ctx, list[0].ID, ApproveEdits{AppointmentTime: &past})
	assert.ErrorIs(t, err, ErrPastAppointment)

	f.cal.AssertNotCalled(t, "Push", mock.Anything, mock.Anything, mock.Anything)
}

func TestRejectIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id := f.store(t, "owner-1", "...Sam... at 10:00 AM")
	require.NoError(t, f.pipeline.Process(ctx, id))
	list, err := f.bookings.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	b, err := f.pipeline.Reject(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, b.Status)

	// rejection does not roll back the client counter
	roster, err := f.clients.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, 1, roster[0].BookingCount)

	// approving a rejected booking is refused
	_, err = f.pipeline.Approve(ctx, b.ID, ApproveEdits{})
	assert.Error(t, err)
}

func TestQuickBookSyncsImmediately(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cal.On("Push", mock.Anything, "owner-1", mock.Anything).Return("evt-q", nil).Once()

	at := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
	b, err := f.pipeline.QuickBook(ctx, "owner-1", "Walk In", "Color", at)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAutoSynced, b.Status)
	assert.Equal(t, "evt-q", b.ExternalEventID)
	assert.NotEmpty(t, b.MessageID, "manual bookings still trace to a (synthetic) raw message")

	msg, err := f.messages.ByID(ctx, b.MessageID)
	require.NoError(t, err)
	assert.Equal(t, "manual", msg.Sender)
	assert.True(t, msg.Processed)
}

func TestOverlapAnnotatesButNeverBlocks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cal.On("Push", mock.Anything, "owner-1", mock.Anything).Return("evt-1", nil)

	at := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
	b1, err := f.pipeline.QuickBook(ctx, "owner-1", "Jane Smith", "Haircut", at)
	require.NoError(t, err)
	assert.Empty(t, b1.ReviewReason)

	// second chair, same slot: legitimate, annotated, still auto-synced
	b2, err := f.pipeline.QuickBook(ctx, "owner-1", "Maria Lopez", "Color", at.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAutoSynced, b2.Status)
	assert.Contains(t, b2.ReviewReason, "overlaps 1 existing booking(s)")
}

func TestDeleteBookingRemovesCalendarEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cal.On("Push", mock.Anything, "owner-1", mock.Anything).Return("evt-d", nil).Once()
	f.cal.On("Remove", mock.Anything, "owner-1", "evt-d").Return(nil).Once()

	at := time.Now().UTC().Add(24 * time.Hour)
	b, err := f.pipeline.QuickBook(ctx, "owner-1", "Jane Smith", "Haircut", at)
	require.NoError(t, err)

	require.NoError(t, f.pipeline.DeleteBooking(ctx, b.ID))
	_, err = f.bookings.ByID(ctx, b.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// deleting again is a no-op
	require.NoError(t, f.pipeline.DeleteBooking(ctx, b.ID))
	f.cal.AssertExpectations(t)
}
