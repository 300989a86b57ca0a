package booking

import (
	"context"
	"testing"
	"time"

	"github.com/courtly/courtly/internal/event_bus"
	"github.com/courtly/courtly/internal/test_utils"
	"github.com/courtly/courtly/internal/utils"
	"github.com/courtly/courtly/pkg/court"
	"github.com/courtly/courtly/pkg/member"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBookingServiceTest(t *testing.T) (*ServiceImpl, *RepositoryStub, *member.RepositoryStub, *event_bus.EventBus) {
	t.Helper()

	repo := NewRepositoryStub()
	memberRepo := member.NewRepositoryStub()
	courtRepo := court.NewRepositoryStub()
	courtRepo.AddCourt(court.Court{
		Id: 1, OrgId: test_utils.TestOrgId, Name: "Court 1", Surface: "hard",
		BasePrice: decimal.NewFromInt(30),
	})

	clock := &utils.MockClock{FixedNow: time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)}
	resolver := member.NewResolver(memberRepo, clock)
	bus := event_bus.NewEventBus()
	service := NewService(repo, courtRepo, resolver, bus)
	return service, repo, memberRepo, bus
}

func createInput() CreateBookingInput {
	return CreateBookingInput{
		CourtId:   1,
		Phone:     "+4712345678",
		Name:      "Anna Berg",
		StartTime: time.Date(2024, time.June, 3, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, time.June, 3, 11, 30, 0, 0, time.UTC),
	}
}

func TestBookingService_CreateBooking(t *testing.T) {
	service, _, memberRepo, _ := setupBookingServiceTest(t)
	ctx := test_utils.OrgContext()

	created, err := service.CreateBooking(ctx, createInput())
	require.NoError(t, err)

	assert.NotZero(t, created.Id)
	assert.Equal(t, StatusPending, created.PaymentStatus)
	assert.Equal(t, "30", created.Price.String(), "court base price applies without an override")
	assert.Equal(t, "Anna Berg", created.Title, "title defaults to the member name")

	// The resolver created a directory entry for the walk-in.
	members, err := memberRepo.ListMembers(ctx, test_utils.TestOrgId)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.NotNil(t, created.MemberId)
	assert.Equal(t, members[0].Id, *created.MemberId)
}

func TestBookingService_CreateBooking_PriceOverride(t *testing.T) {
	service, _, _, _ := setupBookingServiceTest(t)
	override := decimal.NewFromInt(45)
	input := createInput()
	input.Price = &override

	created, err := service.CreateBooking(test_utils.OrgContext(), input)
	require.NoError(t, err)
	assert.Equal(t, "45", created.Price.String())
}

func TestBookingService_CreateBooking_AnnotationsStored(t *testing.T) {
	service, _, memberRepo, _ := setupBookingServiceTest(t)
	ctx := test_utils.OrgContext()

	userId := int64(42)
	_, err := memberRepo.CreateMember(ctx, member.Member{
		OrgId: test_utils.TestOrgId, UserId: &userId, FullName: "App User",
		Phone: "+4700000001", Status: member.StatusActive,
	})
	require.NoError(t, err)

	input := createInput()
	input.UserId = &userId
	input.Phone = "+4799999999"

	created, err := service.CreateBooking(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "+4799999999", created.Metadata[member.AnnotationAltContact])
	assert.Equal(t, "true", created.Metadata[member.AnnotationContactMismatch])
}

func TestBookingService_CreateBooking_InvalidInterval(t *testing.T) {
	service, _, _, _ := setupBookingServiceTest(t)
	input := createInput()
	input.EndTime = input.StartTime

	_, err := service.CreateBooking(test_utils.OrgContext(), input)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestBookingService_CreateBooking_Conflict(t *testing.T) {
	service, _, _, _ := setupBookingServiceTest(t)
	ctx := test_utils.OrgContext()

	_, err := service.CreateBooking(ctx, createInput())
	require.NoError(t, err)

	// Overlapping request on the same court.
	input := createInput()
	input.StartTime = time.Date(2024, time.June, 3, 11, 0, 0, 0, time.UTC)
	input.EndTime = time.Date(2024, time.June, 3, 12, 0, 0, 0, time.UTC)

	_, err = service.CreateBooking(ctx, input)
	var conflict *ConflictError
	assert.ErrorAs(t, err, &conflict)

	// Back-to-back is fine.
	input.StartTime = time.Date(2024, time.June, 3, 11, 30, 0, 0, time.UTC)
	input.EndTime = time.Date(2024, time.June, 3, 13, 0, 0, 0, time.UTC)
	_, err = service.CreateBooking(ctx, input)
	assert.NoError(t, err)
}

func TestBookingService_CreateBooking_NoOrg(t *testing.T) {
	service, _, _, _ := setupBookingServiceTest(t)

	_, err := service.CreateBooking(context.Background(), createInput())
	assert.Error(t, err)
}

func TestBookingService_UpdateBooking_Reschedule(t *testing.T) {
	service, _, _, _ := setupBookingServiceTest(t)
	ctx := test_utils.OrgContext()

	created, err := service.CreateBooking(ctx, createInput())
	require.NoError(t, err)

	created.StartTime = time.Date(2024, time.June, 4, 10, 0, 0, 0, time.UTC)
	created.EndTime = time.Date(2024, time.June, 4, 11, 30, 0, 0, time.UTC)

	updated, err := service.UpdateBooking(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.StartTime.Day())
}

func TestBookingService_UpdateBooking_PaidPriceImmutable(t *testing.T) {
	service, _, _, _ := setupBookingServiceTest(t)
	ctx := test_utils.OrgContext()

	created, err := service.CreateBooking(ctx, createInput())
	require.NoError(t, err)
	settled, err := service.SettleBooking(ctx, created.Id)
	require.NoError(t, err)

	settled.Price = decimal.NewFromInt(5)
	settled.PaymentStatus = StatusPending

	updated, err := service.UpdateBooking(ctx, settled)
	require.NoError(t, err)
	assert.Equal(t, "30", updated.Price.String())
	assert.Equal(t, StatusPaid, updated.PaymentStatus)
}

func TestBookingService_UpdateBooking_SelfOverlapAllowed(t *testing.T) {
	service, _, _, _ := setupBookingServiceTest(t)
	ctx := test_utils.OrgContext()

	created, err := service.CreateBooking(ctx, createInput())
	require.NoError(t, err)

	// Shift by 30 minutes; the new interval overlaps only the booking itself.
	created.StartTime = created.StartTime.Add(30 * time.Minute)
	created.EndTime = created.EndTime.Add(30 * time.Minute)

	_, err = service.UpdateBooking(ctx, created)
	assert.NoError(t, err)
}

func TestBookingService_UpdateBooking_CanceledRejected(t *testing.T) {
	service, _, _, _ := setupBookingServiceTest(t)
	ctx := test_utils.OrgContext()

	created, err := service.CreateBooking(ctx, createInput())
	require.NoError(t, err)
	require.NoError(t, service.CancelBooking(ctx, created.Id, ""))

	_, err = service.UpdateBooking(ctx, created)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestBookingService_CancelBooking(t *testing.T) {
	service, repo, _, bus := setupBookingServiceTest(t)
	ctx := test_utils.OrgContext()

	var published []event_bus.Event
	bus.Subscribe(event_bus.BookingCanceledEvent, func(e event_bus.Event) error {
		published = append(published, e)
		return nil
	})

	created, err := service.CreateBooking(ctx, createInput())
	require.NoError(t, err)

	require.NoError(t, service.CancelBooking(ctx, created.Id, "no show"))

	stored, err := repo.GetBooking(ctx, test_utils.TestOrgId, created.Id)
	require.NoError(t, err)
	assert.True(t, stored.Canceled())
	assert.Contains(t, stored.Description, "no show")

	require.Len(t, published, 1)
	payload, ok := published[0].Data.(event_bus.BookingCanceled)
	require.True(t, ok)
	assert.Equal(t, created.Id, payload.BookingId)
}

func TestBookingService_SettleBooking(t *testing.T) {
	service, _, _, _ := setupBookingServiceTest(t)
	ctx := test_utils.OrgContext()

	created, err := service.CreateBooking(ctx, createInput())
	require.NoError(t, err)

	settled, err := service.SettleBooking(ctx, created.Id)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, settled.PaymentStatus)
}
