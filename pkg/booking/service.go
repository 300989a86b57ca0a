package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/courtly/courtly/internal/event_bus"
	"github.com/courtly/courtly/pkg/court"
	"github.com/courtly/courtly/pkg/member"
	"github.com/courtly/courtly/pkg/org"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidInterval = errors.New("booking end time must be after start time")

// CreateBookingInput is a one-off reservation request. Identity fields are
// passed through to the member resolver.
type CreateBookingInput struct {
	CourtId     int64
	UserId      *int64
	Phone       string
	Email       string
	Name        string
	StartTime   time.Time
	EndTime     time.Time
	Title       string
	Description string
	Price       *decimal.Decimal
}

type Service interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (Booking, error)
	GetBooking(ctx context.Context, bookingId int64) (Booking, error)
	ListBookings(ctx context.Context, courtId int64, from, to time.Time) ([]Booking, error)
	UpdateBooking(ctx context.Context, b Booking) (Booking, error)
	CancelBooking(ctx context.Context, bookingId int64, reason string) error
	SettleBooking(ctx context.Context, bookingId int64) (Booking, error)
}

type ServiceImpl struct {
	repo      Repository
	courts    court.Repository
	resolver  member.Resolver
	conflicts *ConflictDetector
	eventBus  *event_bus.EventBus
}

func NewService(repo Repository, courts court.Repository, resolver member.Resolver, eventBus *event_bus.EventBus) *ServiceImpl {
	return &ServiceImpl{
		repo:      repo,
		courts:    courts,
		resolver:  resolver,
		conflicts: NewConflictDetector(repo),
		eventBus:  eventBus,
	}
}

func (s *ServiceImpl) CreateBooking(ctx context.Context, input CreateBookingInput) (Booking, error) {
	orgId, err := org.CurrentId(ctx)
	if err != nil {
		return Booking{}, fmt.Errorf("failed to get current organization: %w", err)
	}
	if !input.EndTime.After(input.StartTime) {
		return Booking{}, ErrInvalidInterval
	}

	c, err := s.courts.GetCourt(ctx, orgId, input.CourtId)
	if err != nil {
		return Booking{}, fmt.Errorf("failed to get court: %w", err)
	}

	resolution, err := s.resolver.Resolve(ctx, member.ResolveInput{
		UserId: input.UserId,
		Phone:  input.Phone,
		Email:  input.Email,
		Name:   input.Name,
	})
	if err != nil {
		return Booking{}, fmt.Errorf("failed to resolve member: %w", err)
	}

	slot := Slot{Start: input.StartTime, End: input.EndTime}
	if err := s.conflicts.CheckConflicts(ctx, input.CourtId, []Slot{slot}, nil); err != nil {
		return Booking{}, err
	}

	price := c.BasePrice
	if input.Price != nil {
		price = *input.Price
	}
	title := input.Title
	if title == "" {
		title = resolution.Member.FullName
	}

	b := Booking{
		OrgId:         orgId,
		CourtId:       input.CourtId,
		UserId:        resolution.Member.UserId,
		MemberId:      &resolution.Member.Id,
		StartTime:     input.StartTime,
		EndTime:       input.EndTime,
		Title:         title,
		Description:   input.Description,
		PaymentStatus: StatusPending,
		Price:         price,
		Metadata:      resolution.Annotations,
	}

	stored, err := s.repo.StoreBooking(ctx, b)
	if err != nil {
		return Booking{}, fmt.Errorf("failed to store booking: %w", err)
	}

	if err := s.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.BookingCreatedEvent, event_bus.BookingCreated{
		BookingId: stored.Id,
		CourtId:   stored.CourtId,
		StartTime: stored.StartTime,
		EndTime:   stored.EndTime,
	})); err != nil {
		log.Errorf("failed to publish booking created event: %v", err)
	}

	return stored, nil
}

func (s *ServiceImpl) GetBooking(ctx context.Context, bookingId int64) (Booking, error) {
	orgId, err := org.CurrentId(ctx)
	if err != nil {
		return Booking{}, fmt.Errorf("failed to get current organization: %w", err)
	}
	return s.repo.GetBooking(ctx, orgId, bookingId)
}

func (s *ServiceImpl) ListBookings(ctx context.Context, courtId int64, from, to time.Time) ([]Booking, error) {
	if _, err := org.CurrentId(ctx); err != nil {
		return nil, fmt.Errorf("failed to get current organization: %w", err)
	}
	return s.repo.ListForCourtBetween(ctx, courtId, from, to, nil)
}

func (s *ServiceImpl) UpdateBooking(ctx context.Context, b Booking) (Booking, error) {
	orgId, err := org.CurrentId(ctx)
	if err != nil {
		return Booking{}, fmt.Errorf("failed to get current organization: %w", err)
	}

	stored, err := s.repo.GetBooking(ctx, orgId, b.Id)
	if err != nil {
		return Booking{}, err
	}
	if stored.Canceled() {
		return Booking{}, ErrBookingNotFound
	}
	if !b.EndTime.After(b.StartTime) {
		return Booking{}, ErrInvalidInterval
	}

	// One-off updates never move a booking to another court.
	b.CourtId = stored.CourtId

	// Paid commitments are immutable in price.
	if stored.PaymentStatus == StatusPaid {
		b.Price = stored.Price
		b.PaymentStatus = StatusPaid
	}

	if !b.StartTime.Equal(stored.StartTime) || !b.EndTime.Equal(stored.EndTime) {
		existing, err := s.repo.ListForCourtBetween(ctx, stored.CourtId, b.StartTime, b.EndTime, nil)
		if err != nil {
			return Booking{}, fmt.Errorf("failed to fetch bookings for conflict check: %w", err)
		}
		others := make([]Booking, 0, len(existing))
		for _, e := range existing {
			if e.Id != stored.Id {
				others = append(others, e)
			}
		}
		if conflict := FindConflict(stored.CourtId, []Slot{{Start: b.StartTime, End: b.EndTime}}, others); conflict != nil {
			return Booking{}, conflict
		}
	}

	if err := s.repo.UpdateBooking(ctx, orgId, b); err != nil {
		return Booking{}, err
	}
	return s.repo.GetBooking(ctx, orgId, b.Id)
}

func (s *ServiceImpl) CancelBooking(ctx context.Context, bookingId int64, reason string) error {
	orgId, err := org.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current organization: %w", err)
	}

	stored, err := s.repo.GetBooking(ctx, orgId, bookingId)
	if err != nil {
		return err
	}

	if err := s.repo.MarkCanceled(ctx, orgId, bookingId, reason); err != nil {
		return err
	}

	if err := s.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.BookingCanceledEvent, event_bus.BookingCanceled{
		BookingId: stored.Id,
		CourtId:   stored.CourtId,
		Reason:    reason,
	})); err != nil {
		log.Errorf("failed to publish booking canceled event: %v", err)
	}
	return nil
}

func (s *ServiceImpl) SettleBooking(ctx context.Context, bookingId int64) (Booking, error) {
	orgId, err := org.CurrentId(ctx)
	if err != nil {
		return Booking{}, fmt.Errorf("failed to get current organization: %w", err)
	}

	if _, err := s.repo.GetBooking(ctx, orgId, bookingId); err != nil {
		return Booking{}, err
	}
	if err := s.repo.MarkPaid(ctx, orgId, []int64{bookingId}); err != nil {
		return Booking{}, err
	}
	return s.repo.GetBooking(ctx, orgId, bookingId)
}
