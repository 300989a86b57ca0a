package booking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RepositoryStub is an in-memory Repository for service tests. The error
// fields inject failures at specific steps to exercise partial-failure and
// rollback paths.
type RepositoryStub struct {
	mu     sync.RWMutex
	items  map[int64]Booking
	nextId int64

	StoreErr        error
	MarkCanceledErr error
	UpdateErr       error
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		items:  make(map[int64]Booking),
		nextId: 1,
	}
}

func (r *RepositoryStub) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	r.mu.Lock()
	snapshot := make(map[int64]Booking, len(r.items))
	for k, v := range r.items {
		snapshot[k] = v
	}
	snapshotNextId := r.nextId
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.items = snapshot
		r.nextId = snapshotNextId
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *RepositoryStub) StoreBooking(ctx context.Context, b Booking) (Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.StoreErr != nil {
		return Booking{}, r.StoreErr
	}
	if b.Uid == uuid.Nil {
		b.Uid = uuid.New()
	}
	b.Id = r.nextId
	r.nextId++
	r.items[b.Id] = b
	return b, nil
}

func (r *RepositoryStub) StoreBookings(ctx context.Context, bookings []Booking) error {
	for _, b := range bookings {
		if _, err := r.StoreBooking(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

func (r *RepositoryStub) GetBooking(ctx context.Context, orgId int64, bookingId int64) (Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[bookingId]
	if !ok || b.OrgId != orgId {
		return Booking{}, ErrBookingNotFound
	}
	return b, nil
}

func (r *RepositoryStub) ListForCourtBetween(ctx context.Context, courtId int64, from, to time.Time, excludePlanId *int64) ([]Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Booking
	for _, b := range r.items {
		if b.CourtId != courtId || b.Canceled() {
			continue
		}
		if !b.StartTime.Before(to) || !b.EndTime.After(from) {
			continue
		}
		if excludePlanId != nil && b.RecurringPlanId != nil && *b.RecurringPlanId == *excludePlanId {
			continue
		}
		result = append(result, b)
	}
	sortByStartTime(result)
	return result, nil
}

func (r *RepositoryStub) ListForPlan(ctx context.Context, planId int64, from *time.Time) ([]Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Booking
	for _, b := range r.items {
		if b.RecurringPlanId == nil || *b.RecurringPlanId != planId || b.Canceled() {
			continue
		}
		if from != nil && b.StartTime.Before(*from) {
			continue
		}
		result = append(result, b)
	}
	sortByStartTime(result)
	return result, nil
}

func (r *RepositoryStub) UpdateBooking(ctx context.Context, orgId int64, b Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UpdateErr != nil {
		return r.UpdateErr
	}
	existing, ok := r.items[b.Id]
	if !ok || existing.OrgId != orgId {
		return ErrBookingNotFound
	}
	b.OrgId = existing.OrgId
	b.RecurringPlanId = existing.RecurringPlanId
	r.items[b.Id] = b
	return nil
}

func (r *RepositoryStub) UpdatePriceForPlanFrom(ctx context.Context, planId int64, from time.Time, price decimal.Decimal) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var affected int64
	for id, b := range r.items {
		if b.RecurringPlanId == nil || *b.RecurringPlanId != planId {
			continue
		}
		if b.PaymentStatus != StatusPending || b.StartTime.Before(from) {
			continue
		}
		b.Price = price
		r.items[id] = b
		affected++
	}
	return affected, nil
}

func (r *RepositoryStub) MarkPaid(ctx context.Context, orgId int64, bookingIds []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range bookingIds {
		b, ok := r.items[id]
		if !ok || b.OrgId != orgId || b.PaymentStatus != StatusPending {
			continue
		}
		b.PaymentStatus = StatusPaid
		r.items[id] = b
	}
	return nil
}

func (r *RepositoryStub) MarkCanceled(ctx context.Context, orgId int64, bookingId int64, annotation string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.MarkCanceledErr != nil {
		return r.MarkCanceledErr
	}
	b, ok := r.items[bookingId]
	if !ok || b.OrgId != orgId {
		return ErrBookingNotFound
	}
	b.PaymentStatus = StatusCanceled
	if annotation != "" {
		if b.Description == "" {
			b.Description = annotation
		} else {
			b.Description = b.Description + " " + annotation
		}
	}
	r.items[bookingId] = b
	return nil
}

func (r *RepositoryStub) CancelPendingForPlanFrom(ctx context.Context, planId int64, from time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, b := range r.items {
		if b.RecurringPlanId == nil || *b.RecurringPlanId != planId {
			continue
		}
		if b.PaymentStatus != StatusPending || b.StartTime.Before(from) {
			continue
		}
		b.PaymentStatus = StatusCanceled
		r.items[id] = b
	}
	return nil
}

func (r *RepositoryStub) DeleteBooking(ctx context.Context, orgId int64, bookingId int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.items[bookingId]
	if !ok || b.OrgId != orgId {
		return ErrBookingNotFound
	}
	delete(r.items, bookingId)
	return nil
}

// AllBookings returns every stored booking, canceled included. Test helper.
func (r *RepositoryStub) AllBookings() []Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Booking, 0, len(r.items))
	for _, b := range r.items {
		result = append(result, b)
	}
	sortByStartTime(result)
	return result
}

func sortByStartTime(bookings []Booking) {
	for i := 0; i < len(bookings); i++ {
		for j := i + 1; j < len(bookings); j++ {
			if bookings[i].StartTime.After(bookings[j].StartTime) {
				bookings[i], bookings[j] = bookings[j], bookings[i]
			}
		}
	}
}
