package plan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/courtly/courtly/internal/event_bus"
	"github.com/courtly/courtly/internal/utils"
	"github.com/courtly/courtly/pkg/booking"
	"github.com/courtly/courtly/pkg/court"
	"github.com/courtly/courtly/pkg/member"
	"github.com/courtly/courtly/pkg/org"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrNoOccurrences is returned when a plan's date range contains no
	// matching weekday at all.
	ErrNoOccurrences = errors.New("no valid occurrences in range")
	// ErrMissingIdentity is returned when a plan names neither an app user
	// nor a member as payer.
	ErrMissingIdentity = errors.New("plan requires an app user or a member")
	// ErrNoExtensionDate is returned when no matching weekday exists within
	// the bounded forward scan past the plan's end date.
	ErrNoExtensionDate = errors.New("no matching weekday within extension window")
	// ErrBookingNotInPlan is returned when an incident extension names a
	// booking that does not belong to the plan.
	ErrBookingNotInPlan = errors.New("booking does not belong to plan")
	// ErrSettleScope is returned when a settlement names neither a month nor
	// explicit booking ids.
	ErrSettleScope = errors.New("settlement requires a month or booking ids")
)

type CreatePlanInput struct {
	CourtId       int64
	UserId        *int64
	MemberId      *int64
	DayOfWeek     time.Weekday
	StartTime     string // "HH:MM"
	StartDate     time.Time
	EndDate       time.Time // exclusive
	PriceOverride *decimal.Decimal
	PayInAdvance  bool
}

// CreateResult reports a created plan. Warning is set when the plan header
// committed but the booking batch failed; the plan is kept and the caller is
// expected to surface the warning instead of treating the operation as failed.
type CreateResult struct {
	Plan     RecurringPlan
	Sessions int
	Warning  string
}

type UpdatePlanInput struct {
	PlanId       int64
	CourtId      int64
	DayOfWeek    time.Weekday
	StartTime    string // "HH:MM"
	Price        decimal.Decimal
	PayInAdvance bool
}

type UpdateResult struct {
	Plan        RecurringPlan
	Structural  bool
	Relocated   int
	Regenerated int
	Repriced    int64
}

// SettleRequest scopes a settlement to either explicit booking ids or a
// calendar month (any instant within the month selects it).
type SettleRequest struct {
	BookingIds []int64
	Month      *time.Time
}

type SettleResult struct {
	Count       int
	TotalAmount decimal.Decimal
}

type Service interface {
	Create(ctx context.Context, input CreatePlanInput) (CreateResult, error)
	Update(ctx context.Context, input UpdatePlanInput) (UpdateResult, error)
	Extend(ctx context.Context, planId int64, bookingId int64, reason string) (booking.Booking, error)
	Settle(ctx context.Context, planId int64, req SettleRequest) (SettleResult, error)
	GetPlan(ctx context.Context, planId int64) (RecurringPlan, error)
	ListPlans(ctx context.Context) ([]PlanOverview, error)
	Deactivate(ctx context.Context, planId int64) error
}

type ServiceImpl struct {
	repo              Repository
	bookings          booking.Repository
	courts            court.Repository
	members           member.Repository
	resolver          member.Resolver
	conflicts         *booking.ConflictDetector
	eventBus          *event_bus.EventBus
	clock             utils.Clock
	sessionDuration   time.Duration
	extensionScanDays int
}

func NewService(
	repo Repository,
	bookings booking.Repository,
	courts court.Repository,
	members member.Repository,
	resolver member.Resolver,
	eventBus *event_bus.EventBus,
	clock utils.Clock,
	sessionDuration time.Duration,
	extensionScanDays int,
) *ServiceImpl {
	if sessionDuration <= 0 {
		sessionDuration = DefaultSessionDuration
	}
	if extensionScanDays <= 0 {
		extensionScanDays = 14
	}
	return &ServiceImpl{
		repo:              repo,
		bookings:          bookings,
		courts:            courts,
		members:           members,
		resolver:          resolver,
		conflicts:         booking.NewConflictDetector(bookings),
		eventBus:          eventBus,
		clock:             clock,
		sessionDuration:   sessionDuration,
		extensionScanDays: extensionScanDays,
	}
}

// Create materializes a recurring contract: it generates all occurrences,
// validates them against the court's timeline, persists the plan header and
// one booking per occurrence, and finally rewrites the plan's end date to the
// calendar date of the last generated occurrence.
func (s *ServiceImpl) Create(ctx context.Context, input CreatePlanInput) (CreateResult, error) {
	orgId, err := org.CurrentId(ctx)
	if err != nil {
		return CreateResult{}, fmt.Errorf("failed to get current organization: %w", err)
	}

	slots, err := GenerateSlots(input.StartDate, input.EndDate, input.DayOfWeek, input.StartTime, s.sessionDuration)
	if err != nil {
		return CreateResult{}, err
	}
	if len(slots) == 0 {
		return CreateResult{}, ErrNoOccurrences
	}

	if err := s.conflicts.CheckConflicts(ctx, input.CourtId, slots, nil); err != nil {
		return CreateResult{}, err
	}

	payer, err := s.resolvePayer(ctx, orgId, input.UserId, input.MemberId)
	if err != nil {
		return CreateResult{}, err
	}

	c, err := s.courts.GetCourt(ctx, orgId, input.CourtId)
	if err != nil {
		return CreateResult{}, fmt.Errorf("failed to get court: %w", err)
	}
	unitPrice := c.BasePrice
	if input.PriceOverride != nil {
		unitPrice = *input.PriceOverride
	}

	p := RecurringPlan{
		OrgId:          orgId,
		UserId:         payer.UserId,
		MemberId:       &payer.Id,
		CourtId:        input.CourtId,
		DayOfWeek:      input.DayOfWeek,
		StartTime:      input.StartTime,
		StartDate:      utils.Midnight(input.StartDate),
		EndDate:        utils.Midnight(input.EndDate),
		TotalPrice:     unitPrice.Mul(decimal.NewFromInt(int64(len(slots)))),
		Active:         true,
		PaymentAdvance: input.PayInAdvance,
	}

	planId, err := s.repo.CreatePlan(ctx, p)
	if err != nil {
		return CreateResult{}, fmt.Errorf("failed to create plan: %w", err)
	}
	p.Id = planId

	status := booking.StatusPending
	if input.PayInAdvance {
		status = booking.StatusPaid
	}
	batch := make([]booking.Booking, 0, len(slots))
	for _, slot := range slots {
		batch = append(batch, booking.Booking{
			OrgId:           orgId,
			CourtId:         input.CourtId,
			UserId:          payer.UserId,
			MemberId:        &payer.Id,
			StartTime:       slot.Start,
			EndTime:         slot.End,
			Title:           payer.FullName,
			PaymentStatus:   status,
			Price:           unitPrice,
			RecurringPlanId: &planId,
		})
	}

	// The header is already committed; a failing batch keeps the plan and
	// surfaces a warning instead of rolling back.
	if err := s.bookings.StoreBookings(ctx, batch); err != nil {
		warning := fmt.Sprintf("plan %d created but booking generation failed: %v", planId, err)
		log.Warn(warning)
		return CreateResult{Plan: p, Sessions: 0, Warning: warning}, nil
	}

	lastDate := utils.Midnight(slots[len(slots)-1].Start)
	if err := s.repo.UpdateEndDate(ctx, orgId, planId, lastDate); err != nil {
		log.Errorf("failed to adjust plan %d end date: %v", planId, err)
	} else {
		p.EndDate = lastDate
	}

	if err := s.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.PlanCreatedEvent, event_bus.PlanCreated{
		PlanId:    planId,
		CourtId:   input.CourtId,
		Sessions:  len(slots),
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
	})); err != nil {
		log.Errorf("failed to publish plan created event: %v", err)
	}

	return CreateResult{Plan: p, Sessions: len(slots)}, nil
}

// Update reschedules or re-prices a plan. A change to the court, weekday,
// time of day, or payment-advance flag is structural: future unpaid bookings
// are canceled and regenerated under the new parameters, while paid bookings
// are relocated to the nearest date matching the new weekday with their price
// and status untouched. A price change alone re-prices future pending
// bookings in place.
func (s *ServiceImpl) Update(ctx context.Context, input UpdatePlanInput) (UpdateResult, error) {
	orgId, err := org.CurrentId(ctx)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to get current organization: %w", err)
	}

	p, err := s.repo.GetPlan(ctx, orgId, input.PlanId)
	if err != nil {
		return UpdateResult{}, err
	}

	structural := input.CourtId != p.CourtId ||
		input.DayOfWeek != p.DayOfWeek ||
		input.StartTime != p.StartTime ||
		input.PayInAdvance != p.PaymentAdvance

	if !structural {
		return s.updatePrice(ctx, orgId, p, input.Price)
	}
	return s.updateStructural(ctx, orgId, p, input)
}

func (s *ServiceImpl) updatePrice(ctx context.Context, orgId int64, p RecurringPlan, price decimal.Decimal) (UpdateResult, error) {
	repriced, err := s.bookings.UpdatePriceForPlanFrom(ctx, p.Id, s.clock.Now(), price)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to re-price plan bookings: %w", err)
	}

	if err := s.refreshTotalPrice(ctx, orgId, &p); err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{Plan: p, Structural: false, Repriced: repriced}, nil
}

func (s *ServiceImpl) updateStructural(ctx context.Context, orgId int64, p RecurringPlan, input UpdatePlanInput) (UpdateResult, error) {
	today := utils.Midnight(s.clock.Now())
	from := p.StartDate
	if today.After(from) {
		from = today
	}

	// The stored end date names the last occurrence, so the regeneration
	// boundary is the day after it.
	boundary := p.EndDate.AddDate(0, 0, 1)
	newSlots, err := GenerateSlots(from, boundary, input.DayOfWeek, input.StartTime, s.sessionDuration)
	if err != nil {
		return UpdateResult{}, err
	}

	future, err := s.bookings.ListForPlan(ctx, p.Id, &from)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to list plan bookings: %w", err)
	}
	var paid, unpaid []booking.Booking
	for _, b := range future {
		if b.PaymentStatus == booking.StatusPaid {
			paid = append(paid, b)
		} else {
			unpaid = append(unpaid, b)
		}
	}

	hour, minute, err := ParseStartTime(input.StartTime)
	if err != nil {
		return UpdateResult{}, err
	}

	// Paid commitments are never deleted or re-priced; they shift to the
	// nearest date matching the new weekday, at the new time of day.
	relocated := make([]booking.Booking, 0, len(paid))
	coveredDates := make(map[time.Time]bool, len(paid))
	relocatedSlots := make([]booking.Slot, 0, len(paid))
	for _, b := range paid {
		delta := weekdayDelta(b.StartTime.Weekday(), input.DayOfWeek)
		date := utils.Midnight(b.StartTime).AddDate(0, 0, delta)
		start := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location())
		duration := b.EndTime.Sub(b.StartTime)

		moved := b
		moved.CourtId = input.CourtId
		moved.StartTime = start
		moved.EndTime = start.Add(duration)
		relocated = append(relocated, moved)
		coveredDates[date] = true
		relocatedSlots = append(relocatedSlots, booking.Slot{Start: moved.StartTime, End: moved.EndTime})
	}

	regenSlots := make([]booking.Slot, 0, len(newSlots))
	for _, slot := range newSlots {
		if !coveredDates[utils.Midnight(slot.Start)] {
			regenSlots = append(regenSlots, slot)
		}
	}

	conflictSlots := append(append([]booking.Slot{}, regenSlots...), relocatedSlots...)
	if err := s.conflicts.CheckConflicts(ctx, input.CourtId, conflictSlots, &p.Id); err != nil {
		return UpdateResult{}, err
	}

	displayTitle := s.planTitle(ctx, orgId, p, future)

	status := booking.StatusPending
	if input.PayInAdvance {
		status = booking.StatusPaid
	}

	err = s.bookings.WithTransaction(ctx, func(repo booking.Repository) error {
		if err := repo.CancelPendingForPlanFrom(ctx, p.Id, from); err != nil {
			return fmt.Errorf("failed to clear unpaid bookings: %w", err)
		}
		for _, moved := range relocated {
			if err := repo.UpdateBooking(ctx, orgId, moved); err != nil {
				return fmt.Errorf("failed to relocate paid booking %d: %w", moved.Id, err)
			}
		}
		for _, slot := range regenSlots {
			_, err := repo.StoreBooking(ctx, booking.Booking{
				OrgId:           orgId,
				CourtId:         input.CourtId,
				UserId:          p.UserId,
				MemberId:        p.MemberId,
				StartTime:       slot.Start,
				EndTime:         slot.End,
				Title:           displayTitle,
				PaymentStatus:   status,
				Price:           input.Price,
				RecurringPlanId: &p.Id,
			})
			if err != nil {
				return fmt.Errorf("failed to regenerate booking: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return UpdateResult{}, err
	}

	p.CourtId = input.CourtId
	p.DayOfWeek = input.DayOfWeek
	p.StartTime = input.StartTime
	p.PaymentAdvance = input.PayInAdvance

	// The stored end date names the plan's last occurrence. Relocation can
	// move the final paid session to a different calendar date, so the header
	// follows the latest surviving occurrence.
	var lastDate time.Time
	for _, moved := range relocated {
		if d := utils.Midnight(moved.StartTime); d.After(lastDate) {
			lastDate = d
		}
	}
	for _, slot := range regenSlots {
		if d := utils.Midnight(slot.Start); d.After(lastDate) {
			lastDate = d
		}
	}
	if !lastDate.IsZero() {
		p.EndDate = lastDate
	}

	if err := s.refreshTotalPrice(ctx, orgId, &p); err != nil {
		return UpdateResult{}, err
	}

	return UpdateResult{
		Plan:        p,
		Structural:  true,
		Relocated:   len(relocated),
		Regenerated: len(regenSlots),
	}, nil
}

// refreshTotalPrice recomputes the plan header total from the plan's
// surviving bookings and persists the header.
func (s *ServiceImpl) refreshTotalPrice(ctx context.Context, orgId int64, p *RecurringPlan) error {
	all, err := s.bookings.ListForPlan(ctx, p.Id, nil)
	if err != nil {
		return fmt.Errorf("failed to list plan bookings: %w", err)
	}
	total := decimal.Zero
	for _, b := range all {
		total = total.Add(b.Price)
	}
	p.TotalPrice = total
	if err := s.repo.UpdatePlan(ctx, orgId, *p); err != nil {
		return fmt.Errorf("failed to update plan header: %w", err)
	}
	return nil
}

// Extend replaces one occurrence lost to an incident (rain, maintenance)
// with a new occurrence just past the plan's end date. The replacement is
// inserted before the original is canceled; if the cancel fails, the
// replacement is deleted again to restore the prior state.
func (s *ServiceImpl) Extend(ctx context.Context, planId int64, bookingId int64, reason string) (booking.Booking, error) {
	orgId, err := org.CurrentId(ctx)
	if err != nil {
		return booking.Booking{}, fmt.Errorf("failed to get current organization: %w", err)
	}

	p, err := s.repo.GetPlan(ctx, orgId, planId)
	if err != nil {
		return booking.Booking{}, err
	}
	original, err := s.bookings.GetBooking(ctx, orgId, bookingId)
	if err != nil {
		return booking.Booking{}, err
	}
	if original.RecurringPlanId == nil || *original.RecurringPlanId != p.Id {
		return booking.Booking{}, ErrBookingNotInPlan
	}

	newDate, ok := NextWeekday(p.EndDate, p.DayOfWeek, s.extensionScanDays)
	if !ok {
		return booking.Booking{}, ErrNoExtensionDate
	}
	hour, minute, err := ParseStartTime(p.StartTime)
	if err != nil {
		return booking.Booking{}, err
	}
	start := time.Date(newDate.Year(), newDate.Month(), newDate.Day(), hour, minute, 0, 0, newDate.Location())
	slot := booking.Slot{Start: start, End: start.Add(original.EndTime.Sub(original.StartTime))}

	if err := s.conflicts.CheckConflicts(ctx, p.CourtId, []booking.Slot{slot}, nil); err != nil {
		return booking.Booking{}, err
	}

	metadata := make(map[string]string, len(original.Metadata)+1)
	for k, v := range original.Metadata {
		metadata[k] = v
	}
	if reason != "" {
		metadata[booking.MetadataIncidentReason] = reason
	}

	replacement := booking.Booking{
		OrgId:           orgId,
		CourtId:         p.CourtId,
		UserId:          original.UserId,
		MemberId:        original.MemberId,
		StartTime:       slot.Start,
		EndTime:         slot.End,
		Title:           original.Title,
		Description:     original.Description,
		PaymentStatus:   original.PaymentStatus,
		Price:           original.Price,
		RecurringPlanId: &p.Id,
		Metadata:        metadata,
	}

	inserted, err := s.bookings.StoreBooking(ctx, replacement)
	if err != nil {
		return booking.Booking{}, fmt.Errorf("failed to store replacement booking: %w", err)
	}

	if err := s.bookings.MarkCanceled(ctx, orgId, original.Id, reason); err != nil {
		// Compensate: the replacement must not survive a cancel failure.
		if delErr := s.bookings.DeleteBooking(ctx, orgId, inserted.Id); delErr != nil {
			log.Errorf("failed to roll back replacement booking %d: %v", inserted.Id, delErr)
		}
		return booking.Booking{}, fmt.Errorf("failed to cancel original booking: %w", err)
	}

	// The booking swap already reflects the visible outcome; a failed end
	// date advance is logged and corrected by the next successful write.
	if err := s.repo.UpdateEndDate(ctx, orgId, p.Id, newDate); err != nil {
		log.Errorf("failed to advance plan %d end date: %v", p.Id, err)
	}

	if err := s.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.PlanExtendedEvent, event_bus.PlanExtended{
		PlanId:        p.Id,
		OldBookingId:  original.Id,
		NewBookingId:  inserted.Id,
		NewOccurrence: slot.Start,
	})); err != nil {
		log.Errorf("failed to publish plan extended event: %v", err)
	}

	return inserted, nil
}

// Settle marks the plan's matching pending bookings paid and returns how many
// were settled and for what amount.
func (s *ServiceImpl) Settle(ctx context.Context, planId int64, req SettleRequest) (SettleResult, error) {
	orgId, err := org.CurrentId(ctx)
	if err != nil {
		return SettleResult{}, fmt.Errorf("failed to get current organization: %w", err)
	}
	if len(req.BookingIds) == 0 && req.Month == nil {
		return SettleResult{}, ErrSettleScope
	}

	if _, err := s.repo.GetPlan(ctx, orgId, planId); err != nil {
		return SettleResult{}, err
	}

	all, err := s.bookings.ListForPlan(ctx, planId, nil)
	if err != nil {
		return SettleResult{}, fmt.Errorf("failed to list plan bookings: %w", err)
	}

	var idSet map[int64]bool
	if len(req.BookingIds) > 0 {
		idSet = make(map[int64]bool, len(req.BookingIds))
		for _, id := range req.BookingIds {
			idSet[id] = true
		}
	}
	var monthStart, monthEnd time.Time
	if req.Month != nil {
		monthStart = time.Date(req.Month.Year(), req.Month.Month(), 1, 0, 0, 0, 0, req.Month.Location())
		monthEnd = monthStart.AddDate(0, 1, 0)
	}

	toSettle := make([]int64, 0, len(all))
	total := decimal.Zero
	for _, b := range all {
		if b.PaymentStatus != booking.StatusPending {
			continue
		}
		if idSet != nil {
			if !idSet[b.Id] {
				continue
			}
		} else if b.StartTime.Before(monthStart) || !b.StartTime.Before(monthEnd) {
			continue
		}
		toSettle = append(toSettle, b.Id)
		total = total.Add(b.Price)
	}

	if len(toSettle) > 0 {
		if err := s.bookings.MarkPaid(ctx, orgId, toSettle); err != nil {
			return SettleResult{}, fmt.Errorf("failed to mark bookings paid: %w", err)
		}
	}
	return SettleResult{Count: len(toSettle), TotalAmount: total}, nil
}

func (s *ServiceImpl) GetPlan(ctx context.Context, planId int64) (RecurringPlan, error) {
	orgId, err := org.CurrentId(ctx)
	if err != nil {
		return RecurringPlan{}, fmt.Errorf("failed to get current organization: %w", err)
	}
	return s.repo.GetPlan(ctx, orgId, planId)
}

// ListPlans deactivates expired plans, then returns every plan annotated with
// remaining sessions, total sessions, and pending debt.
func (s *ServiceImpl) ListPlans(ctx context.Context) ([]PlanOverview, error) {
	orgId, err := org.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current organization: %w", err)
	}

	now := s.clock.Now()
	if _, err := s.repo.DeactivateExpired(ctx, orgId, utils.Midnight(now)); err != nil {
		log.Warnf("failed to deactivate expired plans: %v", err)
	}

	plans, err := s.repo.ListPlans(ctx, orgId)
	if err != nil {
		return nil, err
	}

	overviews := make([]PlanOverview, 0, len(plans))
	for _, p := range plans {
		sessions, err := s.bookings.ListForPlan(ctx, p.Id, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list bookings for plan %d: %w", p.Id, err)
		}
		overview := PlanOverview{RecurringPlan: p, PendingDebt: decimal.Zero}
		for _, b := range sessions {
			overview.TotalSessions++
			if !b.StartTime.Before(now) {
				overview.RemainingSessions++
			}
			if b.PaymentStatus == booking.StatusPending {
				overview.PendingDebt = overview.PendingDebt.Add(b.Price)
			}
		}
		overviews = append(overviews, overview)
	}
	return overviews, nil
}

// Deactivate terminates a contract: future unpaid occurrences are canceled
// and the plan stops showing as active. Paid occurrences stay untouched.
func (s *ServiceImpl) Deactivate(ctx context.Context, planId int64) error {
	orgId, err := org.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current organization: %w", err)
	}
	if _, err := s.repo.GetPlan(ctx, orgId, planId); err != nil {
		return err
	}

	if err := s.bookings.CancelPendingForPlanFrom(ctx, planId, s.clock.Now()); err != nil {
		return fmt.Errorf("failed to cancel remaining bookings: %w", err)
	}
	return s.repo.SetActive(ctx, orgId, planId, false)
}

func (s *ServiceImpl) resolvePayer(ctx context.Context, orgId int64, userId *int64, memberId *int64) (member.Member, error) {
	if memberId != nil {
		m, err := s.members.GetMember(ctx, orgId, *memberId)
		if err != nil {
			return member.Member{}, fmt.Errorf("failed to get member: %w", err)
		}
		return m, nil
	}
	if userId == nil {
		return member.Member{}, ErrMissingIdentity
	}
	resolution, err := s.resolver.Resolve(ctx, member.ResolveInput{UserId: userId})
	if err != nil {
		return member.Member{}, fmt.Errorf("failed to resolve member: %w", err)
	}
	return resolution.Member, nil
}

func (s *ServiceImpl) planTitle(ctx context.Context, orgId int64, p RecurringPlan, existing []booking.Booking) string {
	if len(existing) > 0 {
		return existing[0].Title
	}
	if p.MemberId != nil {
		if m, err := s.members.GetMember(ctx, orgId, *p.MemberId); err == nil {
			return m.FullName
		}
	}
	return ""
}

// weekdayDelta returns the signed day shift (-3..3) that moves a date from
// weekday old to the nearest date with weekday new.
func weekdayDelta(old, new time.Weekday) int {
	d := (int(new) - int(old) + 7) % 7
	if d > 3 {
		d -= 7
	}
	return d
}
