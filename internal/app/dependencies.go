package app

import (
	"database/sql"
	"time"

	"github.com/courtly/courtly/internal/config"
	"github.com/courtly/courtly/internal/event_bus"
	"github.com/courtly/courtly/internal/utils"
	"github.com/courtly/courtly/pkg/booking"
	"github.com/courtly/courtly/pkg/court"
	"github.com/courtly/courtly/pkg/member"
	"github.com/courtly/courtly/pkg/plan"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	EventBus *event_bus.EventBus
	Clock    utils.Clock

	CourtRepo    court.Repository
	CourtService court.Service
	CourtHandler *court.Handler

	MemberRepo     member.Repository
	MemberResolver member.Resolver
	MemberService  member.Service
	MemberHandler  *member.Handler

	BookingRepo    booking.Repository
	BookingService booking.Service
	BookingHandler *booking.Handler

	PlanRepo    plan.Repository
	PlanService plan.Service
	PlanHandler *plan.Handler
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *sql.DB, cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.EventBus = event_bus.NewEventBus()
	deps.Clock = &utils.SystemClock{}

	deps.CourtRepo = court.NewRepository(db)
	deps.CourtService = court.NewService(deps.CourtRepo)
	deps.CourtHandler = court.NewHandler(deps.CourtService)

	deps.MemberRepo = member.NewRepository(db)
	deps.MemberResolver = member.NewResolver(deps.MemberRepo, deps.Clock)
	deps.MemberService = member.NewService(deps.MemberRepo)
	deps.MemberHandler = member.NewHandler(deps.MemberService)

	deps.BookingRepo = booking.NewRepository(db)
	deps.BookingService = booking.NewService(deps.BookingRepo, deps.CourtRepo, deps.MemberResolver, deps.EventBus)
	deps.BookingHandler = booking.NewHandler(deps.BookingService)

	deps.PlanRepo = plan.NewRepository(db)
	deps.PlanService = plan.NewService(
		deps.PlanRepo,
		deps.BookingRepo,
		deps.CourtRepo,
		deps.MemberRepo,
		deps.MemberResolver,
		deps.EventBus,
		deps.Clock,
		time.Duration(cfg.Booking.DefaultDurationMinutes)*time.Minute,
		cfg.Booking.ExtensionScanDays,
	)
	deps.PlanHandler = plan.NewHandler(deps.PlanService)

	return deps
}
