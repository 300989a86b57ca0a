package plan

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecurringPlan is a contract for a weekly reservation on a fixed court,
// weekday and time of day over a date range. EndDate is rewritten after
// generation and after each incident extension so that it always names the
// calendar date of the true last occurrence.
type RecurringPlan struct {
	Id             int64
	OrgId          int64
	UserId         *int64
	MemberId       *int64
	CourtId        int64
	DayOfWeek      time.Weekday
	StartTime      string // "HH:MM"
	StartDate      time.Time
	EndDate        time.Time
	TotalPrice     decimal.Decimal
	Active         bool
	PaymentAdvance bool
}

// PlanOverview is a plan annotated with its session statistics for listing.
type PlanOverview struct {
	RecurringPlan
	RemainingSessions int
	TotalSessions     int
	PendingDebt       decimal.Decimal
}
