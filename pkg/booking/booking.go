package booking

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	StatusPaid     PaymentStatus = "paid"
	StatusPending  PaymentStatus = "pending"
	StatusCanceled PaymentStatus = "canceled"
)

// Booking is one reservation occurrence on a court. Bookings spawned by a
// recurring plan carry the plan's id. Deletion is always soft: a booking is
// canceled, never removed, except for the compensating rollback of a failed
// incident extension.
type Booking struct {
	Id              int64
	Uid             uuid.UUID
	OrgId           int64
	CourtId         int64
	UserId          *int64
	MemberId        *int64
	StartTime       time.Time
	EndTime         time.Time
	Title           string
	Description     string
	PaymentStatus   PaymentStatus
	Price           decimal.Decimal
	RecurringPlanId *int64
	Metadata        map[string]string
}

// MetadataIncidentReason is the metadata key carrying the incident that
// moved or canceled a plan occurrence.
const MetadataIncidentReason = "incident_reason"

// Canceled reports whether the booking has been soft-deleted.
func (b Booking) Canceled() bool {
	return b.PaymentStatus == StatusCanceled
}
