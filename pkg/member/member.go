package member

import "time"

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Member is an organization-scoped customer profile. A member may be linked
// to a platform app account through UserId; linked profiles own their contact
// data and are never overwritten by booking-time input.
type Member struct {
	Id                int64
	OrgId             int64
	UserId            *int64
	FullName          string
	Phone             string
	Email             string
	Status            Status
	LastInteractionAt time.Time
}

// AppLinked reports whether the member owns a platform app account.
func (m Member) AppLinked() bool {
	return m.UserId != nil
}

// Annotation keys recorded when booking-time contact data diverges from an
// app-linked profile. They are persisted alongside the booking, not on the
// member.
const (
	AnnotationAltContact      = "alt_contact"
	AnnotationContactMismatch = "contact_mismatch"
	AnnotationAltEmail        = "alt_email"
	AnnotationEmailMismatch   = "email_mismatch"
)
