package member

import (
	"context"
	"errors"
	"fmt"

	"github.com/courtly/courtly/internal/utils"
	"github.com/courtly/courtly/pkg/org"
	log "github.com/sirupsen/logrus"
)

// ErrNoIdentity is returned when a resolve request carries no usable
// identity field at all.
var ErrNoIdentity = errors.New("no identity fields provided")

// ResolveInput is the booking-time identity of a customer.
type ResolveInput struct {
	UserId *int64
	Phone  string
	Email  string
	Name   string
}

// Resolution is the outcome of matching booking input against the member
// directory. Annotations carry contact mismatches detected on app-linked
// profiles; the caller persists them alongside the booking.
type Resolution struct {
	Member      Member
	Created     bool
	Annotations map[string]string
}

type Resolver interface {
	Resolve(ctx context.Context, input ResolveInput) (Resolution, error)
}

type ResolverImpl struct {
	repo  Repository
	clock utils.Clock
}

func NewResolver(repo Repository, clock utils.Clock) *ResolverImpl {
	return &ResolverImpl{repo: repo, clock: clock}
}

// Resolve finds or creates the member a booking belongs to. The lookup
// cascade is: exact app user id, exact phone, case-insensitive full name
// (the name tier only when no user id was given). First hit wins. Lookup
// failures are treated as "no match"; only creation failures are fatal.
func (r *ResolverImpl) Resolve(ctx context.Context, input ResolveInput) (Resolution, error) {
	orgId, err := org.CurrentId(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to get current organization: %w", err)
	}

	if input.UserId == nil && input.Phone == "" && input.Name == "" {
		return Resolution{}, ErrNoIdentity
	}

	if m, ok := r.lookup(ctx, orgId, input); ok {
		return r.matched(ctx, orgId, m, input)
	}

	return r.create(ctx, orgId, input)
}

func (r *ResolverImpl) lookup(ctx context.Context, orgId int64, input ResolveInput) (Member, bool) {
	if input.UserId != nil {
		m, err := r.repo.FindByUserId(ctx, orgId, *input.UserId)
		if err == nil {
			return m, true
		}
		if !errors.Is(err, ErrMemberNotFound) {
			log.Warnf("member lookup by user id failed, treating as no match: %v", err)
		}
	}

	if input.Phone != "" {
		m, err := r.repo.FindByPhone(ctx, orgId, input.Phone)
		if err == nil {
			return m, true
		}
		if !errors.Is(err, ErrMemberNotFound) {
			log.Warnf("member lookup by phone failed, treating as no match: %v", err)
		}
	}

	// Name matching is inherently weak; it is skipped entirely when the
	// caller identified the customer by app account.
	if input.UserId == nil && input.Name != "" {
		m, err := r.repo.FindByName(ctx, orgId, input.Name)
		if err == nil {
			return m, true
		}
		if !errors.Is(err, ErrMemberNotFound) {
			log.Warnf("member lookup by name failed, treating as no match: %v", err)
		}
	}

	return Member{}, false
}

func (r *ResolverImpl) matched(ctx context.Context, orgId int64, m Member, input ResolveInput) (Resolution, error) {
	annotations := map[string]string{}

	if m.AppLinked() {
		// App-linked profiles own their contact data. Divergent booking-time
		// input becomes an annotation, never a mutation.
		if input.Phone != "" && input.Phone != m.Phone {
			annotations[AnnotationAltContact] = input.Phone
			annotations[AnnotationContactMismatch] = "true"
		}
		if input.Email != "" && input.Email != m.Email {
			annotations[AnnotationAltEmail] = input.Email
			annotations[AnnotationEmailMismatch] = "true"
		}
	} else {
		phone := m.Phone
		email := m.Email
		userId := m.UserId
		changed := false
		if input.Phone != "" && input.Phone != m.Phone {
			phone = input.Phone
			changed = true
		}
		if input.Email != "" && input.Email != m.Email {
			email = input.Email
			changed = true
		}
		if input.UserId != nil && m.UserId == nil {
			userId = input.UserId
			changed = true
		}
		if changed {
			if err := r.repo.UpdateContact(ctx, orgId, m.Id, phone, email, userId); err != nil {
				return Resolution{}, fmt.Errorf("failed to enrich member: %w", err)
			}
			m.Phone = phone
			m.Email = email
			m.UserId = userId
		}
	}

	now := r.clock.Now()
	if err := r.repo.Touch(ctx, orgId, m.Id, now); err != nil {
		log.Warnf("failed to touch member %d: %v", m.Id, err)
	} else {
		m.LastInteractionAt = now
	}

	return Resolution{Member: m, Created: false, Annotations: annotations}, nil
}

func (r *ResolverImpl) create(ctx context.Context, orgId int64, input ResolveInput) (Resolution, error) {
	fullName := input.Name
	if fullName == "" {
		fullName = input.Phone
	}

	m := Member{
		OrgId:             orgId,
		UserId:            input.UserId,
		FullName:          fullName,
		Phone:             input.Phone,
		Email:             input.Email,
		Status:            StatusActive,
		LastInteractionAt: r.clock.Now(),
	}

	id, err := r.repo.CreateMember(ctx, m)
	if err != nil {
		// A concurrent booking may have created the same member in between
		// lookup and insert; the unique keys on (org, phone) and
		// (org, user_id) turn that into an insert error. Retry the lookup
		// before declaring the creation fatal.
		if input.Phone != "" {
			if existing, lookupErr := r.repo.FindByPhone(ctx, orgId, input.Phone); lookupErr == nil {
				return r.matched(ctx, orgId, existing, input)
			}
		}
		if input.UserId != nil {
			if existing, lookupErr := r.repo.FindByUserId(ctx, orgId, *input.UserId); lookupErr == nil {
				return r.matched(ctx, orgId, existing, input)
			}
		}
		return Resolution{}, fmt.Errorf("failed to create member: %w", err)
	}
	m.Id = id

	return Resolution{Member: m, Created: true, Annotations: map[string]string{}}, nil
}
