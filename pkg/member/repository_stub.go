package member

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type RepositoryStub struct {
	mu      sync.RWMutex
	members map[int64]Member
	nextId  int64

	// CreateErr forces CreateMember to fail, for conflict-retry tests.
	CreateErr error
	// LookupErr forces all Find* calls to fail with a non-not-found error.
	LookupErr error
	// FailNextLookups fails that many Find* calls before lookups recover,
	// simulating a member inserted concurrently between lookup and create.
	FailNextLookups int
}

func (r *RepositoryStub) lookupFailure() error {
	if r.LookupErr != nil {
		return r.LookupErr
	}
	if r.FailNextLookups > 0 {
		r.FailNextLookups--
		return ErrMemberNotFound
	}
	return nil
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		members: make(map[int64]Member),
		nextId:  1,
	}
}

func (r *RepositoryStub) FindByUserId(ctx context.Context, orgId int64, userId int64) (Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.lookupFailure(); err != nil {
		return Member{}, err
	}
	for _, m := range r.members {
		if m.OrgId == orgId && m.UserId != nil && *m.UserId == userId {
			return m, nil
		}
	}
	return Member{}, ErrMemberNotFound
}

func (r *RepositoryStub) FindByPhone(ctx context.Context, orgId int64, phone string) (Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.lookupFailure(); err != nil {
		return Member{}, err
	}
	for _, m := range r.members {
		if m.OrgId == orgId && m.Phone == phone && phone != "" {
			return m, nil
		}
	}
	return Member{}, ErrMemberNotFound
}

func (r *RepositoryStub) FindByName(ctx context.Context, orgId int64, name string) (Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.lookupFailure(); err != nil {
		return Member{}, err
	}
	for _, m := range r.members {
		if m.OrgId == orgId && strings.EqualFold(m.FullName, name) {
			return m, nil
		}
	}
	return Member{}, ErrMemberNotFound
}

func (r *RepositoryStub) GetMember(ctx context.Context, orgId int64, memberId int64) (Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[memberId]
	if !ok || m.OrgId != orgId {
		return Member{}, ErrMemberNotFound
	}
	return m, nil
}

func (r *RepositoryStub) ListMembers(ctx context.Context, orgId int64) ([]Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		if m.OrgId == orgId {
			result = append(result, m)
		}
	}
	return result, nil
}

func (r *RepositoryStub) CreateMember(ctx context.Context, m Member) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return 0, r.CreateErr
	}
	for _, existing := range r.members {
		if existing.OrgId != m.OrgId {
			continue
		}
		if m.Phone != "" && existing.Phone == m.Phone {
			return 0, fmt.Errorf("unique constraint violation on (org_id, phone)")
		}
		if m.UserId != nil && existing.UserId != nil && *existing.UserId == *m.UserId {
			return 0, fmt.Errorf("unique constraint violation on (org_id, user_id)")
		}
	}
	id := r.nextId
	r.nextId++
	m.Id = id
	r.members[id] = m
	return id, nil
}

func (r *RepositoryStub) UpdateContact(ctx context.Context, orgId int64, memberId int64, phone, email string, userId *int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[memberId]
	if !ok || m.OrgId != orgId {
		return ErrMemberNotFound
	}
	m.Phone = phone
	m.Email = email
	m.UserId = userId
	r.members[memberId] = m
	return nil
}

func (r *RepositoryStub) UpdateMember(ctx context.Context, orgId int64, m Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.members[m.Id]
	if !ok || existing.OrgId != orgId {
		return ErrMemberNotFound
	}
	m.OrgId = orgId
	m.LastInteractionAt = existing.LastInteractionAt
	r.members[m.Id] = m
	return nil
}

func (r *RepositoryStub) Touch(ctx context.Context, orgId int64, memberId int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[memberId]
	if !ok || m.OrgId != orgId {
		return ErrMemberNotFound
	}
	m.LastInteractionAt = at
	r.members[memberId] = m
	return nil
}
