package member

import (
	"context"
	"errors"
	"fmt"

	"github.com/courtly/courtly/pkg/org"
)

// ErrProtectedProfile is returned when an update would overwrite contact
// fields of an app-linked member.
var ErrProtectedProfile = errors.New("member profile is app-linked and protected")

type Service interface {
	GetMember(ctx context.Context, memberId int64) (Member, error)
	ListMembers(ctx context.Context) ([]Member, error)
	UpdateMember(ctx context.Context, m Member) (Member, error)
}

type ServiceImpl struct {
	repo Repository
}

func NewService(repo Repository) *ServiceImpl {
	return &ServiceImpl{repo: repo}
}

func (s *ServiceImpl) GetMember(ctx context.Context, memberId int64) (Member, error) {
	orgId, err := org.CurrentId(ctx)
	if err != nil {
		return Member{}, fmt.Errorf("failed to get current organization: %w", err)
	}
	return s.repo.GetMember(ctx, orgId, memberId)
}

func (s *ServiceImpl) ListMembers(ctx context.Context) ([]Member, error) {
	orgId, err := org.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current organization: %w", err)
	}
	return s.repo.ListMembers(ctx, orgId)
}

func (s *ServiceImpl) UpdateMember(ctx context.Context, m Member) (Member, error) {
	orgId, err := org.CurrentId(ctx)
	if err != nil {
		return Member{}, fmt.Errorf("failed to get current organization: %w", err)
	}

	stored, err := s.repo.GetMember(ctx, orgId, m.Id)
	if err != nil {
		return Member{}, err
	}
	if stored.AppLinked() && (m.Phone != stored.Phone || m.Email != stored.Email) {
		return Member{}, ErrProtectedProfile
	}

	m.OrgId = orgId
	m.UserId = stored.UserId
	if err := s.repo.UpdateMember(ctx, orgId, m); err != nil {
		return Member{}, err
	}
	m.LastInteractionAt = stored.LastInteractionAt
	return m, nil
}
