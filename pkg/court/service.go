package court

import (
	"context"
	"fmt"

	"github.com/courtly/courtly/pkg/org"
)

type Service interface {
	GetCourt(ctx context.Context, courtId int64) (Court, error)
	ListCourts(ctx context.Context) ([]Court, error)
}

type ServiceImpl struct {
	repo Repository
}

func NewService(repo Repository) *ServiceImpl {
	return &ServiceImpl{repo: repo}
}

func (s *ServiceImpl) GetCourt(ctx context.Context, courtId int64) (Court, error) {
	orgId, err := org.CurrentId(ctx)
	if err != nil {
		return Court{}, fmt.Errorf("failed to get current organization: %w", err)
	}
	return s.repo.GetCourt(ctx, orgId, courtId)
}

func (s *ServiceImpl) ListCourts(ctx context.Context) ([]Court, error) {
	orgId, err := org.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current organization: %w", err)
	}
	return s.repo.ListCourts(ctx, orgId)
}
