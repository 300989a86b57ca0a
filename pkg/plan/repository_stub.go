package plan

import (
	"context"
	"sync"
	"time"

	"github.com/courtly/courtly/internal/utils"
)

type RepositoryStub struct {
	mu     sync.RWMutex
	plans  map[int64]RecurringPlan
	nextId int64

	CreateErr     error
	UpdateErr     error
	EndDateErr    error
	endDateCalled int
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		plans:  make(map[int64]RecurringPlan),
		nextId: 1,
	}
}

func (r *RepositoryStub) CreatePlan(ctx context.Context, p RecurringPlan) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return 0, r.CreateErr
	}
	id := r.nextId
	r.nextId++
	p.Id = id
	r.plans[id] = p
	return id, nil
}

func (r *RepositoryStub) GetPlan(ctx context.Context, orgId int64, planId int64) (RecurringPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plans[planId]
	if !ok || p.OrgId != orgId {
		return RecurringPlan{}, ErrPlanNotFound
	}
	return p, nil
}

func (r *RepositoryStub) ListPlans(ctx context.Context, orgId int64) ([]RecurringPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]RecurringPlan, 0, len(r.plans))
	for _, p := range r.plans {
		if p.OrgId == orgId {
			result = append(result, p)
		}
	}
	return result, nil
}

func (r *RepositoryStub) UpdatePlan(ctx context.Context, orgId int64, p RecurringPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UpdateErr != nil {
		return r.UpdateErr
	}
	existing, ok := r.plans[p.Id]
	if !ok || existing.OrgId != orgId {
		return ErrPlanNotFound
	}
	p.OrgId = orgId
	r.plans[p.Id] = p
	return nil
}

func (r *RepositoryStub) UpdateEndDate(ctx context.Context, orgId int64, planId int64, endDate time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endDateCalled++
	if r.EndDateErr != nil {
		return r.EndDateErr
	}
	p, ok := r.plans[planId]
	if !ok || p.OrgId != orgId {
		return ErrPlanNotFound
	}
	p.EndDate = utils.Midnight(endDate)
	r.plans[planId] = p
	return nil
}

func (r *RepositoryStub) SetActive(ctx context.Context, orgId int64, planId int64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[planId]
	if !ok || p.OrgId != orgId {
		return ErrPlanNotFound
	}
	p.Active = active
	r.plans[planId] = p
	return nil
}

func (r *RepositoryStub) DeactivateExpired(ctx context.Context, orgId int64, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var affected int64
	boundary := utils.Midnight(before)
	for id, p := range r.plans {
		if p.OrgId == orgId && p.Active && p.EndDate.Before(boundary) {
			p.Active = false
			r.plans[id] = p
			affected++
		}
	}
	return affected, nil
}
