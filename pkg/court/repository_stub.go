package court

import (
	"context"
	"sync"
)

type RepositoryStub struct {
	mu     sync.RWMutex
	courts map[int64]Court
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{courts: make(map[int64]Court)}
}

func (r *RepositoryStub) AddCourt(c Court) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.courts[c.Id] = c
}

func (r *RepositoryStub) GetCourt(ctx context.Context, orgId int64, courtId int64) (Court, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.courts[courtId]
	if !ok || c.OrgId != orgId {
		return Court{}, ErrCourtNotFound
	}
	return c, nil
}

func (r *RepositoryStub) ListCourts(ctx context.Context, orgId int64) ([]Court, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Court, 0, len(r.courts))
	for _, c := range r.courts {
		if c.OrgId == orgId {
			result = append(result, c)
		}
	}
	return result, nil
}
