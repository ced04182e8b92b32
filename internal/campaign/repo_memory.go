package campaign

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory campaign repository for tests and early
// development.
type MemoryRepo struct {
	mu        sync.Mutex
	campaigns map[string]Campaign
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{campaigns: map[string]Campaign{}}
}

func (r *MemoryRepo) Put(c Campaign) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[c.ID] = c
}

func (r *MemoryRepo) Get(ctx context.Context, workspaceID, id string) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.WorkspaceID != workspaceID {
		return Campaign{}, ErrNotFound
	}
	return c, nil
}

// ListSchedulable returns scheduled/active campaigns oldest-created first,
// matching the scheduler's fairness order.
func (r *MemoryRepo) ListSchedulable(ctx context.Context) ([]Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Campaign, 0)
	for _, c := range r.campaigns {
		if c.Status.Schedulable() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, workspaceID, id string, from, to Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.WorkspaceID != workspaceID {
		return ErrNotFound
	}
	if c.Status != from || !from.CanTransition(to) {
		return ErrInvalidTransition
	}
	c.Status = to
	c.UpdatedAt = at
	switch to {
	case StatusActive:
		if c.StartedAt == nil {
			t := at
			c.StartedAt = &t
		}
	case StatusCompleted:
		t := at
		c.CompletedAt = &t
	}
	r.campaigns[id] = c
	return nil
}
