package lead

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository used in tests and local runs.
type MemoryRepository struct {
	mu    sync.RWMutex
	leads map[string]Lead
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{leads: make(map[string]Lead)}
}

// Put seeds or replaces a lead.
func (r *MemoryRepository) Put(l Lead) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads[l.ID] = l
}

func (r *MemoryRepository) Get(ctx context.Context, workspaceID, id string) (Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.leads[id]
	if !ok || l.WorkspaceID != workspaceID {
		return Lead{}, ErrNotFound
	}
	return l, nil
}

func (r *MemoryRepository) ListCallable(ctx context.Context, workspaceID, campaignID string) ([]Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Lead
	for _, l := range r.leads {
		if l.WorkspaceID != workspaceID || l.CampaignID != campaignID {
			continue
		}
		if !l.Status.Callable() || l.DNCStatus {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, workspaceID, id string, to Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok || l.WorkspaceID != workspaceID {
		return ErrNotFound
	}
	l.Status = to
	l.UpdatedAt = at
	r.leads[id] = l
	return nil
}

func (r *MemoryRepository) MarkAttempt(ctx context.Context, workspaceID, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok || l.WorkspaceID != workspaceID {
		return ErrNotFound
	}
	l.AttemptCount++
	t := at
	l.LastAttemptAt = &t
	l.UpdatedAt = at
	r.leads[id] = l
	return nil
}

func (r *MemoryRepository) SetNextCall(ctx context.Context, workspaceID, id string, dueAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok || l.WorkspaceID != workspaceID {
		return ErrNotFound
	}
	t := dueAt
	l.NextCallScheduledAt = &t
	l.UpdatedAt = dueAt
	r.leads[id] = l
	return nil
}
