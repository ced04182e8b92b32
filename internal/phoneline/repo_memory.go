package phoneline

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository used in tests and local runs.
type MemoryRepository struct {
	mu    sync.RWMutex
	lines map[string]PhoneLine
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{lines: make(map[string]PhoneLine)}
}

// Put seeds or replaces a line.
func (r *MemoryRepository) Put(l PhoneLine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[l.ID] = l
}

func (r *MemoryRepository) Get(ctx context.Context, workspaceID, id string) (PhoneLine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lines[id]
	if !ok || l.WorkspaceID != workspaceID {
		return PhoneLine{}, ErrNotFound
	}
	return l, nil
}

func (r *MemoryRepository) ListByCampaign(ctx context.Context, workspaceID, campaignID string) ([]PhoneLine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []PhoneLine
	for _, l := range r.lines {
		if l.WorkspaceID == workspaceID && l.CampaignID == campaignID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *MemoryRepository) RecordDispatch(ctx context.Context, workspaceID, id string, at time.Time, localDate string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lines[id]
	if !ok || l.WorkspaceID != workspaceID {
		return ErrNotFound
	}
	if l.LastCallDate != localDate {
		l.DailyCallCount = 0
		l.LastCallDate = localDate
	}
	l.DailyCallCount++
	l.TotalCallCount++
	t := at
	l.LastCallAt = &t
	l.UpdatedAt = at
	r.lines[id] = l
	return nil
}

func (r *MemoryRepository) AdjustHealth(ctx context.Context, workspaceID, id string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lines[id]
	if !ok || l.WorkspaceID != workspaceID {
		return ErrNotFound
	}
	l.HealthScore += delta
	if l.HealthScore > 100 {
		l.HealthScore = 100
	}
	if l.HealthScore < 0 {
		l.HealthScore = 0
	}
	r.lines[id] = l
	return nil
}
