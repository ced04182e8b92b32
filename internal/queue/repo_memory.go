package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository used in tests and local runs.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]Item
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]Item)}
}

func (r *MemoryRepository) Get(ctx context.Context, workspaceID, id string) (Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.items[id]
	if !ok || it.WorkspaceID != workspaceID {
		return Item{}, ErrNotFound
	}
	return it, nil
}

func (r *MemoryRepository) GetByProviderCallID(ctx context.Context, workspaceID, providerCallID string) (Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, it := range r.items {
		if it.WorkspaceID == workspaceID && it.ProviderCallID == providerCallID && providerCallID != "" {
			return it, nil
		}
	}
	return Item{}, ErrNotFound
}

func (r *MemoryRepository) Insert(ctx context.Context, item Item) (Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(item), nil
}

func (r *MemoryRepository) BulkInsert(ctx context.Context, items []Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range items {
		r.insertLocked(it)
	}
	return nil
}

func (r *MemoryRepository) insertLocked(item Item) Item {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = StatusPending
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	item.UpdatedAt = item.CreatedAt
	r.items[item.ID] = item
	return item
}

func (r *MemoryRepository) DuePending(ctx context.Context, workspaceID, campaignID string, now time.Time, limit int) ([]Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Item
	for _, it := range r.items {
		if it.WorkspaceID != workspaceID || it.CampaignID != campaignID {
			continue
		}
		if it.Status != StatusPending || it.ScheduledFor.After(now) {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledFor.Equal(out[j].ScheduledFor) {
			return out[i].ScheduledFor.Before(out[j].ScheduledFor)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) MarkCalling(ctx context.Context, workspaceID, id string, at time.Time) error {
	return r.transition(workspaceID, id, []Status{StatusPending}, func(it *Item) {
		it.Status = StatusCalling
		t := at
		it.DispatchedAt = &t
		it.UpdatedAt = at
	})
}

func (r *MemoryRepository) AttachProviderCall(ctx context.Context, workspaceID, id, providerCallID string) error {
	return r.transition(workspaceID, id, nil, func(it *Item) {
		it.ProviderCallID = providerCallID
	})
}

func (r *MemoryRepository) Complete(ctx context.Context, workspaceID, id, outcome string, at time.Time) error {
	return r.transition(workspaceID, id, []Status{StatusCalling}, func(it *Item) {
		it.Status = StatusCompleted
		it.LastOutcome = outcome
		t := at
		it.CompletedAt = &t
		it.UpdatedAt = at
	})
}

func (r *MemoryRepository) Fail(ctx context.Context, workspaceID, id, outcome string, at time.Time) error {
	return r.transition(workspaceID, id, []Status{StatusPending, StatusCalling}, func(it *Item) {
		it.Status = StatusFailed
		it.LastOutcome = outcome
		t := at
		it.CompletedAt = &t
		it.UpdatedAt = at
	})
}

func (r *MemoryRepository) transition(workspaceID, id string, from []Status, apply func(*Item)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok || it.WorkspaceID != workspaceID {
		return ErrNotFound
	}
	if from != nil {
		allowed := false
		for _, s := range from {
			if it.Status == s {
				allowed = true
				break
			}
		}
		if !allowed {
			return ErrStaleTransition
		}
	}
	apply(&it)
	r.items[id] = it
	return nil
}

func (r *MemoryRepository) CountPending(ctx context.Context, workspaceID, campaignID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, it := range r.items {
		if it.WorkspaceID == workspaceID && it.CampaignID == campaignID && it.Status == StatusPending {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) CountByCampaign(ctx context.Context, workspaceID, campaignID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, it := range r.items {
		if it.WorkspaceID == workspaceID && it.CampaignID == campaignID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) CountDispatchedSince(ctx context.Context, workspaceID, campaignID string, cutoff time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, it := range r.items {
		if it.WorkspaceID != workspaceID || it.CampaignID != campaignID {
			continue
		}
		if it.DispatchedAt != nil && !it.DispatchedAt.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) ListCallingLeadIDs(ctx context.Context, workspaceID, campaignID string) (map[string]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool)
	for _, it := range r.items {
		if it.WorkspaceID == workspaceID && it.CampaignID == campaignID && it.Status == StatusCalling {
			out[it.LeadID] = true
		}
	}
	return out, nil
}

func (r *MemoryRepository) ExistsOpenAttempt(ctx context.Context, workspaceID, campaignID, leadID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, it := range r.items {
		if it.WorkspaceID != workspaceID || it.CampaignID != campaignID || it.LeadID != leadID {
			continue
		}
		if it.Status == StatusPending || it.Status == StatusCalling {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) ListStaleCalling(ctx context.Context, cutoff time.Time, limit int) ([]Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Item
	for _, it := range r.items {
		if it.Status != StatusCalling || it.DispatchedAt == nil {
			continue
		}
		if it.DispatchedAt.Before(cutoff) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DispatchedAt.Before(*out[j].DispatchedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
