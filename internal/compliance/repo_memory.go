package compliance

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLogRepository is an in-memory append-only log used in tests and
// local runs.
type MemoryLogRepository struct {
	mu      sync.RWMutex
	entries []LogEntry
}

func NewMemoryLogRepository() *MemoryLogRepository {
	return &MemoryLogRepository{}
}

func (r *MemoryLogRepository) Append(ctx context.Context, entry LogEntry) (LogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	r.entries = append(r.entries, entry)
	return entry, nil
}

func (r *MemoryLogRepository) CountByLeadSince(ctx context.Context, workspaceID, campaignID, leadID string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entries {
		if e.WorkspaceID == workspaceID && e.CampaignID == campaignID && e.LeadID == leadID &&
			e.Allowed && !e.CheckedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryLogRepository) CountByNumberSince(ctx context.Context, workspaceID, phoneNumber string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entries {
		if e.WorkspaceID == workspaceID && e.PhoneNumber == phoneNumber &&
			e.Allowed && !e.CheckedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryLogRepository) CountViolationsByNumber(ctx context.Context, workspaceID, phoneNumber string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entries {
		if e.WorkspaceID == workspaceID && e.PhoneNumber == phoneNumber &&
			!e.Allowed && !e.CheckedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryLogRepository) ListByCampaign(ctx context.Context, workspaceID, campaignID string, limit int) ([]LogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []LogEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.WorkspaceID == workspaceID && e.CampaignID == campaignID {
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
