package calls

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory call record repository for tests and early
// development. It mirrors the postgres upsert semantics, keyed by
// (workspace_id, provider_call_id).
type MemoryRepo struct {
	mu      sync.Mutex
	records map[string]CallRecord // key: workspace_id|provider_call_id
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{records: map[string]CallRecord{}}
}

func key(workspaceID, providerCallID string) string {
	return workspaceID + "|" + providerCallID
}

func (r *MemoryRepo) Upsert(ctx context.Context, rec CallRecord) (CallRecord, error) {
	if rec.WorkspaceID == "" || rec.ProviderCallID == "" {
		return CallRecord{}, errors.New("calls: workspace_id and provider_call_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(rec.WorkspaceID, rec.ProviderCallID)
	if prev, ok := r.records[k]; ok {
		// First-write wins for identity fields; re-delivery must not churn them.
		rec.ID = prev.ID
		rec.CreatedAt = prev.CreatedAt
		if rec.QualificationScore == nil {
			rec.QualificationScore = prev.QualificationScore
		}
	} else {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = rec.UpdatedAt
		}
	}
	r.records[k] = rec
	return rec, nil
}

func (r *MemoryRepo) GetByProviderCallID(ctx context.Context, workspaceID, providerCallID string) (CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key(workspaceID, providerCallID)]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepo) SetQualificationScore(ctx context.Context, workspaceID, providerCallID string, score int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(workspaceID, providerCallID)
	rec, ok := r.records[k]
	if !ok {
		return ErrNotFound
	}
	rec.QualificationScore = &score
	r.records[k] = rec
	return nil
}

func (r *MemoryRepo) ListByCampaign(ctx context.Context, workspaceID, campaignID string) ([]CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallRecord, 0)
	for _, rec := range r.records {
		if rec.WorkspaceID == workspaceID && rec.CampaignID == campaignID {
			out = append(out, rec)
		}
	}
	return out, nil
}
