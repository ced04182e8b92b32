package calls

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("calls: record not found")

// Repository persists call records.
//
// Upsert must be idempotent by provider_call_id: applying the same record
// twice leaves the stored state identical to applying it once. The created_at
// of the first write wins; qualification_score is preserved unless the new
// record carries one.
type Repository interface {
	Upsert(ctx context.Context, rec CallRecord) (CallRecord, error)
	GetByProviderCallID(ctx context.Context, workspaceID, providerCallID string) (CallRecord, error)
	SetQualificationScore(ctx context.Context, workspaceID, providerCallID string, score int) error
	ListByCampaign(ctx context.Context, workspaceID, campaignID string) ([]CallRecord, error)
}
