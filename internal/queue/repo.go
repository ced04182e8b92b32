package queue

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("queue item not found")

	// ErrStaleTransition means the item was not in the expected status, so
	// the conditional update changed nothing. Callers treat it as "someone
	// else got here first" and move on.
	ErrStaleTransition = errors.New("queue item not in expected status")
)

// Repository persists queue items. Status transitions are conditional on the
// current status so that the dispatcher, reconciler, and sweeper can race
// without double-applying an outcome.
type Repository interface {
	Get(ctx context.Context, workspaceID, id string) (Item, error)
	GetByProviderCallID(ctx context.Context, workspaceID, providerCallID string) (Item, error)

	Insert(ctx context.Context, item Item) (Item, error)
	BulkInsert(ctx context.Context, items []Item) error

	// DuePending returns pending items with scheduled_for <= now, oldest
	// scheduled first, capped at limit.
	DuePending(ctx context.Context, workspaceID, campaignID string, now time.Time, limit int) ([]Item, error)

	// MarkCalling transitions pending -> calling and stamps dispatched_at.
	MarkCalling(ctx context.Context, workspaceID, id string, at time.Time) error

	// AttachProviderCall records the provider's call id once placement
	// succeeds so webhook events can be matched back to the item.
	AttachProviderCall(ctx context.Context, workspaceID, id, providerCallID string) error

	// Complete transitions calling -> completed with the final outcome.
	Complete(ctx context.Context, workspaceID, id, outcome string, at time.Time) error

	// Fail transitions the item to failed from pending or calling.
	Fail(ctx context.Context, workspaceID, id, outcome string, at time.Time) error

	CountPending(ctx context.Context, workspaceID, campaignID string) (int, error)

	// CountByCampaign counts the campaign's items in any status. Zero means
	// attempts were never materialized for it.
	CountByCampaign(ctx context.Context, workspaceID, campaignID string) (int, error)

	// CountDispatchedSince counts items dispatched at or after the cutoff,
	// feeding the campaign daily call cap.
	CountDispatchedSince(ctx context.Context, workspaceID, campaignID string, cutoff time.Time) (int, error)

	// ListCallingLeadIDs returns lead ids with an in-flight attempt.
	ListCallingLeadIDs(ctx context.Context, workspaceID, campaignID string) (map[string]bool, error)

	// ExistsOpenAttempt reports whether the lead already has a pending or
	// calling item, the duplicate guard before enqueueing a new attempt.
	ExistsOpenAttempt(ctx context.Context, workspaceID, campaignID, leadID string) (bool, error)

	// ListStaleCalling returns items stuck in calling since before cutoff.
	ListStaleCalling(ctx context.Context, cutoff time.Time, limit int) ([]Item, error)
}
