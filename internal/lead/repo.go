package lead

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("lead: not found")

// Repository persists leads.
type Repository interface {
	Get(ctx context.Context, workspaceID, id string) (Lead, error)
	ListCallable(ctx context.Context, workspaceID, campaignID string) ([]Lead, error)

	// UpdateStatus sets the lead status unconditionally (reconciliation may
	// move a lead from any state).
	UpdateStatus(ctx context.Context, workspaceID, id string, to Status, at time.Time) error

	// MarkAttempt records a dispatch: status -> calling, attempt_count+1,
	// last_attempt_at set.
	MarkAttempt(ctx context.Context, workspaceID, id string, at time.Time) error

	// SetNextCall records when the lead becomes due again (retry/callback).
	SetNextCall(ctx context.Context, workspaceID, id string, dueAt time.Time) error
}
