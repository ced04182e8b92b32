package compliance

import (
	"context"
	"time"
)

// LogRepository is the append-only store for compliance check entries.
// Entries are never updated or deleted; counts are derived from the trail.
type LogRepository interface {
	Append(ctx context.Context, entry LogEntry) (LogEntry, error)

	// CountByLeadSince counts checks that resulted in a dial attempt for
	// the lead within the window.
	CountByLeadSince(ctx context.Context, workspaceID, campaignID, leadID string, since time.Time) (int, error)

	// CountByNumberSince counts allowed checks against the number across
	// all campaigns within the window.
	CountByNumberSince(ctx context.Context, workspaceID, phoneNumber string, since time.Time) (int, error)

	// CountViolationsByNumber counts prior denied checks for the number.
	CountViolationsByNumber(ctx context.Context, workspaceID, phoneNumber string, since time.Time) (int, error)

	ListByCampaign(ctx context.Context, workspaceID, campaignID string, limit int) ([]LogEntry, error)
}
