package phoneline

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("phone line not found")

// Repository persists phone lines.
type Repository interface {
	Get(ctx context.Context, workspaceID, id string) (PhoneLine, error)
	ListByCampaign(ctx context.Context, workspaceID, campaignID string) ([]PhoneLine, error)

	// RecordDispatch bumps counters after a call is placed on the line.
	// localDate is the line's current local day (YYYY-MM-DD); when it
	// differs from the stored one the daily counter restarts at 1.
	RecordDispatch(ctx context.Context, workspaceID, id string, at time.Time, localDate string) error

	// AdjustHealth moves the health score by delta, clamped to 0..100.
	AdjustHealth(ctx context.Context, workspaceID, id string, delta int) error
}
