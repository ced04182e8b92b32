package campaign

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("campaign: not found")
	ErrInvalidTransition = errors.New("campaign: invalid status transition")
)

// Repository persists campaigns.
//
// UpdateStatus must be conditional: the write applies only when the stored
// status still equals from, so two schedulers racing on the same transition
// cannot both win.
type Repository interface {
	Get(ctx context.Context, workspaceID, id string) (Campaign, error)
	ListSchedulable(ctx context.Context) ([]Campaign, error)
	UpdateStatus(ctx context.Context, workspaceID, id string, from, to Status, at time.Time) error
}
