package phoneline

import "time"

// Status is the lifecycle state of a phone line.
type Status string

const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusReleased Status = "released"
)

// PhoneLine is an outbound number owned by a workspace and attached to a
// campaign. Daily counters reset lazily on the first allocation of a new
// local day rather than by a midnight job.
type PhoneLine struct {
	ID             string
	WorkspaceID    string
	CampaignID     string
	ProviderLineID string
	Number         string // E.164
	Status         Status

	DailyCallCount int
	TotalCallCount int
	DailyCap       int
	HealthScore    int // 0..100

	LastCallAt   *time.Time
	LastCallDate string // YYYY-MM-DD in the line's local day, guards the lazy reset

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Usable reports whether the line can carry calls at all.
func (l PhoneLine) Usable() bool {
	return l.Status == StatusActive
}
