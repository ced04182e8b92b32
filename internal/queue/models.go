package queue

import "time"

// Status is the lifecycle state of a queue item. An item never re-enters a
// state: retries are new items carrying the next attempt number.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCalling   Status = "calling"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Item is one scheduled call attempt for a lead.
type Item struct {
	ID            string
	WorkspaceID   string
	CampaignID    string
	LeadID        string
	PhoneLineID   string
	AttemptNumber int
	Status        Status

	ScheduledFor   time.Time
	DispatchedAt   *time.Time
	CompletedAt    *time.Time
	ProviderCallID string
	LastOutcome    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether the item has reached a final state.
func (i Item) Terminal() bool {
	return i.Status == StatusCompleted || i.Status == StatusFailed
}
