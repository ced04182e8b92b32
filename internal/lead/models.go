package lead

import "time"

// Lead is a contact attached to a campaign.
//
// Invariants:
// - AttemptCount never exceeds the campaign's max attempts.
// - DNCStatus is a separate gate, not a status: it halts future scheduling
//   regardless of Status, and nothing in the dialer ever clears it.
type Lead struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`
	CampaignID  string `json:"campaign_id" db:"campaign_id"`

	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Phone     string `json:"phone" db:"phone"`
	Email     string `json:"email,omitempty" db:"email"`

	// Timezone is the lead's IANA timezone if known; empty means inferred
	// from the phone number at compliance time.
	Timezone string `json:"timezone,omitempty" db:"timezone"`

	Status    Status `json:"status" db:"status"`
	DNCStatus bool   `json:"dnc_status" db:"dnc_status"`

	AttemptCount  int `json:"attempt_count" db:"attempt_count"`
	PriorityScore int `json:"priority_score" db:"priority_score"`

	LastAttemptAt       *time.Time `json:"last_attempt_at,omitempty" db:"last_attempt_at"`
	NextCallScheduledAt *time.Time `json:"next_call_scheduled_at,omitempty" db:"next_call_scheduled_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusCalling   Status = "calling"
	StatusQualified Status = "qualified"
	StatusCallback  Status = "callback"
	StatusDoNotCall Status = "do_not_call"
	StatusFailed    Status = "failed"
)

// Callable statuses are the ones the selector may pick from.
func (s Status) Callable() bool {
	return s == StatusNew || s == StatusContacted || s == StatusCallback
}

// FullName is a display helper for provider payloads.
func (l Lead) FullName() string {
	switch {
	case l.FirstName != "" && l.LastName != "":
		return l.FirstName + " " + l.LastName
	case l.FirstName != "":
		return l.FirstName
	default:
		return l.LastName
	}
}
