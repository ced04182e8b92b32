package compliance

import "time"

// CheckResult is the verdict for one pre-dial compliance check. Allowed=false
// with a BlockedUntil tells the caller when the number may be tried again;
// a nil BlockedUntil means the block is indefinite (operator action needed).
type CheckResult struct {
	Allowed         bool
	Reason          string
	Score           int // 0..100, 100 is fully clean
	BlockedUntil    *time.Time
	Violations      []string
	Recommendations []string
}

// LogEntry is one row of the append-only compliance audit trail. Exactly one
// entry is written per check invocation, allowed or not.
type LogEntry struct {
	ID          string
	WorkspaceID string
	CampaignID  string
	LeadID      string
	PhoneNumber string
	Allowed      bool
	Reason       string
	Score        int
	BlockedUntil *time.Time
	Violations   []string
	CheckedAt    time.Time
}

// Request carries everything the gatekeeper needs to evaluate a dial.
type Request struct {
	WorkspaceID string
	CampaignID  string
	LeadID      string
	PhoneNumber string // E.164
	LeadTZ      string // IANA zone from the lead record, may be empty
	CampaignTZ  string // fallback zone
	HasConsent  bool
}

// Reasons reported in CheckResult and the log.
const (
	ReasonClean             = "all checks passed"
	ReasonDNC               = "number on do-not-call list"
	ReasonOutsideHours      = "outside permitted calling hours"
	ReasonFrequencyCampaign = "campaign attempt frequency exceeded"
	ReasonFrequencyNumber   = "number contact frequency exceeded"
	ReasonRegistryError     = "dnc registry unavailable"
)
