package telephony

import "time"

// CallEndedEvent is the normalized end-of-call report pushed by the provider
// webhook or pulled via GetCall. Fields other than WorkspaceID and
// ProviderCallID may be missing when the provider truncated the report.
type CallEndedEvent struct {
	WorkspaceID    string
	ProviderCallID string

	PhoneNumber string // customer number, may be absent

	EndedReason     string
	DurationSeconds int
	CostMinor       int64
	Transcript      string
	RecordingURL    string

	StartedAt *time.Time
	EndedAt   *time.Time
	Source    string // "webhook" or "sweeper"
}

// EventSink receives normalized call-ended events. The reconciler implements
// it; errors are logged but never surfaced to the provider.
type EventSink interface {
	HandleCallEnded(event CallEndedEvent) error
}
