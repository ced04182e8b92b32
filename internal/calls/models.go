package calls

import "time"

// CallRecord is the durable result of one placed call.
//
// Identity invariant: ProviderCallID is the stable external identity. The
// reconciler upserts by it, and re-delivery of the same provider event must
// leave the stored row unchanged. Aggregates are always recomputed from
// these rows, never incremented alongside them.
//
// Multi-tenant invariant: WorkspaceID is required on every row.
type CallRecord struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`
	CampaignID  string `json:"campaign_id" db:"campaign_id"`
	LeadID      string `json:"lead_id" db:"lead_id"`
	QueueItemID string `json:"queue_item_id,omitempty" db:"queue_item_id"`

	// ProviderCallID is the telephony provider's id for this call. Unique.
	ProviderCallID string `json:"provider_call_id" db:"provider_call_id"`

	PhoneNumber string  `json:"phone_number" db:"phone_number"`
	Outcome     Outcome `json:"outcome" db:"outcome"`

	// EndedReason is the raw provider end reason, kept for audit.
	EndedReason string `json:"ended_reason,omitempty" db:"ended_reason"`

	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	// CostMinor is the provider-reported cost in minor units (e.g. cents).
	CostMinor int64 `json:"cost_minor" db:"cost_minor"`

	Transcript   string `json:"transcript,omitempty" db:"transcript"`
	RecordingURL string `json:"recording_url,omitempty" db:"recording_url"`

	// QualificationScore is set asynchronously by the AI qualification
	// capability; nil until (and unless) it reports back.
	QualificationScore *int `json:"qualification_score,omitempty" db:"qualification_score"`

	StartedAt *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Outcome is the normalized classification of how a call ended.
type Outcome string

const (
	OutcomeAnswered           Outcome = "answered"
	OutcomeQuickHangup        Outcome = "quick_hangup"
	OutcomeCompleted          Outcome = "completed"
	OutcomeNoAnswer           Outcome = "no_answer"
	OutcomeBusy               Outcome = "busy"
	OutcomeVoicemail          Outcome = "voicemail"
	OutcomeFailed             Outcome = "failed"
	OutcomeProviderError      Outcome = "provider_error"
	OutcomeSystemError        Outcome = "system_error"
	OutcomeConfigurationError Outcome = "configuration_error"
	OutcomeUnknown            Outcome = "unknown"
)
