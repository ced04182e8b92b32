package telephony

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Client is the provider-agnostic interface for placing and inspecting
// outbound AI voice calls.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - All requests are workspace-scoped.
// - Provider raw payloads stay inside the adapter.
type Client interface {
	Name() string

	// PlaceCall starts an outbound call. Errors are classified: a
	// *PlacementError with Transient=true may be retried by the caller,
	// anything else is final for this attempt.
	PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error)

	// GetCall fetches the provider's current view of a call, used when a
	// terminal webhook never arrived.
	GetCall(ctx context.Context, workspaceID, providerCallID string) (CallInfo, error)
}

// PlaceCallRequest describes one outbound dial.
type PlaceCallRequest struct {
	WorkspaceID string `json:"workspace_id"`
	CampaignID  string `json:"campaign_id"`
	QueueItemID string `json:"queue_item_id"`

	AssistantID string `json:"assistant_id"`
	// FromLineID is the provider's id for the outbound line.
	FromLineID string `json:"from_line_id"`
	// ToNumber is E.164.
	ToNumber string `json:"to_number"`

	LeadName string `json:"lead_name,omitempty"`
}

type PlaceCallResult struct {
	ProviderCallID string    `json:"provider_call_id"`
	StartedAt      time.Time `json:"started_at"`
}

// CallInfo is the provider's view of a call, pulled by GetCall.
type CallInfo struct {
	ProviderCallID  string     `json:"provider_call_id"`
	Status          string     `json:"status"` // queued, ringing, in-progress, ended
	EndedReason     string     `json:"ended_reason,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
	CostMinor       int64      `json:"cost_minor"`
	Transcript      string     `json:"transcript,omitempty"`
	RecordingURL    string     `json:"recording_url,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
}

// Ended reports whether the provider considers the call finished.
func (c CallInfo) Ended() bool {
	return c.Status == "ended"
}

// PlacementError classifies a failed PlaceCall. Transient errors (rate
// limits, 5xx, network) may be retried; the rest (bad number, auth,
// misconfigured assistant) are final.
type PlacementError struct {
	Code      string
	Message   string
	Transient bool
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("call placement failed (%s): %s", e.Code, e.Message)
}

// IsTransient reports whether err is a retryable placement failure.
func IsTransient(err error) bool {
	var pe *PlacementError
	return errors.As(err, &pe) && pe.Transient
}
