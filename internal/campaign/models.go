package campaign

import "time"

// Campaign is an outbound calling campaign.
//
// Multi-tenant invariant: WorkspaceID is required on every row.
//
// Concurrency invariant: at most one scheduler instance may actively process
// a campaign at any moment. That is enforced by the campaign lease
// (internal/dialer), not by anything on this struct.
type Campaign struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`

	Name   string `json:"name" db:"name"`
	Status Status `json:"status" db:"status"`

	// AssistantID references the AI voice assistant used for calls.
	AssistantID string `json:"assistant_id" db:"assistant_id"`

	// Working-hours window. Timezone is an IANA name; Start/End are "HH:MM"
	// in that zone. Empty values fall back to the documented default
	// (see Window) — a runtime fallback warned about by the scheduler,
	// not a silent bug.
	Timezone        string `json:"timezone" db:"timezone"`
	CallWindowStart string `json:"call_window_start" db:"call_window_start"`
	CallWindowEnd   string `json:"call_window_end" db:"call_window_end"`

	// WorkingDays is a bitmask, bit 0 = Sunday ... bit 6 = Saturday.
	// Zero means "not configured".
	WorkingDays int `json:"working_days" db:"working_days"`

	// DailyCallCap bounds calls started per local calendar day. Zero means
	// no cap.
	DailyCallCap int `json:"daily_call_cap" db:"daily_call_cap"`

	Retry RetryPolicy `json:"retry" db:"-"`

	// QualifiedScoreThreshold is the minimum AI qualification score that
	// marks a lead qualified.
	QualifiedScoreThreshold int `json:"qualified_score_threshold" db:"qualified_score_threshold"`

	ScheduledAt *time.Time `json:"scheduled_at,omitempty" db:"scheduled_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed" // terminal
)

// Schedulable reports whether the scheduler should consider this campaign
// at all on a tick.
func (s Status) Schedulable() bool {
	return s == StatusScheduled || s == StatusActive
}

// CanTransition validates the campaign lifecycle:
// draft/scheduled -> active -> paused <-> active -> completed.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusDraft:
		return to == StatusScheduled || to == StatusActive
	case StatusScheduled:
		return to == StatusActive || to == StatusPaused
	case StatusActive:
		return to == StatusPaused || to == StatusCompleted
	case StatusPaused:
		return to == StatusActive || to == StatusCompleted
	case StatusCompleted:
		return false
	default:
		return false
	}
}

// DayEnabled reports whether the bitmask enables the given weekday.
func (c Campaign) DayEnabled(d time.Weekday) bool {
	return c.WorkingDays&(1<<uint(d)) != 0
}

// WeekdayMask builds a WorkingDays bitmask from weekdays.
func WeekdayMask(days ...time.Weekday) int {
	m := 0
	for _, d := range days {
		m |= 1 << uint(d)
	}
	return m
}
