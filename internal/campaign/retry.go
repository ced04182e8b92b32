package campaign

import "time"

// RetryPolicy controls outcome-driven retries.
//
// Outcomes maps an outcome name (calls.Outcome value) to whether it is
// retryable for this campaign. Outcomes absent from the map fall back to
// conservative defaults: transient outcomes (no answer, busy, voicemail,
// failed, quick hangup, provider/system error) retry; everything else does
// not.
type RetryPolicy struct {
	Enabled     bool            `json:"enabled"`
	MaxRetries  int             `json:"max_retries"`
	DelayAmount int             `json:"delay_amount"`
	DelayUnit   string          `json:"delay_unit"` // hours | days
	Outcomes    map[string]bool `json:"outcomes,omitempty"`
}

var defaultRetryable = map[string]bool{
	"no_answer":      true,
	"busy":           true,
	"voicemail":      true,
	"failed":         true,
	"quick_hangup":   true,
	"provider_error": true,
	"system_error":   true,
}

// Retryable reports whether the given outcome should be retried. Explicit
// configuration wins; unconfigured outcomes use the safe defaults above.
func (p RetryPolicy) Retryable(outcome string) bool {
	if v, ok := p.Outcomes[outcome]; ok {
		return v
	}
	return defaultRetryable[outcome]
}

// MaxAttempts is the total attempts a lead may receive: the original call
// plus up to MaxRetries follow-ups.
func (c Campaign) MaxAttempts() int {
	if !c.Retry.Enabled {
		return 1
	}
	return c.Retry.MaxRetries + 1
}

// Delay resolves the configured retry delay. Unknown units are treated as
// hours, matching how the delay was always interpreted upstream.
func (p RetryPolicy) Delay() time.Duration {
	amount := p.DelayAmount
	if amount <= 0 {
		amount = 1
	}
	switch p.DelayUnit {
	case "days":
		return time.Duration(amount) * 24 * time.Hour
	default:
		return time.Duration(amount) * time.Hour
	}
}
