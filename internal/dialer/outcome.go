package dialer

import (
	"strings"

	"dialer-platform/internal/calls"
)

// Outcome classification is a total, ordered decision table. Every branch
// resolves; nothing falls through undefined.
//
// Order:
//  1. end-reason mapping (with the 30s quick-hangup split on customer hangup)
//  2. unmapped reason: duration fallback (>10s answered, else no_answer)
//  3. transcript present: answered
//  4. unknown
const (
	quickHangupSeconds      = 30
	answeredFallbackSeconds = 10
)

// ClassifyOutcome maps a provider end reason, call duration, and transcript
// presence to a normalized outcome.
func ClassifyOutcome(endedReason string, durationSeconds int, hasTranscript bool) calls.Outcome {
	reason := strings.ToLower(strings.TrimSpace(endedReason))

	switch {
	case reason == "customer-ended-call" || reason == "customer-hung-up":
		if durationSeconds <= quickHangupSeconds {
			return calls.OutcomeQuickHangup
		}
		return calls.OutcomeAnswered

	case reason == "assistant-ended-call" || reason == "exceeded-max-duration":
		return calls.OutcomeCompleted

	case reason == "silence-timeout" || reason == "customer-did-not-answer" || reason == "no-answer":
		return calls.OutcomeNoAnswer

	case reason == "customer-busy" || reason == "busy":
		return calls.OutcomeBusy

	case reason == "voicemail" || reason == "answering-machine":
		return calls.OutcomeVoicemail

	case strings.HasPrefix(reason, "assistant-request") || strings.Contains(reason, "invalid-assistant") ||
		strings.Contains(reason, "misconfigur") || strings.HasPrefix(reason, "assistant-not"):
		return calls.OutcomeConfigurationError

	case strings.HasPrefix(reason, "twilio-") || strings.HasPrefix(reason, "phone-call-provider"):
		return calls.OutcomeProviderError

	case strings.HasPrefix(reason, "pipeline-error") || strings.HasPrefix(reason, "call.start.error") ||
		reason == "database-error" || reason == "worker-shutdown":
		return calls.OutcomeSystemError

	case reason != "":
		// unmapped reason: fall back to duration
		if durationSeconds > answeredFallbackSeconds {
			return calls.OutcomeAnswered
		}
		return calls.OutcomeNoAnswer

	case hasTranscript:
		return calls.OutcomeAnswered

	default:
		return calls.OutcomeUnknown
	}
}
