package dialer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dialer-platform/internal/calls"
	"dialer-platform/internal/campaign"
	"dialer-platform/internal/lead"
	"dialer-platform/internal/phoneline"
	"dialer-platform/internal/qualify"
	"dialer-platform/internal/queue"
	"dialer-platform/internal/telephony"
)

// Reconciler consumes call-ended events. Delivery is at-least-once and
// unordered, so everything here is keyed on provider_call_id: the call
// record is an idempotent upsert, and the queue transition is conditional —
// a duplicate event finds the item already terminal and changes nothing,
// including the retry decision.
type Reconciler struct {
	Queue     queue.Repository
	Leads     lead.Repository
	Calls     calls.Repository
	Lines     phoneline.Repository
	Campaigns campaign.Repository
	Retry     *RetryScheduler
	Analyzer  qualify.Analyzer
	Logger    *slog.Logger

	Now func() time.Time

	// Async controls the qualification hand-off. True in production;
	// tests set it false to run inline.
	Async bool
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// HandleCallEnded implements telephony.EventSink.
func (r *Reconciler) HandleCallEnded(event telephony.CallEndedEvent) error {
	ctx := context.Background()
	now := r.now()

	item, err := r.Queue.GetByProviderCallID(ctx, event.WorkspaceID, event.ProviderCallID)
	if err != nil {
		return fmt.Errorf("queue item for call %s: %w", event.ProviderCallID, err)
	}

	ld, err := r.Leads.Get(ctx, event.WorkspaceID, item.LeadID)
	if err != nil {
		return fmt.Errorf("lead %s: %w", item.LeadID, err)
	}

	phone := event.PhoneNumber
	if phone == "" {
		phone = ld.Phone
		r.warn(ctx, "event missing phone number, using stored lead contact",
			"provider_call_id", event.ProviderCallID, "lead_id", ld.ID)
	} else if phone != ld.Phone {
		r.warn(ctx, "event phone number differs from stored lead contact",
			"provider_call_id", event.ProviderCallID, "event_number", phone, "lead_number", ld.Phone)
	}

	outcome := ClassifyOutcome(event.EndedReason, event.DurationSeconds, event.Transcript != "")

	record := calls.CallRecord{
		WorkspaceID:     event.WorkspaceID,
		CampaignID:      item.CampaignID,
		LeadID:          item.LeadID,
		QueueItemID:     item.ID,
		ProviderCallID:  event.ProviderCallID,
		PhoneNumber:     phone,
		Outcome:         outcome,
		EndedReason:     event.EndedReason,
		DurationSeconds: event.DurationSeconds,
		CostMinor:       event.CostMinor,
		Transcript:      event.Transcript,
		RecordingURL:    event.RecordingURL,
		StartedAt:       event.StartedAt,
		EndedAt:         event.EndedAt,
	}
	if _, err := r.Calls.Upsert(ctx, record); err != nil {
		return fmt.Errorf("upsert call record: %w", err)
	}

	// Conditional transition: only the first delivery wins. Everything
	// after this point runs once per call, not once per delivery.
	if err := r.Queue.Complete(ctx, event.WorkspaceID, item.ID, string(outcome), now); err != nil {
		if errors.Is(err, queue.ErrStaleTransition) {
			r.info(ctx, "duplicate call ended event ignored",
				"provider_call_id", event.ProviderCallID, "queue_item_id", item.ID)
			return nil
		}
		return fmt.Errorf("complete queue item: %w", err)
	}

	if err := r.Leads.UpdateStatus(ctx, event.WorkspaceID, ld.ID, leadStatusFor(outcome), now); err != nil {
		r.warn(ctx, "lead status not updated after call", "lead_id", ld.ID, "error", err)
	}

	if item.PhoneLineID != "" {
		if err := r.Lines.AdjustHealth(ctx, event.WorkspaceID, item.PhoneLineID, healthDeltaFor(outcome)); err != nil {
			r.warn(ctx, "line health not adjusted", "phone_line_id", item.PhoneLineID, "error", err)
		}
	}

	camp, err := r.Campaigns.Get(ctx, event.WorkspaceID, item.CampaignID)
	if err != nil {
		return fmt.Errorf("campaign %s: %w", item.CampaignID, err)
	}
	if _, err := r.Retry.Schedule(ctx, camp, item, string(outcome)); err != nil {
		r.warn(ctx, "retry not scheduled", "queue_item_id", item.ID, "error", err)
	}

	if event.Transcript != "" && r.Analyzer != nil {
		if r.Async {
			go r.qualifyLead(context.Background(), camp, ld, event)
		} else {
			r.qualifyLead(ctx, camp, ld, event)
		}
	}

	r.info(ctx, "call reconciled",
		"provider_call_id", event.ProviderCallID,
		"campaign_id", item.CampaignID,
		"lead_id", ld.ID,
		"outcome", outcome,
		"source", event.Source)
	return nil
}

// qualifyLead is the fire-and-forget hand-off to the external scoring
// capability. Its result flows back through the call record and lead status.
func (r *Reconciler) qualifyLead(ctx context.Context, camp campaign.Campaign, ld lead.Lead, event telephony.CallEndedEvent) {
	result, err := r.Analyzer.Score(ctx, qualify.ScoreRequest{
		WorkspaceID: camp.WorkspaceID,
		CampaignID:  camp.ID,
		LeadID:      ld.ID,
		Transcript:  event.Transcript,
	})
	if err != nil {
		r.warn(ctx, "transcript qualification failed", "lead_id", ld.ID, "error", err)
		return
	}

	if err := r.Calls.SetQualificationScore(ctx, camp.WorkspaceID, event.ProviderCallID, result.Score); err != nil {
		r.warn(ctx, "qualification score not stored", "provider_call_id", event.ProviderCallID, "error", err)
	}

	threshold := camp.QualifiedScoreThreshold
	if threshold <= 0 {
		threshold = 70
	}
	if result.Score >= threshold {
		if err := r.Leads.UpdateStatus(ctx, camp.WorkspaceID, ld.ID, lead.StatusQualified, r.now()); err != nil {
			r.warn(ctx, "lead not marked qualified", "lead_id", ld.ID, "error", err)
			return
		}
		r.info(ctx, "lead qualified", "lead_id", ld.ID, "score", result.Score)
	}
}

// leadStatusFor maps the normalized outcome to the lead's next status. The
// qualification hand-off may lift contacted to qualified afterwards;
// do_not_call is only ever set through the dnc gate, never here.
func leadStatusFor(outcome calls.Outcome) lead.Status {
	switch outcome {
	case calls.OutcomeAnswered, calls.OutcomeCompleted, calls.OutcomeQuickHangup:
		return lead.StatusContacted
	case calls.OutcomeNoAnswer, calls.OutcomeBusy, calls.OutcomeVoicemail:
		return lead.StatusContacted
	case calls.OutcomeFailed, calls.OutcomeProviderError, calls.OutcomeSystemError, calls.OutcomeConfigurationError:
		return lead.StatusFailed
	default:
		return lead.StatusContacted
	}
}

func healthDeltaFor(outcome calls.Outcome) int {
	switch outcome {
	case calls.OutcomeAnswered, calls.OutcomeCompleted:
		return 2
	case calls.OutcomeNoAnswer, calls.OutcomeBusy:
		return -1
	case calls.OutcomeProviderError:
		return -5
	default:
		return 0
	}
}

func (r *Reconciler) warn(ctx context.Context, msg string, args ...any) {
	if r.Logger != nil {
		r.Logger.WarnContext(ctx, msg, args...)
	}
}

func (r *Reconciler) info(ctx context.Context, msg string, args ...any) {
	if r.Logger != nil {
		r.Logger.InfoContext(ctx, msg, args...)
	}
}
