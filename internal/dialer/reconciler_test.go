package dialer

import (
	"context"
	"testing"
	"time"

	"dialer-platform/internal/calls"
	"dialer-platform/internal/campaign"
	"dialer-platform/internal/lead"
	"dialer-platform/internal/qualify"
	"dialer-platform/internal/queue"
	"dialer-platform/internal/telephony"
)

// seedInFlightCall prepares a calling queue item with a provider call id.
func seedInFlightCall(r *rig, leadID, providerCallID string) queue.Item {
	ctx := context.Background()
	item := r.seedDueItem(leadID)
	r.queue.MarkCalling(ctx, "ws-1", item.ID, fixedNow.Add(-5*time.Minute))
	r.queue.AttachProviderCall(ctx, "ws-1", item.ID, providerCallID)
	item, _ = r.queue.Get(ctx, "ws-1", item.ID)
	return item
}

func endedEvent(providerCallID string) telephony.CallEndedEvent {
	started := fixedNow.Add(-3 * time.Minute)
	ended := fixedNow.Add(-2 * time.Minute)
	return telephony.CallEndedEvent{
		WorkspaceID:     "ws-1",
		ProviderCallID:  providerCallID,
		PhoneNumber:     "+12125550100",
		EndedReason:     "customer-ended-call",
		DurationSeconds: 60,
		CostMinor:       35,
		Transcript:      "hi, yes I am interested",
		StartedAt:       &started,
		EndedAt:         &ended,
		Source:          "webhook",
	}
}

func TestReconcilerAppliesTerminalEvent(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	r.seedCampaign(campaign.StatusActive)
	r.seedLead("lead-1", "+12125550100")
	item := seedInFlightCall(r, "lead-1", "vapi-1")

	if err := r.reconciler.HandleCallEnded(endedEvent("vapi-1")); err != nil {
		t.Fatalf("handle: %v", err)
	}

	got, _ := r.queue.Get(ctx, "ws-1", item.ID)
	if got.Status != queue.StatusCompleted || got.LastOutcome != string(calls.OutcomeAnswered) {
		t.Fatalf("unexpected item after reconcile: %+v", got)
	}

	rec, err := r.calls.GetByProviderCallID(ctx, "ws-1", "vapi-1")
	if err != nil {
		t.Fatalf("call record: %v", err)
	}
	if rec.Outcome != calls.OutcomeAnswered || rec.DurationSeconds != 60 || rec.CostMinor != 35 {
		t.Fatalf("unexpected call record: %+v", rec)
	}
	// analyzer runs inline in tests; score 80 clears the default threshold
	if rec.QualificationScore == nil || *rec.QualificationScore != 80 {
		t.Fatalf("expected qualification score stored, got %v", rec.QualificationScore)
	}
	ld, _ := r.leads.Get(ctx, "ws-1", "lead-1")
	if ld.Status != lead.StatusQualified {
		t.Fatalf("expected qualified lead, got %s", ld.Status)
	}
}

func TestReconcilerDoubleDeliveryIsIdempotent(t *testing.T) {
	r := newRig()
	ctx := context.Background()

	c := r.seedCampaign(campaign.StatusActive)
	r.seedLead("lead-1", "+12125550100")
	item := seedInFlightCall(r, "lead-1", "vapi-1")

	event := endedEvent("vapi-1")
	event.EndedReason = "silence-timeout" // retryable outcome
	event.Transcript = ""

	if err := r.reconciler.HandleCallEnded(event); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	recAfterFirst, _ := r.calls.GetByProviderCallID(ctx, "ws-1", "vapi-1")
	pendingAfterFirst, _ := r.queue.CountPending(ctx, "ws-1", c.ID)

	if err := r.reconciler.HandleCallEnded(event); err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	recAfterSecond, _ := r.calls.GetByProviderCallID(ctx, "ws-1", "vapi-1")
	pendingAfterSecond, _ := r.queue.CountPending(ctx, "ws-1", c.ID)

	if recAfterFirst.ID != recAfterSecond.ID || recAfterFirst.Outcome != recAfterSecond.Outcome {
		t.Fatalf("call record changed on redelivery: %+v vs %+v", recAfterFirst, recAfterSecond)
	}
	if pendingAfterFirst != 1 || pendingAfterSecond != 1 {
		t.Fatalf("expected exactly one retry item regardless of redelivery, got %d then %d",
			pendingAfterFirst, pendingAfterSecond)
	}
	got, _ := r.queue.Get(ctx, "ws-1", item.ID)
	if got.Status != queue.StatusCompleted {
		t.Fatalf("item must stay completed, got %s", got.Status)
	}
}

func TestReconcilerSchedulesRetryForRetryableOutcome(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	r.seedCampaign(campaign.StatusActive)
	r.seedLead("lead-1", "+12125550100")
	seedInFlightCall(r, "lead-1", "vapi-1")

	event := endedEvent("vapi-1")
	event.EndedReason = "silence-timeout"
	event.Transcript = ""
	event.DurationSeconds = 0

	if err := r.reconciler.HandleCallEnded(event); err != nil {
		t.Fatalf("handle: %v", err)
	}

	due, _ := r.queue.DuePending(ctx, "ws-1", "camp-1", fixedNow.Add(3*time.Hour), 10)
	if len(due) != 1 {
		t.Fatalf("expected one retry item, got %d", len(due))
	}
	retry := due[0]
	if retry.AttemptNumber != 2 {
		t.Fatalf("expected attempt 2, got %d", retry.AttemptNumber)
	}
	if !retry.ScheduledFor.Equal(fixedNow.Add(2 * time.Hour)) {
		t.Fatalf("expected retry at now+2h, got %v", retry.ScheduledFor)
	}
}

func TestReconcilerMissingPhoneFallsBackToLead(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	r.seedCampaign(campaign.StatusActive)
	r.seedLead("lead-1", "+12125550100")
	seedInFlightCall(r, "lead-1", "vapi-1")

	event := endedEvent("vapi-1")
	event.PhoneNumber = ""

	if err := r.reconciler.HandleCallEnded(event); err != nil {
		t.Fatalf("handle: %v", err)
	}
	rec, _ := r.calls.GetByProviderCallID(ctx, "ws-1", "vapi-1")
	if rec.PhoneNumber != "+12125550100" {
		t.Fatalf("expected lead phone on record, got %q", rec.PhoneNumber)
	}
}

func TestReconcilerUnknownCallReturnsError(t *testing.T) {
	r := newRig()
	r.seedCampaign(campaign.StatusActive)

	if err := r.reconciler.HandleCallEnded(endedEvent("no-such-call")); err == nil {
		t.Fatal("expected error for unknown provider call id")
	}
}

func TestReconcilerLowScoreLeavesLeadContacted(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	r.seedCampaign(campaign.StatusActive)
	r.seedLead("lead-1", "+12125550100")
	seedInFlightCall(r, "lead-1", "vapi-1")
	r.reconciler.Analyzer = qualify.StaticAnalyzer{Result: qualify.ScoreResult{Score: 20}}

	if err := r.reconciler.HandleCallEnded(endedEvent("vapi-1")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	ld, _ := r.leads.Get(ctx, "ws-1", "lead-1")
	if ld.Status != lead.StatusContacted {
		t.Fatalf("expected contacted lead below threshold, got %s", ld.Status)
	}
}

func TestReconcilerAdjustsLineHealth(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	r.seedCampaign(campaign.StatusActive)
	r.seedLead("lead-1", "+12125550100")
	line := r.seedLine("line-1")

	item, _ := r.queue.Insert(ctx, queue.Item{
		WorkspaceID:   "ws-1",
		CampaignID:    "camp-1",
		LeadID:        "lead-1",
		PhoneLineID:   line.ID,
		AttemptNumber: 1,
		ScheduledFor:  fixedNow.Add(-10 * time.Minute),
	})
	r.queue.MarkCalling(ctx, "ws-1", item.ID, fixedNow.Add(-5*time.Minute))
	r.queue.AttachProviderCall(ctx, "ws-1", item.ID, "vapi-1")

	event := endedEvent("vapi-1")
	event.Transcript = ""
	if err := r.reconciler.HandleCallEnded(event); err != nil {
		t.Fatalf("handle: %v", err)
	}

	after, _ := r.lines.Get(ctx, "ws-1", line.ID)
	if after.HealthScore != line.HealthScore+2 {
		t.Fatalf("expected health +2 on answered call, got %d -> %d", line.HealthScore, after.HealthScore)
	}
}
