package dialer

import (
	"context"
	"errors"
	"testing"
	"time"

	"dialer-platform/internal/calls"
	"dialer-platform/internal/campaign"
	"dialer-platform/internal/queue"
	"dialer-platform/internal/telephony"
)

func seedStaleCall(r *rig, leadID, providerCallID string, age time.Duration) queue.Item {
	ctx := context.Background()
	item := r.seedDueItem(leadID)
	r.queue.MarkCalling(ctx, "ws-1", item.ID, fixedNow.Add(-age))
	if providerCallID != "" {
		r.queue.AttachProviderCall(ctx, "ws-1", item.ID, providerCallID)
	}
	item, _ = r.queue.Get(ctx, "ws-1", item.ID)
	return item
}

func TestSweeperForceFailsStaleItemOnce(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	r.seedCampaign(campaign.StatusActive)
	r.seedLead("lead-1", "+12125550100")
	item := seedStaleCall(r, "lead-1", "vapi-1", time.Hour)
	r.client.getErr = errors.New("provider unreachable")

	if err := r.sweeper.SweepOnce(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	got, _ := r.queue.Get(ctx, "ws-1", item.ID)
	if got.Status != queue.StatusFailed || got.LastOutcome != "system_error" {
		t.Fatalf("expected force-failed item, got %+v", got)
	}

	// a second sweep finds it terminal and leaves it alone
	if err := r.sweeper.SweepOnce(ctx); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	again, _ := r.queue.Get(ctx, "ws-1", item.ID)
	if !again.CompletedAt.Equal(*got.CompletedAt) {
		t.Fatal("force-fail must apply exactly once")
	}
}

func TestSweeperRecoversOutcomeFromProvider(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	r.seedCampaign(campaign.StatusActive)
	r.seedLead("lead-1", "+12125550100")
	item := seedStaleCall(r, "lead-1", "vapi-1", time.Hour)

	started := fixedNow.Add(-time.Hour)
	ended := fixedNow.Add(-58 * time.Minute)
	r.client.getInfo = telephony.CallInfo{
		ProviderCallID:  "vapi-1",
		Status:          "ended",
		EndedReason:     "customer-ended-call",
		DurationSeconds: 120,
		StartedAt:       &started,
		EndedAt:         &ended,
	}

	if err := r.sweeper.SweepOnce(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	got, _ := r.queue.Get(ctx, "ws-1", item.ID)
	if got.Status != queue.StatusCompleted || got.LastOutcome != string(calls.OutcomeAnswered) {
		t.Fatalf("expected recovered completion, got %+v", got)
	}
	rec, err := r.calls.GetByProviderCallID(ctx, "ws-1", "vapi-1")
	if err != nil {
		t.Fatalf("call record: %v", err)
	}
	if rec.Outcome != calls.OutcomeAnswered {
		t.Fatalf("unexpected recovered outcome: %s", rec.Outcome)
	}
}

func TestSweeperLeavesFreshItemsAlone(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	r.seedCampaign(campaign.StatusActive)
	r.seedLead("lead-1", "+12125550100")
	item := seedStaleCall(r, "lead-1", "vapi-1", 5*time.Minute)

	if err := r.sweeper.SweepOnce(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	got, _ := r.queue.Get(ctx, "ws-1", item.ID)
	if got.Status != queue.StatusCalling {
		t.Fatalf("fresh in-flight item must not be swept, got %s", got.Status)
	}
}

func TestSweeperForceFailsItemWithoutProviderID(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	r.seedCampaign(campaign.StatusActive)
	r.seedLead("lead-1", "+12125550100")
	item := seedStaleCall(r, "lead-1", "", time.Hour)

	if err := r.sweeper.SweepOnce(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	got, _ := r.queue.Get(ctx, "ws-1", item.ID)
	if got.Status != queue.StatusFailed {
		t.Fatalf("expected force-failed item, got %s", got.Status)
	}
}
