package dialer

import (
	"context"
	"testing"
	"time"

	"dialer-platform/internal/campaign"
	"dialer-platform/internal/lead"
	"dialer-platform/internal/queue"
)

func TestEngineDispatchesDueItem(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	r.seedCampaign(campaign.StatusActive)
	r.seedLead("lead-1", "+12125550100")
	r.seedLine("line-1")
	item := r.seedDueItem("lead-1")

	if err := r.engine.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	got, _ := r.queue.Get(ctx, "ws-1", item.ID)
	if got.Status != queue.StatusCalling {
		t.Fatalf("expected item calling, got %s", got.Status)
	}
	if got.ProviderCallID == "" {
		t.Fatal("expected provider call id attached")
	}
	ld, _ := r.leads.Get(ctx, "ws-1", "lead-1")
	if ld.Status != lead.StatusCalling || ld.AttemptCount != 1 {
		t.Fatalf("unexpected lead after dispatch: status=%s attempts=%d", ld.Status, ld.AttemptCount)
	}
	if r.client.placedCount() != 1 {
		t.Fatalf("expected 1 placed call, got %d", r.client.placedCount())
	}
}

func TestEngineStartsScheduledCampaign(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	c := r.seedCampaign(campaign.StatusScheduled)
	startAt := fixedNow.Add(-time.Minute)
	c.ScheduledAt = &startAt
	r.campaigns.Put(c)

	r.seedLead("lead-1", "+12125550100")
	r.seedLead("lead-2", "+12125550101")
	r.seedLine("line-1")

	if err := r.engine.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	got, _ := r.campaigns.Get(ctx, "ws-1", "camp-1")
	if got.Status != campaign.StatusActive {
		t.Fatalf("expected campaign active, got %s", got.Status)
	}
	// both leads materialized; dispatch happens in the same pass
	if r.client.placedCount() == 0 {
		t.Fatal("expected materialized items to be dispatched")
	}
}

func TestEngineBackfillsOperatorStartedCampaign(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	// moved straight to active through the API, so no queue items exist yet
	r.seedCampaign(campaign.StatusActive)
	r.seedLead("lead-1", "+12125550100")
	r.seedLine("line-1")

	if err := r.engine.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	if r.client.placedCount() != 1 {
		t.Fatalf("expected backfilled attempt dispatched, got %d calls", r.client.placedCount())
	}
	got, _ := r.campaigns.Get(ctx, "ws-1", "camp-1")
	if got.Status != campaign.StatusActive {
		t.Fatalf("campaign with work left must stay active, got %s", got.Status)
	}

	// a later pass must not queue the lead a second time
	if err := r.engine.RunOnce(ctx); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if n, _ := r.queue.CountByCampaign(ctx, "ws-1", "camp-1"); n != 1 {
		t.Fatalf("expected a single materialized item, got %d", n)
	}
}

func TestEngineSkipsScheduledCampaignBeforeStart(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	c := r.seedCampaign(campaign.StatusScheduled)
	startAt := fixedNow.Add(time.Hour)
	c.ScheduledAt = &startAt
	r.campaigns.Put(c)
	r.seedLead("lead-1", "+12125550100")
	r.seedLine("line-1")

	if err := r.engine.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	got, _ := r.campaigns.Get(ctx, "ws-1", "camp-1")
	if got.Status != campaign.StatusScheduled {
		t.Fatalf("campaign must stay scheduled, got %s", got.Status)
	}
	if n, _ := r.queue.CountPending(ctx, "ws-1", "camp-1"); n != 0 {
		t.Fatalf("no items should be materialized, got %d", n)
	}
}

func TestEngineOutsideWindowDispatchesNothing(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	r.seedCampaign(campaign.StatusActive)
	r.seedLead("lead-1", "+12125550100")
	r.seedLine("line-1")
	r.seedDueItem("lead-1")

	// 01:00 UTC Wednesday = 20:00 Tuesday in New York, outside 09:00-17:00.
	late := time.Date(2023, 11, 15, 1, 0, 0, 0, time.UTC)
	r.engine.Now = func() time.Time { return late }

	if err := r.engine.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if r.client.placedCount() != 0 {
		t.Fatalf("expected zero dispatches outside window, got %d", r.client.placedCount())
	}
}

func TestEngineHonorsDailyCap(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	c := r.seedCampaign(campaign.StatusActive)
	c.DailyCallCap = 1
	r.campaigns.Put(c)

	r.seedLead("lead-1", "+12125550100")
	r.seedLead("lead-2", "+12125550101")
	r.seedLine("line-1")
	r.seedDueItem("lead-1")
	r.seedDueItem("lead-2")

	if err := r.engine.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if r.client.placedCount() != 1 {
		t.Fatalf("expected 1 dispatch under cap, got %d", r.client.placedCount())
	}

	// next pass the same day: cap already consumed
	if err := r.engine.RunOnce(ctx); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if r.client.placedCount() != 1 {
		t.Fatalf("cap must hold across passes, got %d dispatches", r.client.placedCount())
	}
}

func TestEngineSkipsCampaignWhenLeaseHeldElsewhere(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	r.seedCampaign(campaign.StatusActive)
	r.seedLead("lead-1", "+12125550100")
	r.seedLine("line-1")
	r.seedDueItem("lead-1")

	r.engine.Lease = &foreignLease{}

	if err := r.engine.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if r.client.placedCount() != 0 {
		t.Fatal("campaign under a foreign lease must be skipped")
	}
}

// foreignLease always reports the lease as held by someone else.
type foreignLease struct{}

func (l *foreignLease) Acquire(ctx context.Context, campaignID string, ttl time.Duration) (bool, error) {
	return false, nil
}
func (l *foreignLease) Release(ctx context.Context, campaignID string) error { return nil }

func TestEngineCompletesDrainedCampaign(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	r.seedCampaign(campaign.StatusActive)
	r.seedLine("line-1")

	if err := r.engine.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}
	got, _ := r.campaigns.Get(ctx, "ws-1", "camp-1")
	if got.Status != campaign.StatusCompleted {
		t.Fatalf("expected campaign completed, got %s", got.Status)
	}
}

func TestEngineDoesNotCompleteWithInFlightCalls(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	r.seedCampaign(campaign.StatusActive)
	r.seedLead("lead-1", "+12125550100")
	item := r.seedDueItem("lead-1")
	r.queue.MarkCalling(ctx, "ws-1", item.ID, fixedNow)

	if err := r.engine.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}
	got, _ := r.campaigns.Get(ctx, "ws-1", "camp-1")
	if got.Status != campaign.StatusActive {
		t.Fatalf("campaign with in-flight call must stay active, got %s", got.Status)
	}
}

func TestEngineDNCLeadBlockedAndGated(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	r.seedCampaign(campaign.StatusActive)
	r.seedLead("lead-1", "+12125550100")
	r.seedLine("line-1")
	item := r.seedDueItem("lead-1")
	r.dnc.Add("ws-1", "+12125550100")

	if err := r.engine.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	if r.client.placedCount() != 0 {
		t.Fatal("dnc-listed lead must not be called")
	}
	ld, _ := r.leads.Get(ctx, "ws-1", "lead-1")
	if ld.Status != lead.StatusDoNotCall {
		t.Fatalf("expected lead gated out, got %s", ld.Status)
	}
	got, _ := r.queue.Get(ctx, "ws-1", item.ID)
	if got.Status != queue.StatusFailed {
		t.Fatalf("expected dnc item failed, got %s", got.Status)
	}
	entries, _ := r.compLog.ListByCampaign(ctx, "ws-1", "camp-1", 10)
	if len(entries) != 1 || entries[0].Allowed {
		t.Fatalf("expected one blocked compliance entry, got %v", entries)
	}
}

func TestEngineNoLineAvailableLeavesItemsPending(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	r.seedCampaign(campaign.StatusActive)
	r.seedLead("lead-1", "+12125550100")
	item := r.seedDueItem("lead-1")
	// no line seeded at all

	if err := r.engine.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}
	got, _ := r.queue.Get(ctx, "ws-1", item.ID)
	if got.Status != queue.StatusPending {
		t.Fatalf("item must stay pending without line capacity, got %s", got.Status)
	}
}

func TestEngineSkipsLeadWithInFlightAttempt(t *testing.T) {
	r := newRig()
	ctx := context.Background()
	r.seedCampaign(campaign.StatusActive)
	r.seedLead("lead-1", "+12125550100")
	r.seedLine("line-1")

	calling := r.seedDueItem("lead-1")
	r.queue.MarkCalling(ctx, "ws-1", calling.ID, fixedNow.Add(-time.Minute))
	pending := r.seedDueItem("lead-1")

	if err := r.engine.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}
	got, _ := r.queue.Get(ctx, "ws-1", pending.ID)
	if got.Status != queue.StatusPending {
		t.Fatalf("second attempt for in-flight lead must wait, got %s", got.Status)
	}
	if r.client.placedCount() != 0 {
		t.Fatal("no call should be placed while the lead is in flight")
	}
}
