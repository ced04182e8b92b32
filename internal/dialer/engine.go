package dialer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dialer-platform/internal/campaign"
	"dialer-platform/internal/compliance"
	"dialer-platform/internal/lead"
	"dialer-platform/internal/phoneline"
	"dialer-platform/internal/queue"
)

// Engine is the periodic campaign scheduler. Each tick runs one cooperative
// pass over schedulable campaigns; a mutex guards against overlapping ticks
// in this process, and the campaign lease guards across processes.
type Engine struct {
	Campaigns  campaign.Repository
	Leads      lead.Repository
	Queue      queue.Repository
	Allocator  *phoneline.Allocator
	Gatekeeper *compliance.Gatekeeper
	Dispatcher *Dispatcher
	Selector   *lead.Selector
	Lease      Lease
	Logger     *slog.Logger

	TickInterval  time.Duration
	LeaseTTL      time.Duration
	DispatchDelay time.Duration
	BatchLimit    int

	Now   func() time.Time
	Sleep func(time.Duration)

	passMu sync.Mutex
}

const defaultBatchLimit = 25

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e *Engine) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if e.Sleep != nil {
		e.Sleep(d)
		return
	}
	time.Sleep(d)
}

// Run ticks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.TickInterval)
	defer ticker.Stop()

	e.Logger.InfoContext(ctx, "scheduler started", "tick_interval", e.TickInterval)
	for {
		select {
		case <-ctx.Done():
			e.Logger.InfoContext(ctx, "scheduler stopped")
			return
		case <-ticker.C:
			if err := e.RunOnce(ctx); err != nil {
				e.Logger.ErrorContext(ctx, "scheduler pass failed", "error", err)
			}
		}
	}
}

// RunOnce executes a single scheduler pass. A failure in one campaign is
// logged and does not abort the others.
func (e *Engine) RunOnce(ctx context.Context) error {
	if !e.passMu.TryLock() {
		// previous pass still running
		return nil
	}
	defer e.passMu.Unlock()

	campaigns, err := e.Campaigns.ListSchedulable(ctx)
	if err != nil {
		return fmt.Errorf("list schedulable campaigns: %w", err)
	}

	for _, camp := range campaigns {
		if err := e.processCampaign(ctx, camp); err != nil {
			e.Logger.ErrorContext(ctx, "campaign pass failed",
				"campaign_id", camp.ID, "workspace_id", camp.WorkspaceID, "error", err)
		}
	}
	return nil
}

func (e *Engine) processCampaign(ctx context.Context, camp campaign.Campaign) error {
	now := e.now()

	held, err := e.Lease.Acquire(ctx, camp.ID, e.LeaseTTL)
	if err != nil {
		return fmt.Errorf("acquire lease: %w", err)
	}
	if !held {
		// another scheduler instance owns this campaign right now
		return nil
	}

	switch camp.Status {
	case campaign.StatusScheduled:
		if camp.ScheduledAt != nil && camp.ScheduledAt.After(now) {
			return nil
		}
		started, err := e.startCampaign(ctx, camp, now)
		if err != nil {
			return err
		}
		camp = started
	case campaign.StatusActive:
		if err := e.ensureMaterialized(ctx, camp, now); err != nil {
			return err
		}
	}

	window := camp.Window()
	if window.Defaulted {
		e.Logger.WarnContext(ctx, "campaign has no calling window configured, using business-hours default",
			"campaign_id", camp.ID, "window", window.Start+"-"+window.End)
	}
	open, err := window.Contains(now)
	if err != nil {
		return fmt.Errorf("evaluate calling window: %w", err)
	}
	if !open {
		return nil
	}

	remaining, err := e.remainingDailyCap(ctx, camp, now)
	if err != nil {
		return err
	}
	if remaining <= 0 {
		return nil
	}

	limit := remaining
	if e.batchLimit() < limit {
		limit = e.batchLimit()
	}
	due, err := e.Queue.DuePending(ctx, camp.WorkspaceID, camp.ID, now, limit)
	if err != nil {
		return fmt.Errorf("pull due queue items: %w", err)
	}

	if len(due) == 0 {
		return e.completeIfDrained(ctx, camp, now)
	}

	inFlight, err := e.Queue.ListCallingLeadIDs(ctx, camp.WorkspaceID, camp.ID)
	if err != nil {
		return fmt.Errorf("list in-flight leads: %w", err)
	}

	dispatched := 0
	for _, item := range due {
		if inFlight[item.LeadID] {
			continue
		}
		done, err := e.dispatchItem(ctx, camp, item, now)
		if err != nil {
			if errors.Is(err, ErrConcurrencyLimited) || errors.Is(err, phoneline.ErrNoLineAvailable) {
				// no capacity left this tick; items stay pending
				return nil
			}
			e.Logger.ErrorContext(ctx, "dispatch failed",
				"campaign_id", camp.ID, "queue_item_id", item.ID, "error", err)
			continue
		}
		if done {
			inFlight[item.LeadID] = true
			dispatched++
			if dispatched < len(due) {
				e.sleep(e.DispatchDelay)
			}
		}
	}
	return nil
}

// startCampaign bulk-materializes the first attempt for every eligible lead
// and flips the campaign to active.
func (e *Engine) startCampaign(ctx context.Context, camp campaign.Campaign, now time.Time) (campaign.Campaign, error) {
	queued, err := e.materializeAttempts(ctx, camp, now)
	if err != nil {
		return camp, err
	}

	if err := e.Campaigns.UpdateStatus(ctx, camp.WorkspaceID, camp.ID, campaign.StatusScheduled, campaign.StatusActive, now); err != nil {
		return camp, fmt.Errorf("activate campaign: %w", err)
	}
	camp.Status = campaign.StatusActive
	e.Logger.InfoContext(ctx, "campaign started",
		"campaign_id", camp.ID, "queued_leads", queued)
	return camp, nil
}

// ensureMaterialized backfills first attempts for a campaign that was moved
// to active directly through the API, bypassing the scheduled start path. A
// campaign with any queue history is left alone.
func (e *Engine) ensureMaterialized(ctx context.Context, camp campaign.Campaign, now time.Time) error {
	total, err := e.Queue.CountByCampaign(ctx, camp.WorkspaceID, camp.ID)
	if err != nil {
		return fmt.Errorf("count queue items: %w", err)
	}
	if total > 0 {
		return nil
	}

	queued, err := e.materializeAttempts(ctx, camp, now)
	if err != nil {
		return err
	}
	if queued > 0 {
		e.Logger.InfoContext(ctx, "campaign attempts backfilled",
			"campaign_id", camp.ID, "queued_leads", queued)
	}
	return nil
}

func (e *Engine) materializeAttempts(ctx context.Context, camp campaign.Campaign, now time.Time) (int, error) {
	leads, err := e.Selector.Select(ctx, camp.WorkspaceID, camp.ID, camp.MaxAttempts(), 0x7fffffff)
	if err != nil {
		return 0, fmt.Errorf("select leads for start: %w", err)
	}

	items := make([]queue.Item, 0, len(leads))
	for _, ld := range leads {
		items = append(items, queue.Item{
			WorkspaceID:   camp.WorkspaceID,
			CampaignID:    camp.ID,
			LeadID:        ld.ID,
			AttemptNumber: 1,
			Status:        queue.StatusPending,
			ScheduledFor:  now,
			CreatedAt:     now,
		})
	}
	if err := e.Queue.BulkInsert(ctx, items); err != nil {
		return 0, fmt.Errorf("materialize queue items: %w", err)
	}
	return len(items), nil
}

func (e *Engine) remainingDailyCap(ctx context.Context, camp campaign.Campaign, now time.Time) (int, error) {
	if camp.DailyCallCap <= 0 {
		return e.batchLimit(), nil
	}

	loc, err := time.LoadLocation(camp.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	count, err := e.Queue.CountDispatchedSince(ctx, camp.WorkspaceID, camp.ID, dayStart.UTC())
	if err != nil {
		return 0, fmt.Errorf("count dispatched today: %w", err)
	}
	return camp.DailyCallCap - count, nil
}

// completeIfDrained flips an active campaign to completed once no pending
// work remains at all.
func (e *Engine) completeIfDrained(ctx context.Context, camp campaign.Campaign, now time.Time) error {
	if camp.Status != campaign.StatusActive {
		return nil
	}
	pending, err := e.Queue.CountPending(ctx, camp.WorkspaceID, camp.ID)
	if err != nil {
		return fmt.Errorf("count pending: %w", err)
	}
	if pending > 0 {
		return nil
	}

	inFlight, err := e.Queue.ListCallingLeadIDs(ctx, camp.WorkspaceID, camp.ID)
	if err != nil {
		return fmt.Errorf("list in-flight leads: %w", err)
	}
	if len(inFlight) > 0 {
		return nil
	}

	if err := e.Campaigns.UpdateStatus(ctx, camp.WorkspaceID, camp.ID, campaign.StatusActive, campaign.StatusCompleted, now); err != nil {
		if errors.Is(err, campaign.ErrInvalidTransition) {
			return nil
		}
		return fmt.Errorf("complete campaign: %w", err)
	}
	e.Logger.InfoContext(ctx, "campaign completed", "campaign_id", camp.ID)
	return nil
}

// dispatchItem runs the per-item gate chain: lead load, dnc flag, compliance
// check, line allocation, then hand-off to the dispatcher. Returns true when
// a call was actually placed.
func (e *Engine) dispatchItem(ctx context.Context, camp campaign.Campaign, item queue.Item, now time.Time) (bool, error) {
	ld, err := e.Leads.Get(ctx, camp.WorkspaceID, item.LeadID)
	if err != nil {
		return false, fmt.Errorf("load lead: %w", err)
	}
	if ld.DNCStatus {
		return false, nil
	}

	verdict, err := e.Gatekeeper.Check(ctx, compliance.Request{
		WorkspaceID: camp.WorkspaceID,
		CampaignID:  camp.ID,
		LeadID:      ld.ID,
		PhoneNumber: ld.Phone,
		LeadTZ:      ld.Timezone,
		CampaignTZ:  camp.Timezone,
		HasConsent:  ld.Status != lead.StatusNew,
	})
	if err != nil {
		return false, fmt.Errorf("compliance check: %w", err)
	}
	if !verdict.Allowed {
		return false, e.handleBlocked(ctx, camp, item, ld, verdict, now)
	}

	line, err := e.Allocator.Allocate(ctx, camp.WorkspaceID, camp.ID, camp.Timezone)
	if err != nil {
		return false, err
	}

	item.PhoneLineID = line.ID
	if err := e.Dispatcher.Dispatch(ctx, camp, item, ld, line); err != nil {
		return false, err
	}
	return true, nil
}

// handleBlocked reacts to a compliance denial. A DNC hit gates the lead out
// permanently; time-scoped blocks leave the item pending for a later tick.
func (e *Engine) handleBlocked(ctx context.Context, camp campaign.Campaign, item queue.Item, ld lead.Lead, verdict compliance.CheckResult, now time.Time) error {
	e.Logger.InfoContext(ctx, "dispatch blocked by compliance",
		"campaign_id", camp.ID,
		"lead_id", ld.ID,
		"reason", verdict.Reason,
		"blocked_until", verdict.BlockedUntil)

	if verdict.Reason != compliance.ReasonDNC {
		return nil
	}

	if err := e.Leads.UpdateStatus(ctx, camp.WorkspaceID, ld.ID, lead.StatusDoNotCall, now); err != nil {
		return fmt.Errorf("mark lead do_not_call: %w", err)
	}
	if err := e.Queue.Fail(ctx, camp.WorkspaceID, item.ID, string(queue.StatusFailed), now); err != nil && !errors.Is(err, queue.ErrStaleTransition) {
		return fmt.Errorf("fail dnc queue item: %w", err)
	}
	return nil
}

func (e *Engine) batchLimit() int {
	if e.BatchLimit > 0 {
		return e.BatchLimit
	}
	return defaultBatchLimit
}
