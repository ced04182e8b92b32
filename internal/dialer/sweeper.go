package dialer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dialer-platform/internal/lead"
	"dialer-platform/internal/queue"
	"dialer-platform/internal/telephony"
)

// Sweeper is the safety net for outcome events that never arrive. Items
// stuck in calling past the timeout first get one pull from the provider;
// if that yields a finished call the normal reconciliation path runs, else
// the item is force-failed. The conditional queue transition guarantees the
// force-fail applies exactly once even when sweeps overlap.
type Sweeper struct {
	Queue      queue.Repository
	Leads      lead.Repository
	Client     telephony.Client
	Reconciler *Reconciler
	Logger     *slog.Logger

	Interval time.Duration
	Timeout  time.Duration
	Limit    int

	Now func() time.Time
}

const defaultSweepLimit = 100

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Logger.InfoContext(ctx, "stale sweeper started", "interval", s.Interval, "timeout", s.Timeout)
	for {
		select {
		case <-ctx.Done():
			s.Logger.InfoContext(ctx, "stale sweeper stopped")
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.Logger.ErrorContext(ctx, "sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce processes one batch of stale items.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	now := s.now()
	limit := s.Limit
	if limit <= 0 {
		limit = defaultSweepLimit
	}

	stale, err := s.Queue.ListStaleCalling(ctx, now.Add(-s.Timeout), limit)
	if err != nil {
		return fmt.Errorf("list stale items: %w", err)
	}

	for _, item := range stale {
		if err := s.sweepItem(ctx, item, now); err != nil {
			s.Logger.ErrorContext(ctx, "stale item not resolved",
				"queue_item_id", item.ID, "error", err)
		}
	}
	return nil
}

func (s *Sweeper) sweepItem(ctx context.Context, item queue.Item, now time.Time) error {
	// Pull fallback: the webhook may simply have been lost.
	if item.ProviderCallID != "" && s.Client != nil {
		info, err := s.Client.GetCall(ctx, item.WorkspaceID, item.ProviderCallID)
		if err == nil && info.Ended() {
			event := telephony.CallEndedEvent{
				WorkspaceID:     item.WorkspaceID,
				ProviderCallID:  item.ProviderCallID,
				EndedReason:     info.EndedReason,
				DurationSeconds: info.DurationSeconds,
				CostMinor:       info.CostMinor,
				Transcript:      info.Transcript,
				RecordingURL:    info.RecordingURL,
				StartedAt:       info.StartedAt,
				EndedAt:         info.EndedAt,
				Source:          "sweeper",
			}
			s.Logger.InfoContext(ctx, "stale item recovered from provider",
				"queue_item_id", item.ID, "provider_call_id", item.ProviderCallID)
			return s.Reconciler.HandleCallEnded(event)
		}
		if err != nil {
			s.Logger.WarnContext(ctx, "provider pull failed, force-failing item",
				"queue_item_id", item.ID, "error", err)
		}
	}

	if err := s.Queue.Fail(ctx, item.WorkspaceID, item.ID, "system_error", now); err != nil {
		if errors.Is(err, queue.ErrStaleTransition) {
			// another sweep or a late event beat us to it
			return nil
		}
		return fmt.Errorf("force-fail stale item: %w", err)
	}
	s.Logger.WarnContext(ctx, "stale item force-failed",
		"queue_item_id", item.ID,
		"campaign_id", item.CampaignID,
		"dispatched_at", item.DispatchedAt)

	if err := s.Leads.UpdateStatus(ctx, item.WorkspaceID, item.LeadID, lead.StatusContacted, now); err != nil {
		s.Logger.WarnContext(ctx, "lead status not reset after force-fail",
			"lead_id", item.LeadID, "error", err)
	}
	return nil
}
