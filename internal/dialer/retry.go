package dialer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dialer-platform/internal/campaign"
	"dialer-platform/internal/queue"
)

// RetryScheduler decides whether a finished attempt earns another one. A
// retry is always a NEW queue item with attempt+1; terminal items are never
// reopened, which preserves the full attempt lineage per lead.
type RetryScheduler struct {
	Queue  queue.Repository
	Logger *slog.Logger
	Now    func() time.Time
}

func NewRetryScheduler(q queue.Repository, logger *slog.Logger) *RetryScheduler {
	return &RetryScheduler{Queue: q, Logger: logger, Now: time.Now}
}

// Schedule inserts the follow-up item when policy allows. Returns true if a
// retry was queued.
func (s *RetryScheduler) Schedule(ctx context.Context, camp campaign.Campaign, item queue.Item, outcome string) (bool, error) {
	policy := camp.Retry
	if !policy.Enabled {
		return false, nil
	}
	// Attempt 1 is the original; retries run attempts 2..MaxRetries+1.
	if item.AttemptNumber > policy.MaxRetries {
		return false, nil
	}
	if !policy.Retryable(outcome) {
		return false, nil
	}

	// Sweeper and webhook can both reconcile the same call; the first one
	// through queues the retry, the second finds it already open.
	open, err := s.Queue.ExistsOpenAttempt(ctx, item.WorkspaceID, item.CampaignID, item.LeadID)
	if err != nil {
		return false, fmt.Errorf("check open attempt: %w", err)
	}
	if open {
		return false, nil
	}

	now := s.Now().UTC()
	next := queue.Item{
		WorkspaceID:   item.WorkspaceID,
		CampaignID:    item.CampaignID,
		LeadID:        item.LeadID,
		AttemptNumber: item.AttemptNumber + 1,
		Status:        queue.StatusPending,
		ScheduledFor:  now.Add(policy.Delay()),
		CreatedAt:     now,
	}

	inserted, err := s.Queue.Insert(ctx, next)
	if err != nil {
		return false, fmt.Errorf("queue retry attempt: %w", err)
	}
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "retry queued",
			"campaign_id", item.CampaignID,
			"lead_id", item.LeadID,
			"attempt", inserted.AttemptNumber,
			"outcome", outcome,
			"scheduled_for", inserted.ScheduledFor)
	}
	return true, nil
}
