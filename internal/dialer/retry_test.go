package dialer

import (
	"context"
	"testing"
	"time"

	"dialer-platform/internal/campaign"
	"dialer-platform/internal/queue"
)

func retryCampaign() campaign.Campaign {
	return campaign.Campaign{
		ID:          "camp-1",
		WorkspaceID: "ws-1",
		Retry: campaign.RetryPolicy{
			Enabled:     true,
			MaxRetries:  2,
			DelayAmount: 3,
			DelayUnit:   "hours",
		},
	}
}

func terminalItem(attempt int) queue.Item {
	return queue.Item{
		ID:            "item-1",
		WorkspaceID:   "ws-1",
		CampaignID:    "camp-1",
		LeadID:        "lead-1",
		AttemptNumber: attempt,
		Status:        queue.StatusCompleted,
	}
}

func newRetryScheduler(q queue.Repository) *RetryScheduler {
	s := NewRetryScheduler(q, discardLogger())
	s.Now = func() time.Time { return fixedNow }
	return s
}

func TestRetryInsertsNewItemWithNextAttempt(t *testing.T) {
	repo := queue.NewMemoryRepository()
	s := newRetryScheduler(repo)

	queued, err := s.Schedule(context.Background(), retryCampaign(), terminalItem(1), "no_answer")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if !queued {
		t.Fatal("expected retry queued")
	}

	due, _ := repo.DuePending(context.Background(), "ws-1", "camp-1", fixedNow.Add(4*time.Hour), 10)
	if len(due) != 1 {
		t.Fatalf("expected 1 retry item, got %d", len(due))
	}
	got := due[0]
	if got.ID == "item-1" {
		t.Fatal("retry must be a new item, not a reopened one")
	}
	if got.AttemptNumber != 2 || got.Status != queue.StatusPending {
		t.Fatalf("unexpected retry item: %+v", got)
	}
	if !got.ScheduledFor.Equal(fixedNow.Add(3 * time.Hour)) {
		t.Fatalf("expected scheduled_for now+3h, got %v", got.ScheduledFor)
	}
}

func TestRetryDisabledPolicy(t *testing.T) {
	repo := queue.NewMemoryRepository()
	s := newRetryScheduler(repo)

	camp := retryCampaign()
	camp.Retry.Enabled = false

	queued, err := s.Schedule(context.Background(), camp, terminalItem(1), "no_answer")
	if err != nil || queued {
		t.Fatalf("expected no-op with retries disabled, queued=%v err=%v", queued, err)
	}
}

func TestRetryStopsAtMaxAttempts(t *testing.T) {
	repo := queue.NewMemoryRepository()
	s := newRetryScheduler(repo)

	// max retries 2: attempts 1 and 2 earn follow-ups, attempt 3 does not
	queued, _ := s.Schedule(context.Background(), retryCampaign(), terminalItem(2), "no_answer")
	if !queued {
		t.Fatal("attempt 2 of max-retries 2 must still retry")
	}
	queued, _ = s.Schedule(context.Background(), retryCampaign(), terminalItem(3), "no_answer")
	if queued {
		t.Fatal("attempt 3 must not retry: the lead would exceed max retries + 1 items")
	}
}

func TestRetrySkipsWhenAttemptAlreadyOpen(t *testing.T) {
	repo := queue.NewMemoryRepository()
	s := newRetryScheduler(repo)

	queued, err := s.Schedule(context.Background(), retryCampaign(), terminalItem(1), "no_answer")
	if err != nil || !queued {
		t.Fatalf("first schedule: queued=%v err=%v", queued, err)
	}

	// Same finished attempt reconciled a second time: the follow-up is
	// already open, so no second item may appear.
	queued, err = s.Schedule(context.Background(), retryCampaign(), terminalItem(1), "no_answer")
	if err != nil {
		t.Fatalf("second schedule: %v", err)
	}
	if queued {
		t.Fatal("duplicate reconciliation must not queue a second retry")
	}
	due, _ := repo.DuePending(context.Background(), "ws-1", "camp-1", fixedNow.Add(4*time.Hour), 10)
	if len(due) != 1 {
		t.Fatalf("expected a single open retry, got %d", len(due))
	}
}

func TestRetryRespectsOutcomeSet(t *testing.T) {
	repo := queue.NewMemoryRepository()
	s := newRetryScheduler(repo)

	queued, _ := s.Schedule(context.Background(), retryCampaign(), terminalItem(1), "completed")
	if queued {
		t.Fatal("completed outcome must not retry by default")
	}

	camp := retryCampaign()
	camp.Retry.Outcomes = map[string]bool{"no_answer": false}
	queued, _ = s.Schedule(context.Background(), camp, terminalItem(1), "no_answer")
	if queued {
		t.Fatal("explicitly disabled outcome must not retry")
	}
}

func TestRetryDayUnit(t *testing.T) {
	repo := queue.NewMemoryRepository()
	s := newRetryScheduler(repo)

	camp := retryCampaign()
	camp.Retry.DelayAmount = 1
	camp.Retry.DelayUnit = "days"

	if _, err := s.Schedule(context.Background(), camp, terminalItem(1), "busy"); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	due, _ := repo.DuePending(context.Background(), "ws-1", "camp-1", fixedNow.Add(25*time.Hour), 10)
	if len(due) != 1 || !due[0].ScheduledFor.Equal(fixedNow.Add(24*time.Hour)) {
		t.Fatalf("expected retry at now+24h, got %v", due)
	}
}
