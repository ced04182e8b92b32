package lead

import (
	"context"
	"testing"
	"time"
)

var fixedNow = time.Unix(1700000000, 0).UTC()

func seedLead(id string, status Status, priority int, created time.Time) Lead {
	return Lead{
		ID:            id,
		WorkspaceID:   "ws-1",
		CampaignID:    "camp-1",
		FirstName:     "Test",
		Phone:         "+15551230000",
		Status:        status,
		PriorityScore: priority,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func newSelector(repo *MemoryRepository) *Selector {
	return &Selector{
		Repo: repo,
		Now:  func() time.Time { return fixedNow },
	}
}

func TestSelectOrdersCallbackThenNewThenContacted(t *testing.T) {
	repo := NewMemoryRepository()
	base := fixedNow.Add(-24 * time.Hour)
	repo.Put(seedLead("a", StatusContacted, 90, base))
	repo.Put(seedLead("b", StatusNew, 10, base))
	repo.Put(seedLead("c", StatusCallback, 0, base))

	got, err := newSelector(repo).Select(context.Background(), "ws-1", "camp-1", 3, 10)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	want := []string{"c", "b", "a"}
	if len(got) != len(want) {
		t.Fatalf("expected %d leads, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestSelectOrdersWithinTierByPriorityThenAge(t *testing.T) {
	repo := NewMemoryRepository()
	old := fixedNow.Add(-48 * time.Hour)
	newer := fixedNow.Add(-1 * time.Hour)
	repo.Put(seedLead("low", StatusNew, 10, old))
	repo.Put(seedLead("high", StatusNew, 90, newer))
	repo.Put(seedLead("high-old", StatusNew, 90, old))

	got, err := newSelector(repo).Select(context.Background(), "ws-1", "camp-1", 3, 10)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	want := []string{"high-old", "high", "low"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestSelectExcludesIneligibleLeads(t *testing.T) {
	repo := NewMemoryRepository()
	base := fixedNow.Add(-time.Hour)

	dnc := seedLead("dnc", StatusNew, 0, base)
	dnc.DNCStatus = true
	repo.Put(dnc)

	exhausted := seedLead("exhausted", StatusNew, 0, base)
	exhausted.AttemptCount = 3
	repo.Put(exhausted)

	future := fixedNow.Add(time.Hour)
	notDue := seedLead("not-due", StatusCallback, 0, base)
	notDue.NextCallScheduledAt = &future
	repo.Put(notDue)

	repo.Put(seedLead("qualified", StatusQualified, 0, base))
	repo.Put(seedLead("ok", StatusNew, 0, base))

	got, err := newSelector(repo).Select(context.Background(), "ws-1", "camp-1", 3, 10)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 1 || got[0].ID != "ok" {
		t.Fatalf("expected only lead ok, got %v", got)
	}
}

func TestSelectIncludesDueCallback(t *testing.T) {
	repo := NewMemoryRepository()
	due := fixedNow.Add(-time.Minute)
	l := seedLead("due", StatusCallback, 0, fixedNow.Add(-time.Hour))
	l.NextCallScheduledAt = &due
	repo.Put(l)

	got, err := newSelector(repo).Select(context.Background(), "ws-1", "camp-1", 3, 10)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected due callback to be selected, got %d leads", len(got))
	}
}

func TestSelectSkipsInFlightLeads(t *testing.T) {
	repo := NewMemoryRepository()
	base := fixedNow.Add(-time.Hour)
	repo.Put(seedLead("busy", StatusNew, 90, base))
	repo.Put(seedLead("idle", StatusNew, 10, base))

	sel := newSelector(repo)
	sel.InFlight = func(ctx context.Context, workspaceID, campaignID string) (map[string]bool, error) {
		return map[string]bool{"busy": true}, nil
	}

	got, err := sel.Select(context.Background(), "ws-1", "camp-1", 3, 10)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 1 || got[0].ID != "idle" {
		t.Fatalf("expected only idle lead, got %v", got)
	}
}

func TestSelectHonorsLimit(t *testing.T) {
	repo := NewMemoryRepository()
	base := fixedNow.Add(-time.Hour)
	for _, id := range []string{"a", "b", "c", "d"} {
		repo.Put(seedLead(id, StatusNew, 0, base))
	}

	got, err := newSelector(repo).Select(context.Background(), "ws-1", "camp-1", 3, 2)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 leads, got %d", len(got))
	}
}

func TestMarkAttemptIncrements(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Put(seedLead("a", StatusNew, 0, fixedNow.Add(-time.Hour)))

	if err := repo.MarkAttempt(context.Background(), "ws-1", "a", fixedNow); err != nil {
		t.Fatalf("mark attempt: %v", err)
	}
	l, err := repo.Get(context.Background(), "ws-1", "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if l.AttemptCount != 1 {
		t.Fatalf("expected attempt count 1, got %d", l.AttemptCount)
	}
	if l.LastAttemptAt == nil || !l.LastAttemptAt.Equal(fixedNow) {
		t.Fatalf("expected last attempt at %v, got %v", fixedNow, l.LastAttemptAt)
	}
}
