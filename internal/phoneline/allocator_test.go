package phoneline

import (
	"context"
	"errors"
	"testing"
	"time"
)

var fixedNow = time.Unix(1700000000, 0).UTC()

func seedLine(id string, health, daily int) PhoneLine {
	return PhoneLine{
		ID:             id,
		WorkspaceID:    "ws-1",
		CampaignID:     "camp-1",
		Number:         "+15551230000",
		Status:         StatusActive,
		HealthScore:    health,
		DailyCallCount: daily,
		DailyCap:       100,
		LastCallDate:   fixedNow.Format("2006-01-02"),
	}
}

func newAllocator(repo *MemoryRepository, spacing time.Duration) *Allocator {
	a := NewAllocator(repo, spacing)
	a.Now = func() time.Time { return fixedNow }
	return a
}

func TestAllocatePrefersHealthiestLine(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Put(seedLine("weak", 40, 0))
	repo.Put(seedLine("strong", 90, 0))

	got, err := newAllocator(repo, 0).Allocate(context.Background(), "ws-1", "camp-1", "UTC")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if got.ID != "strong" {
		t.Fatalf("expected strong line, got %s", got.ID)
	}
}

func TestAllocateBreaksHealthTieByDailyCount(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Put(seedLine("busy", 80, 12))
	repo.Put(seedLine("idle", 80, 2))

	got, err := newAllocator(repo, 0).Allocate(context.Background(), "ws-1", "camp-1", "UTC")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if got.ID != "idle" {
		t.Fatalf("expected idle line, got %s", got.ID)
	}
}

func TestAllocateSkipsCappedAndInactiveLines(t *testing.T) {
	repo := NewMemoryRepository()

	capped := seedLine("capped", 100, 100)
	repo.Put(capped)

	paused := seedLine("paused", 100, 0)
	paused.Status = StatusPaused
	repo.Put(paused)

	repo.Put(seedLine("ok", 10, 0))

	got, err := newAllocator(repo, 0).Allocate(context.Background(), "ws-1", "camp-1", "UTC")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if got.ID != "ok" {
		t.Fatalf("expected ok line, got %s", got.ID)
	}
}

func TestAllocateEnforcesSpacing(t *testing.T) {
	repo := NewMemoryRepository()

	recent := seedLine("recent", 90, 1)
	at := fixedNow.Add(-10 * time.Second)
	recent.LastCallAt = &at
	repo.Put(recent)

	rested := seedLine("rested", 50, 1)
	old := fixedNow.Add(-2 * time.Minute)
	rested.LastCallAt = &old
	repo.Put(rested)

	got, err := newAllocator(repo, 30*time.Second).Allocate(context.Background(), "ws-1", "camp-1", "UTC")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if got.ID != "rested" {
		t.Fatalf("expected rested line, got %s", got.ID)
	}
}

func TestAllocateResetsDailyCountOnNewDay(t *testing.T) {
	repo := NewMemoryRepository()

	stale := seedLine("stale", 90, 100) // at cap, but counted yesterday
	stale.LastCallDate = fixedNow.AddDate(0, 0, -1).Format("2006-01-02")
	repo.Put(stale)

	got, err := newAllocator(repo, 0).Allocate(context.Background(), "ws-1", "camp-1", "UTC")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if got.ID != "stale" {
		t.Fatalf("expected stale line, got %s", got.ID)
	}

	after, err := repo.Get(context.Background(), "ws-1", "stale")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.DailyCallCount != 1 {
		t.Fatalf("expected daily count reset to 1, got %d", after.DailyCallCount)
	}
	if after.LastCallDate != fixedNow.Format("2006-01-02") {
		t.Fatalf("expected local date updated, got %s", after.LastCallDate)
	}
}

func TestAllocateDailyResetUsesCampaignZone(t *testing.T) {
	repo := NewMemoryRepository()
	capped := seedLine("capped", 90, 100) // at cap, counted on the 14th
	capped.LastCallDate = "2023-11-14"
	repo.Put(capped)

	a := NewAllocator(repo, 0)
	// 02:00 UTC on the 15th is still 18:00 on the 14th in Los Angeles:
	// the cap must not roll over until local midnight.
	a.Now = func() time.Time {
		return time.Date(2023, 11, 15, 2, 0, 0, 0, time.UTC)
	}

	_, err := a.Allocate(context.Background(), "ws-1", "camp-1", "America/Los_Angeles")
	if !errors.Is(err, ErrNoLineAvailable) {
		t.Fatalf("expected cap held before local midnight, got %v", err)
	}

	got, err := a.Allocate(context.Background(), "ws-1", "camp-1", "UTC")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if got.ID != "capped" {
		t.Fatalf("expected reset line after utc midnight, got %s", got.ID)
	}
}

func TestAllocateNoLineAvailable(t *testing.T) {
	repo := NewMemoryRepository()
	paused := seedLine("paused", 100, 0)
	paused.Status = StatusPaused
	repo.Put(paused)

	_, err := newAllocator(repo, 0).Allocate(context.Background(), "ws-1", "camp-1", "UTC")
	if !errors.Is(err, ErrNoLineAvailable) {
		t.Fatalf("expected ErrNoLineAvailable, got %v", err)
	}
}

func TestAllocateRecordsDispatch(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Put(seedLine("a", 80, 4))

	if _, err := newAllocator(repo, 0).Allocate(context.Background(), "ws-1", "camp-1", "UTC"); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	after, err := repo.Get(context.Background(), "ws-1", "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.DailyCallCount != 5 || after.TotalCallCount != 1 {
		t.Fatalf("expected counters bumped, got daily=%d total=%d", after.DailyCallCount, after.TotalCallCount)
	}
	if after.LastCallAt == nil || !after.LastCallAt.Equal(fixedNow) {
		t.Fatalf("expected last call at %v, got %v", fixedNow, after.LastCallAt)
	}
}

func TestAdjustHealthClamps(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Put(seedLine("a", 95, 0))

	if err := repo.AdjustHealth(context.Background(), "ws-1", "a", 20); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	l, _ := repo.Get(context.Background(), "ws-1", "a")
	if l.HealthScore != 100 {
		t.Fatalf("expected clamp at 100, got %d", l.HealthScore)
	}

	if err := repo.AdjustHealth(context.Background(), "ws-1", "a", -150); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	l, _ = repo.Get(context.Background(), "ws-1", "a")
	if l.HealthScore != 0 {
		t.Fatalf("expected clamp at 0, got %d", l.HealthScore)
	}
}
