package phoneline

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrNoLineAvailable is returned when every line on the campaign is paused,
// capped out for the day, or still inside its spacing interval. The caller
// treats it as "skip this lead for now", not a failure.
var ErrNoLineAvailable = errors.New("no phone line available")

// Allocator picks the outbound line for the next dispatch. Candidates are
// active lines under their daily cap whose spacing interval has elapsed;
// among those the healthiest line wins, with the lower daily count breaking
// ties so load spreads across equally healthy lines.
type Allocator struct {
	Repo    Repository
	Spacing time.Duration
	Now     func() time.Time
}

func NewAllocator(repo Repository, spacing time.Duration) *Allocator {
	return &Allocator{Repo: repo, Spacing: spacing, Now: time.Now}
}

// Allocate returns the line to use and records the dispatch against it.
// Daily caps roll over at midnight in zone (the campaign's IANA zone),
// falling back to UTC when the zone is empty or unknown.
func (a *Allocator) Allocate(ctx context.Context, workspaceID, campaignID, zone string) (PhoneLine, error) {
	now := a.Now().UTC()

	lines, err := a.Repo.ListByCampaign(ctx, workspaceID, campaignID)
	if err != nil {
		return PhoneLine{}, err
	}

	loc, err := time.LoadLocation(zone)
	if err != nil {
		loc = time.UTC
	}
	localDate := now.In(loc).Format("2006-01-02")
	candidates := lines[:0]
	for _, l := range lines {
		if !a.eligible(l, now, localDate) {
			continue
		}
		candidates = append(candidates, l)
	}
	if len(candidates) == 0 {
		return PhoneLine{}, ErrNoLineAvailable
	}

	rank(candidates)
	pick := candidates[0]

	if err := a.Repo.RecordDispatch(ctx, workspaceID, pick.ID, now, localDate); err != nil {
		return PhoneLine{}, err
	}
	return pick, nil
}

func (a *Allocator) eligible(l PhoneLine, now time.Time, localDate string) bool {
	if !l.Usable() {
		return false
	}
	daily := l.DailyCallCount
	if l.LastCallDate != localDate {
		// counter belongs to a previous day; treat as fresh
		daily = 0
	}
	if l.DailyCap > 0 && daily >= l.DailyCap {
		return false
	}
	if a.Spacing > 0 && l.LastCallAt != nil && now.Sub(*l.LastCallAt) < a.Spacing {
		return false
	}
	return true
}

func rank(lines []PhoneLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		a, b := lines[i], lines[j]
		if a.HealthScore != b.HealthScore {
			return a.HealthScore > b.HealthScore
		}
		if a.DailyCallCount != b.DailyCallCount {
			return a.DailyCallCount < b.DailyCallCount
		}
		return a.ID < b.ID
	})
}
