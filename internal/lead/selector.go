package lead

import (
	"context"
	"sort"
	"time"
)

// Selector chooses which leads are due for a call this scheduler pass.
//
// Eligibility: callable status, dnc_status=false, next_call_scheduled_at nil
// or due, attempt count below the campaign maximum, and no in-flight attempt.
//
// Ordering is fully deterministic: callback leads first, then new, then
// contacted; within a tier higher priority score first, then oldest-created
// first.
type Selector struct {
	Repo Repository

	// InFlight reports lead ids with a queue attempt currently in status
	// calling; those leads are skipped.
	InFlight func(ctx context.Context, workspaceID, campaignID string) (map[string]bool, error)

	Now func() time.Time
}

var tierOrder = map[Status]int{
	StatusCallback:  0,
	StatusNew:       1,
	StatusContacted: 2,
}

// Select returns at most limit eligible leads in dispatch order.
func (s *Selector) Select(ctx context.Context, workspaceID, campaignID string, maxAttempts, limit int) ([]Lead, error) {
	if limit <= 0 {
		return nil, nil
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	leads, err := s.Repo.ListCallable(ctx, workspaceID, campaignID)
	if err != nil {
		return nil, err
	}

	var inFlight map[string]bool
	if s.InFlight != nil {
		inFlight, err = s.InFlight(ctx, workspaceID, campaignID)
		if err != nil {
			return nil, err
		}
	}

	eligible := leads[:0]
	for _, l := range leads {
		if !Eligible(l, now, maxAttempts) {
			continue
		}
		if inFlight[l.ID] {
			continue
		}
		eligible = append(eligible, l)
	}

	Order(eligible)

	if len(eligible) > limit {
		eligible = eligible[:limit]
	}
	return eligible, nil
}

// Eligible applies the per-lead filter. Exported so the memory repo and the
// postgres query stay in agreement via shared tests.
func Eligible(l Lead, now time.Time, maxAttempts int) bool {
	if !l.Status.Callable() {
		return false
	}
	if l.DNCStatus {
		return false
	}
	if maxAttempts > 0 && l.AttemptCount >= maxAttempts {
		return false
	}
	if l.NextCallScheduledAt != nil && l.NextCallScheduledAt.After(now) {
		return false
	}
	return true
}

// Order sorts leads in place into dispatch order.
func Order(leads []Lead) {
	sort.SliceStable(leads, func(i, j int) bool {
		a, b := leads[i], leads[j]
		if tierOrder[a.Status] != tierOrder[b.Status] {
			return tierOrder[a.Status] < tierOrder[b.Status]
		}
		if a.PriorityScore != b.PriorityScore {
			return a.PriorityScore > b.PriorityScore
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
