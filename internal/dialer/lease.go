package dialer

import (
	"context"
	"sync"
	"time"
)

// Lease is the cross-process mutual-exclusion primitive for campaign
// processing. Acquire returns false without error when another holder owns
// an unexpired lease: contention is expected control flow, not a failure.
//
// The TTL self-heals a crashed holder; the in-process tick guard in Engine
// is only a same-process optimization and gives no cross-process guarantee.
type Lease interface {
	// Acquire takes the lease for campaignID, or renews it if this owner
	// already holds it.
	Acquire(ctx context.Context, campaignID string, ttl time.Duration) (bool, error)
	// Release drops the lease if this owner still holds it.
	Release(ctx context.Context, campaignID string) error
}

// MemoryLease is a single-process Lease for tests and local runs.
type MemoryLease struct {
	Owner string
	Now   func() time.Time

	mu    sync.Mutex
	holds map[string]memoryHold
}

type memoryHold struct {
	owner     string
	expiresAt time.Time
}

func NewMemoryLease(owner string) *MemoryLease {
	return &MemoryLease{Owner: owner, Now: time.Now, holds: make(map[string]memoryHold)}
}

func (l *MemoryLease) Acquire(ctx context.Context, campaignID string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.Now()

	h, ok := l.holds[campaignID]
	if ok && h.owner != l.Owner && now.Before(h.expiresAt) {
		return false, nil
	}
	l.holds[campaignID] = memoryHold{owner: l.Owner, expiresAt: now.Add(ttl)}
	return true, nil
}

func (l *MemoryLease) Release(ctx context.Context, campaignID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.holds[campaignID]; ok && h.owner == l.Owner {
		delete(l.holds, campaignID)
	}
	return nil
}
