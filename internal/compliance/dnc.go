package compliance

import (
	"context"
	"sync"
)

// Registry answers whether a number is on an external do-not-call registry.
// Implementations may call out over the network; an error from Listed means
// the registry could not be consulted, not that the number is listed.
type Registry interface {
	Listed(ctx context.Context, phoneNumber string) (bool, error)
}

// MemoryDNCList is an in-memory workspace-local suppression list for tests
// and local runs.
type MemoryDNCList struct {
	mu      sync.RWMutex
	numbers map[string]map[string]bool // workspace -> number set
}

func NewMemoryDNCList() *MemoryDNCList {
	return &MemoryDNCList{numbers: make(map[string]map[string]bool)}
}

func (l *MemoryDNCList) Add(workspaceID, phoneNumber string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.numbers[workspaceID] == nil {
		l.numbers[workspaceID] = make(map[string]bool)
	}
	l.numbers[workspaceID][phoneNumber] = true
}

func (l *MemoryDNCList) Contains(ctx context.Context, workspaceID, phoneNumber string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.numbers[workspaceID][phoneNumber], nil
}

// StaticRegistry is a fixed-answer Registry for tests.
type StaticRegistry struct {
	Numbers map[string]bool
	Err     error
}

func (r StaticRegistry) Listed(ctx context.Context, phoneNumber string) (bool, error) {
	if r.Err != nil {
		return false, r.Err
	}
	return r.Numbers[phoneNumber], nil
}
