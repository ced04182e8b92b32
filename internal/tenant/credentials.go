package tenant

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNotFound = errors.New("workspace credentials not found")

// Credentials hold a workspace's voice-provider settings. An empty APIKey
// means the workspace uses the platform-level key.
type Credentials struct {
	WorkspaceID   string
	APIKey        string
	AssistantID   string
	WebhookSecret string
	UpdatedAt     time.Time
}

// CredentialsRepository loads workspace credentials from storage.
type CredentialsRepository interface {
	Get(ctx context.Context, workspaceID string) (Credentials, error)
}

// Cache keeps a process-local copy of workspace credentials so the dialer
// does not hit storage on every dispatch. Entries live until Invalidate or
// the TTL elapses; credential rotation calls Invalidate explicitly.
type Cache struct {
	repo CredentialsRepository
	ttl  time.Duration
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	creds    Credentials
	loadedAt time.Time
}

func NewCache(repo CredentialsRepository, ttl time.Duration) *Cache {
	return &Cache{
		repo:    repo,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cache) Get(ctx context.Context, workspaceID string) (Credentials, error) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.entries[workspaceID]
	c.mu.RUnlock()
	if ok && (c.ttl <= 0 || now.Sub(e.loadedAt) < c.ttl) {
		return e.creds, nil
	}

	creds, err := c.repo.Get(ctx, workspaceID)
	if err != nil {
		return Credentials{}, err
	}

	c.mu.Lock()
	c.entries[workspaceID] = cacheEntry{creds: creds, loadedAt: now}
	c.mu.Unlock()
	return creds, nil
}

// Invalidate drops the cached entry so the next Get reloads from storage.
func (c *Cache) Invalidate(workspaceID string) {
	c.mu.Lock()
	delete(c.entries, workspaceID)
	c.mu.Unlock()
}
