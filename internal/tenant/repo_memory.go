package tenant

import (
	"context"
	"sync"
)

// MemoryCredentialsRepository is an in-memory CredentialsRepository used in
// tests and local runs.
type MemoryCredentialsRepository struct {
	mu    sync.RWMutex
	creds map[string]Credentials
}

func NewMemoryCredentialsRepository() *MemoryCredentialsRepository {
	return &MemoryCredentialsRepository{creds: make(map[string]Credentials)}
}

func (r *MemoryCredentialsRepository) Put(c Credentials) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creds[c.WorkspaceID] = c
}

func (r *MemoryCredentialsRepository) Get(ctx context.Context, workspaceID string) (Credentials, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.creds[workspaceID]
	if !ok {
		return Credentials{}, ErrNotFound
	}
	return c, nil
}
