package resmutex

import (
	"context"
	"sync"
	"time"
)

// Local is an in-process Mutex. It is only correct when a single registry
// process serves all traffic; multi-node deployments use the redis mutex.
type Local struct {
	opts Options
	now  func() time.Time

	mu   sync.Mutex
	held map[string]localEntry
}

type localEntry struct {
	token   string
	expires time.Time
}

func NewLocal(opts Options) *Local {
	return &Local{
		opts: Normalize(opts),
		now:  time.Now,
		held: map[string]localEntry{},
	}
}

func (m *Local) Acquire(ctx context.Context, resourceID, purpose string) (*Lease, error) {
	token := NewToken(purpose)
	err := Retry(ctx, m.opts, func(context.Context) (bool, error) {
		return m.tryLock(resourceID, token), nil
	})
	if err != nil {
		return nil, err
	}
	return &Lease{
		ResourceID: resourceID,
		Purpose:    purpose,
		Token:      token,
		release: func(context.Context) error {
			m.unlock(resourceID, token)
			return nil
		},
	}, nil
}

func (m *Local) tryLock(key, token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if e, ok := m.held[key]; ok && now.Before(e.expires) {
		return false
	}
	m.held[key] = localEntry{token: token, expires: now.Add(m.opts.TTL)}
	return true
}

func (m *Local) unlock(key, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.held[key]; ok && e.token == token {
		delete(m.held, key)
	}
}

// Held reports whether resourceID is currently leased.
func (m *Local) Held(resourceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.held[resourceID]
	return ok && m.now().Before(e.expires)
}
