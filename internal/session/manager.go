package session

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/suze-ad/finetech/pkg/logging"
)

// Manager owns the cached conversation identifier for one widget instance.
// The cache guarantees at most one generation per process lifetime: two
// Ensure calls with createIfMissing return the same value unless Clear
// intervenes.
type Manager struct {
	mu     sync.Mutex
	store  Store
	logger *logging.Logger
	cached string
}

// NewManager creates a manager backed by store.
func NewManager(store Store, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{store: store, logger: logger}
}

// Ensure returns the conversation identifier, reading the store on first
// use. When none exists and createIfMissing is false, it returns an empty
// string without side effects; otherwise a new identifier is generated and
// persisted.
func (m *Manager) Ensure(ctx context.Context, createIfMissing bool) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != "" {
		return m.cached
	}

	if m.store != nil {
		id, err := m.store.Read(ctx)
		if err != nil {
			m.logger.Warn("session: read failed, treating as absent", "error", err)
		} else if id != "" {
			m.cached = id
			return id
		}
	}

	if !createIfMissing {
		return ""
	}

	id := newSessionID()
	m.cached = id
	if m.store != nil {
		if err := m.store.Write(ctx, id); err != nil {
			m.logger.Warn("session: persist failed", "error", err, "session_id", id)
		}
	}
	m.logger.Debug("session: created", "session_id", id)
	return id
}

// Clear forgets the cached identifier and removes the persisted one.
func (m *Manager) Clear(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cached = ""
	if m.store != nil {
		if err := m.store.Clear(ctx); err != nil {
			m.logger.Warn("session: clear failed", "error", err)
		}
	}
}

// newSessionID generates a UUID-quality identifier, falling back to a
// timestamp plus random suffix when no cryptographic randomness is
// available.
func newSessionID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("sess-%d-%04d", time.Now().UnixMilli(), rand.Intn(10000))
	}
	return id.String()
}
