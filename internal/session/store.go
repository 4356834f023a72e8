// Package session maintains the conversation identifier that correlates
// consecutive chat turns into one logical conversation on the automation
// backend.
package session

import (
	"context"
	"sync"

	"github.com/suze-ad/finetech/pkg/logging"
)

// Store persists a single conversation identifier. An absent identifier is
// reported as an empty string with a nil error; errors indicate the
// backing storage failed.
type Store interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the identifier in process memory. Used when no Redis
// is configured; continuity then lasts for the process lifetime only.
type MemoryStore struct {
	mu sync.RWMutex
	id string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Read(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, nil
}

func (s *MemoryStore) Write(_ context.Context, id string) error {
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.id = ""
	s.mu.Unlock()
	return nil
}

// FailSoft decorates a Store so storage trouble never reaches the caller:
// failed reads report an absent identifier, failed writes and clears become
// no-ops. Failures are logged as warnings.
type FailSoft struct {
	inner  Store
	logger *logging.Logger
}

// NewFailSoft wraps store with the degrade-to-no-op policy.
func NewFailSoft(store Store, logger *logging.Logger) *FailSoft {
	if logger == nil {
		logger = logging.Default()
	}
	return &FailSoft{inner: store, logger: logger}
}

func (s *FailSoft) Read(ctx context.Context) (string, error) {
	id, err := s.inner.Read(ctx)
	if err != nil {
		s.logger.Warn("session: store read failed", "error", err)
		return "", nil
	}
	return id, nil
}

func (s *FailSoft) Write(ctx context.Context, id string) error {
	if err := s.inner.Write(ctx, id); err != nil {
		s.logger.Warn("session: store write failed", "error", err)
	}
	return nil
}

func (s *FailSoft) Clear(ctx context.Context) error {
	if err := s.inner.Clear(ctx); err != nil {
		s.logger.Warn("session: store clear failed", "error", err)
	}
	return nil
}
