// Package memory implements an in-process DocumentStore for tests and
// ephemeral runs. Values are copied on the way in and out.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/interfaces"
	"github.com/bobmcallan/intellivest/internal/storage/notify"
)

// Store is a map-backed DocumentStore.
type Store struct {
	mu       sync.RWMutex
	docs     map[string]json.RawMessage
	notifier *notify.Notifier
	logger   *common.Logger

	failMu     sync.RWMutex
	failWrites error
}

// NewStore creates an empty memory store.
func NewStore(logger *common.Logger) *Store {
	return &Store{
		docs:     make(map[string]json.RawMessage),
		notifier: notify.New(),
		logger:   logger,
	}
}

func (s *Store) Read(_ context.Context, key string) (json.RawMessage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.docs[key]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (s *Store) Write(_ context.Context, key string, value json.RawMessage) error {
	if err := s.writeError(); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if !json.Valid(value) {
		return fmt.Errorf("write %s: value is not valid JSON", key)
	}
	s.mu.Lock()
	s.docs[key] = clone(value)
	s.mu.Unlock()

	s.notifier.Notify(key, value)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	_, existed := s.docs[key]
	delete(s.docs, key)
	s.mu.Unlock()

	if existed {
		s.notifier.Notify(key, nil)
	}
	return nil
}

func (s *Store) Subscribe(key string, fn interfaces.ChangeFunc) func() {
	return s.notifier.Subscribe(key, fn)
}

func (s *Store) Close() error {
	return nil
}

// SetWriteError makes subsequent writes fail with err. Pass nil to restore.
func (s *Store) SetWriteError(err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failWrites = err
}

func (s *Store) writeError() error {
	s.failMu.RLock()
	defer s.failMu.RUnlock()
	return s.failWrites
}

// Subscribers returns the subscriber count for key.
func (s *Store) Subscribers(key string) int {
	return s.notifier.Count(key)
}

func clone(v json.RawMessage) json.RawMessage {
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out
}

// Ensure Store implements DocumentStore
var _ interfaces.DocumentStore = (*Store)(nil)
