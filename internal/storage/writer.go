package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/interfaces"
)

// WriteTimeout bounds a single background write.
var WriteTimeout = 10 * time.Second

// ResultFunc observes the outcome of a background write.
type ResultFunc func(key string, err error)

// AsyncWriter persists values fire-and-forget. Values are sealed in an
// envelope synchronously, so the caller's state is captured at call time, and
// written on a goroutine. Per key, a write older than one already stored is
// dropped, so the store converges on the newest value.
type AsyncWriter struct {
	store    interfaces.DocumentStore
	origin   string
	logger   *common.Logger
	onResult ResultFunc
	now      func() time.Time

	mu       sync.Mutex
	revision map[string]int64
	written  map[string]int64
	keyLocks map[string]*sync.Mutex

	wg sync.WaitGroup
}

// NewAsyncWriter creates a writer stamping envelopes with origin. store may be
// nil, in which case Put only advances revisions.
func NewAsyncWriter(store interfaces.DocumentStore, origin string, logger *common.Logger, onResult ResultFunc) *AsyncWriter {
	return &AsyncWriter{
		store:    store,
		origin:   origin,
		logger:   logger,
		onResult: onResult,
		now:      time.Now,
		revision: make(map[string]int64),
		written:  make(map[string]int64),
		keyLocks: make(map[string]*sync.Mutex),
	}
}

// Origin identifies this writer's envelopes.
func (w *AsyncWriter) Origin() string {
	return w.origin
}

// Observe records a revision seen from another writer so later local writes
// are stamped above it.
func (w *AsyncWriter) Observe(key string, revision int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if revision > w.revision[key] {
		w.revision[key] = revision
	}
}

// Put seals data under the next revision for key and writes it in the
// background. Encoding errors are reported through onResult immediately.
func (w *AsyncWriter) Put(key string, data any) {
	w.mu.Lock()
	w.revision[key]++
	rev := w.revision[key]
	lock, ok := w.keyLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		w.keyLocks[key] = lock
	}
	w.mu.Unlock()

	raw, err := Seal(w.origin, rev, w.now(), data)
	if err != nil {
		w.report(key, err)
		return
	}
	if w.store == nil {
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		lock.Lock()
		defer lock.Unlock()

		w.mu.Lock()
		stale := rev <= w.written[key]
		w.mu.Unlock()
		if stale {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), WriteTimeout)
		defer cancel()
		err := w.store.Write(ctx, key, raw)
		if err == nil {
			w.mu.Lock()
			w.written[key] = rev
			w.mu.Unlock()
		}
		w.report(key, err)
	}()
}

// PutSync seals and writes data in the caller's goroutine.
func (w *AsyncWriter) PutSync(ctx context.Context, key string, data any) error {
	w.mu.Lock()
	w.revision[key]++
	rev := w.revision[key]
	w.mu.Unlock()

	raw, err := Seal(w.origin, rev, w.now(), data)
	if err != nil {
		return err
	}
	if w.store == nil {
		return nil
	}
	if err := w.store.Write(ctx, key, raw); err != nil {
		return err
	}
	w.mu.Lock()
	if rev > w.written[key] {
		w.written[key] = rev
	}
	w.mu.Unlock()
	return nil
}

func (w *AsyncWriter) report(key string, err error) {
	if err != nil {
		w.logger.Error().Err(err).Str("key", key).Msg("Persistence write failed; in-memory state kept")
	}
	if w.onResult != nil {
		w.onResult(key, err)
	}
}

// Wait blocks until all background writes have finished.
func (w *AsyncWriter) Wait() {
	w.wg.Wait()
}

// Decode opens a stored value into out, returning its envelope.
func Decode(raw json.RawMessage, out any) (origin string, revision int64, err error) {
	env, err := Open(raw, out)
	return env.Origin, env.Revision, err
}
