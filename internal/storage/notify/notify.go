// Package notify provides the in-process subscriber registry shared by the
// document store backends.
package notify

import (
	"encoding/json"
	"sync"

	"github.com/bobmcallan/intellivest/internal/interfaces"
)

// Notifier fans a key's changes out to its subscribers.
type Notifier struct {
	mu   sync.RWMutex
	next uint64
	subs map[string]map[uint64]interfaces.ChangeFunc
}

// New creates an empty Notifier.
func New() *Notifier {
	return &Notifier{subs: make(map[string]map[uint64]interfaces.ChangeFunc)}
}

// Subscribe registers fn for key. The returned func is idempotent.
func (n *Notifier) Subscribe(key string, fn interfaces.ChangeFunc) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.next++
	id := n.next
	if n.subs[key] == nil {
		n.subs[key] = make(map[uint64]interfaces.ChangeFunc)
	}
	n.subs[key][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs[key], id)
			if len(n.subs[key]) == 0 {
				delete(n.subs, key)
			}
		})
	}
}

// Notify calls every subscriber of key outside the lock. Each subscriber gets
// its own copy of value.
func (n *Notifier) Notify(key string, value json.RawMessage) {
	n.mu.RLock()
	fns := make([]interfaces.ChangeFunc, 0, len(n.subs[key]))
	for _, fn := range n.subs[key] {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn(key, clone(value))
	}
}

// Count returns the number of subscribers for key.
func (n *Notifier) Count(key string) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs[key])
}

// Keys returns every key with at least one subscriber.
func (n *Notifier) Keys() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	keys := make([]string, 0, len(n.subs))
	for k := range n.subs {
		keys = append(keys, k)
	}
	return keys
}

func clone(v json.RawMessage) json.RawMessage {
	if v == nil {
		return nil
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out
}
