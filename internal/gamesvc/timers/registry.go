package timers

import (
	"sync"
	"time"
)

type entry struct {
	timer *time.Timer
	gen   uint64
}

// Registry holds at most one pending timer per key. It lives only in process
// memory; pending timers are lost on restart.
type Registry[K comparable] struct {
	mu      sync.Mutex
	entries map[K]entry
	gen     uint64
}

func NewRegistry[K comparable]() *Registry[K] {
	return &Registry[K]{entries: make(map[K]entry)}
}

// Schedule runs fn after d unless the key is cancelled or scheduled again
// first. Any timer already pending for the key is stopped and replaced.
func (r *Registry[K]) Schedule(key K, d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.entries[key]; ok {
		old.timer.Stop()
	}

	r.gen++
	gen := r.gen
	t := time.AfterFunc(d, func() {
		if !r.claim(key, gen) {
			return
		}
		fn()
	})
	r.entries[key] = entry{timer: t, gen: gen}
}

// claim removes the entry if it still belongs to generation gen. A timer that
// lost a race with Cancel or Schedule finds a different generation and backs off.
func (r *Registry[K]) claim(key K, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok || e.gen != gen {
		return false
	}
	delete(r.entries, key)
	return true
}

// Cancel stops the pending timer for key and reports whether there was one.
func (r *Registry[K]) Cancel(key K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(r.entries, key)
	return true
}

func (r *Registry[K]) Active(key K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key]
	return ok
}

func (r *Registry[K]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Stop cancels every pending timer.
func (r *Registry[K]) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, e := range r.entries {
		e.timer.Stop()
		delete(r.entries, k)
	}
}
