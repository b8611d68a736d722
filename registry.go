package reactive

import (
	"sync"

	"github.com/creastat/reactive/core"
)

// handle identifies one inner subscription inside a registry
type handle uint64

// registry tracks the live inner subscriptions of one merge subscription.
//
// Entries are keyed by handle, so releasing one entry never invalidates the
// handles held by the others. A handle is reserved before the inner stream is
// subscribed; the disposable is attached once Subscribe returns, which may be
// after the inner stream has already completed and released its entry.
type registry struct {
	mu      sync.Mutex
	next    handle
	entries map[handle]core.Disposable
	closed  bool
}

func newRegistry() *registry {
	return &registry{entries: make(map[handle]core.Disposable)}
}

// reserve allocates a handle. It fails once the registry has been drained.
func (r *registry) reserve() (handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, false
	}
	r.next++
	r.entries[r.next] = nil
	return r.next, true
}

// attach binds a disposable to a reserved handle. When the handle was already
// released or the registry drained, d is disposed immediately.
func (r *registry) attach(h handle, d core.Disposable) {
	if d == nil {
		return
	}
	r.mu.Lock()
	_, live := r.entries[h]
	if live && !r.closed {
		r.entries[h] = d
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	d.Dispose()
}

// release removes a handle, returning its disposable (nil if not attached yet)
// and whether the handle was live.
func (r *registry) release(h handle) (core.Disposable, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, live := r.entries[h]
	if !live {
		return nil, false
	}
	delete(r.entries, h)
	return d, true
}

// drain closes the registry and returns every attached disposable
func (r *registry) drain() []core.Disposable {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	out := make([]core.Disposable, 0, len(r.entries))
	for h, d := range r.entries {
		if d != nil {
			out = append(out, d)
		}
		delete(r.entries, h)
	}
	return out
}

// len returns the number of live handles
func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
