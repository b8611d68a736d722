package reactive

import (
	"sync"

	"github.com/creastat/reactive/core"
)

type disposableFunc struct {
	once sync.Once
	fn   func()
}

func (d *disposableFunc) Dispose() {
	d.once.Do(d.fn)
}

// NewDisposable returns a disposable that runs fn on the first Dispose call
func NewDisposable(fn func()) core.Disposable {
	if fn == nil {
		return Disposed()
	}
	return &disposableFunc{fn: fn}
}

type nopDisposable struct{}

func (nopDisposable) Dispose() {}

// Disposed returns a disposable with nothing to release
func Disposed() core.Disposable {
	return nopDisposable{}
}

// Assignable holds a disposable that becomes known after the subscription it
// guards has started. Disposing it before Set makes Set dispose immediately.
type Assignable struct {
	mu       sync.Mutex
	current  core.Disposable
	disposed bool
}

// Set assigns the underlying disposable. Only the first call is kept.
func (a *Assignable) Set(d core.Disposable) {
	if d == nil {
		return
	}
	a.mu.Lock()
	if a.disposed || a.current != nil {
		disposed := a.disposed
		a.mu.Unlock()
		if disposed {
			d.Dispose()
		}
		return
	}
	a.current = d
	a.mu.Unlock()
}

// Dispose releases the underlying disposable, now or when it is assigned
func (a *Assignable) Dispose() {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return
	}
	a.disposed = true
	d := a.current
	a.current = nil
	a.mu.Unlock()

	if d != nil {
		d.Dispose()
	}
}

// IsDisposed reports whether Dispose has been called
func (a *Assignable) IsDisposed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.disposed
}

// Composite disposes a group of disposables together
type Composite struct {
	mu       sync.Mutex
	items    []core.Disposable
	disposed bool
}

// NewComposite creates a composite holding the given disposables
func NewComposite(items ...core.Disposable) *Composite {
	c := &Composite{}
	for _, d := range items {
		c.Add(d)
	}
	return c
}

// Add registers a disposable. Adding to a disposed composite disposes it at once.
func (c *Composite) Add(d core.Disposable) {
	if d == nil {
		return
	}
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		d.Dispose()
		return
	}
	c.items = append(c.items, d)
	c.mu.Unlock()
}

// Dispose releases every registered disposable
func (c *Composite) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	items := c.items
	c.items = nil
	c.mu.Unlock()

	for _, d := range items {
		d.Dispose()
	}
}
