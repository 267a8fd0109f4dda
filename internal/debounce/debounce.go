package debounce

import (
	"sync"
	"time"
)

const DefaultQuietPeriod = 500 * time.Millisecond

// Debouncer coalesces rapid Push calls and hands only the latest value to
// the emit function once no new value has arrived for the quiet period.
// Emit calls are serialized and never run while the internal lock is held.
type Debouncer[T any] struct {
	quiet time.Duration
	emit  func(T)

	mu         sync.Mutex
	timer      *time.Timer
	pending    T
	hasPending bool
	generation uint64
	stopped    bool

	emitMu sync.Mutex
}

func New[T any](quiet time.Duration, emit func(T)) *Debouncer[T] {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Debouncer[T]{quiet: quiet, emit: emit}
}

// Push records v as the latest value and restarts the quiet period.
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = v
	d.hasPending = true
	d.generation++
	gen := d.generation
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, func() { d.fire(gen) })
}

// Flush emits the pending value right away, if there is one.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if d.stopped || !d.hasPending {
		d.mu.Unlock()
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.generation++
	v := d.take()
	d.mu.Unlock()

	d.deliver(v)
	return true
}

// Pending reports whether a value is waiting for its quiet period to end.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hasPending
}

// Stop cancels any pending emission. Later pushes are ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.hasPending = false
	d.generation++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	// A newer push or a flush/stop superseded this timer.
	if d.stopped || gen != d.generation || !d.hasPending {
		d.mu.Unlock()
		return
	}
	v := d.take()
	d.mu.Unlock()

	d.deliver(v)
}

// take must be called with mu held.
func (d *Debouncer[T]) take() T {
	v := d.pending
	var zero T
	d.pending = zero
	d.hasPending = false
	return v
}

func (d *Debouncer[T]) deliver(v T) {
	if d.emit == nil {
		return
	}
	d.emitMu.Lock()
	defer d.emitMu.Unlock()
	d.emit(v)
}
