package reload

import (
	"sync"
	"time"
)

// ChangeType classifies a debounced file change.
type ChangeType int

const (
	ChangeWrite ChangeType = iota
	ChangeRemove
)

// pendingChange tracks a file change waiting out its debounce window.
type pendingChange struct {
	path       string
	changeType ChangeType
	timer      *time.Timer
}

// Debouncer coalesces rapid file system events per path. Editors often
// emit several writes for a single save; only the last one within the
// window fires the callback.
type Debouncer struct {
	window   time.Duration
	callback func(path string, changeType ChangeType)

	mu      sync.Mutex
	pending map[string]*pendingChange
	stopped bool
}

// NewDebouncer creates a new debouncer with the given window and callback.
func NewDebouncer(window time.Duration, callback func(path string, changeType ChangeType)) *Debouncer {
	return &Debouncer{
		window:   window,
		callback: callback,
		pending:  make(map[string]*pendingChange),
	}
}

// Add queues an event for debouncing.
func (d *Debouncer) Add(path string, changeType ChangeType) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if existing, ok := d.pending[path]; ok {
		existing.timer.Stop()
		existing.changeType = mergeChangeTypes(existing.changeType, changeType)
		existing.timer = time.AfterFunc(d.window, func() {
			d.fire(path)
		})
		return
	}

	d.pending[path] = &pendingChange{
		path:       path,
		changeType: changeType,
		timer: time.AfterFunc(d.window, func() {
			d.fire(path)
		}),
	}
}

// fire executes the callback for a path.
func (d *Debouncer) fire(path string) {
	d.mu.Lock()
	change, ok := d.pending[path]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	stopped := d.stopped
	d.mu.Unlock()

	if !stopped && d.callback != nil {
		d.callback(change.path, change.changeType)
	}
}

// Stop stops all pending timers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for _, change := range d.pending {
		change.timer.Stop()
	}
	d.pending = make(map[string]*pendingChange)
}

// mergeChangeTypes combines two change types. A remove supersedes any
// pending write for the same path.
func mergeChangeTypes(existing, latest ChangeType) ChangeType {
	if existing == ChangeRemove || latest == ChangeRemove {
		return ChangeRemove
	}
	return latest
}
