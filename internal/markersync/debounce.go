package markersync

import (
	"sync"
	"time"

	"github.com/bep/debounce"
)

// DefaultSettleInterval is how long the viewport must stay still before a
// fetch is triggered.
const DefaultSettleInterval = 300 * time.Millisecond

// Debouncer collapses bursts of viewport moves into one settle call. Every
// NotifyMoved restarts the quiet period, so continuous movement can delay
// the settle indefinitely.
type Debouncer struct {
	debounced func(f func())
	settled   func()

	mu      sync.Mutex
	stopped bool
}

// NewDebouncer calls settled once per quiet period of length interval.
func NewDebouncer(interval time.Duration, settled func()) *Debouncer {
	if interval <= 0 {
		interval = DefaultSettleInterval
	}
	return &Debouncer{
		debounced: debounce.New(interval),
		settled:   settled,
	}
}

// NotifyMoved records a raw viewport change.
func (d *Debouncer) NotifyMoved() {
	d.mu.Lock()
	stopped := d.stopped
	d.mu.Unlock()
	if stopped {
		return
	}
	d.debounced(d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	stopped := d.stopped
	d.mu.Unlock()
	if stopped {
		return
	}
	d.settled()
}

// Stop drops any pending settle and ignores later moves.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
}
