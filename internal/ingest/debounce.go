package ingest

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DebounceDelay is the quiet period before a coalesced send fires.
const DebounceDelay = 3000 * time.Millisecond

// Debouncer coalesces bursts of would-be outbound prompts per ticket.
// Scheduling under a key that already has a pending timer cancels the
// previous timer and restarts the delay, so only the most recently scheduled
// function runs. This keeps rapid repeated keystrokes from producing one bot
// reply each.
type Debouncer struct {
	delay  time.Duration
	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
}

// NewDebouncer creates a debouncer with the given quiet period.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:  delay,
		timers: make(map[uuid.UUID]*time.Timer),
	}
}

// Schedule arranges fn to run after the quiet period, replacing any pending
// run for the same key.
func (d *Debouncer) Schedule(key uuid.UUID, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		// Only clear our own entry: a fire racing a reschedule must not
		// delete the replacement timer.
		if d.timers[key] == t {
			delete(d.timers, key)
		}
		d.mu.Unlock()
		fn()
	})
	d.timers[key] = t
}

// Cancel drops any pending run for the key.
func (d *Debouncer) Cancel(key uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[key]; ok {
		t.Stop()
		delete(d.timers, key)
	}
}

// Flush stops all pending timers. Used at shutdown.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, t := range d.timers {
		t.Stop()
		delete(d.timers, k)
	}
}
