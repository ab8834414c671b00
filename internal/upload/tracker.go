package upload

import (
	"sync"
	"time"
)

// DefaultAttemptTTL is how long an idle attempt stays addressable.
const DefaultAttemptTTL = 15 * time.Minute

// Tracker maps client-chosen attempt ids to their controllers so a repeated
// submit of the same form hits the in-flight guard and progress can be
// polled from a separate request.
type Tracker struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	attempts map[string]*tracked
}

type tracked struct {
	ctrl    *Controller
	touched time.Time
}

// NewTracker returns a Tracker that forgets idle attempts after ttl.
func NewTracker(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultAttemptTTL
	}
	return &Tracker{ttl: ttl, now: time.Now, attempts: make(map[string]*tracked)}
}

// Controller returns the controller for id, creating it with create when the
// id is new.
func (t *Tracker) Controller(id string, create func() *Controller) *Controller {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.pruneLocked(now)

	if a, ok := t.attempts[id]; ok {
		a.touched = now
		return a.ctrl
	}
	ctrl := create()
	t.attempts[id] = &tracked{ctrl: ctrl, touched: now}
	return ctrl
}

// Snapshot returns the latest observation for id.
func (t *Tracker) Snapshot(id string) (Progress, bool) {
	t.mu.Lock()
	a, ok := t.attempts[id]
	t.mu.Unlock()
	if !ok {
		return Progress{}, false
	}
	return a.ctrl.Snapshot(), true
}

// Release closes and forgets id once the client is done with it. An attempt
// still in flight is kept and ErrAttemptInFlight is returned. Unknown ids
// are ignored.
func (t *Tracker) Release(id string) error {
	t.mu.Lock()
	a, ok := t.attempts[id]
	if !ok {
		t.mu.Unlock()
		return nil
	}
	if a.ctrl.Phase().InFlight() {
		t.mu.Unlock()
		return ErrAttemptInFlight
	}
	delete(t.attempts, id)
	t.mu.Unlock()
	return a.ctrl.Close()
}

// Len returns the number of tracked attempts.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.attempts)
}

func (t *Tracker) pruneLocked(now time.Time) {
	for id, a := range t.attempts {
		if now.Sub(a.touched) < t.ttl || a.ctrl.Phase().InFlight() {
			continue
		}
		a.ctrl.Close()
		delete(t.attempts, id)
	}
}
