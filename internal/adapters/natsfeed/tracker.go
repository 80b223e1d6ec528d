package natsfeed

import (
	"sync"
	"time"
)

type lease struct {
	timer *time.Timer
	gen   uint64
}

// writerTracker follows remote writers through their presence leases and reports
// +1 when one appears and -1 when it leaves or its lease runs out.
type writerTracker struct {
	defaultLease time.Duration
	onChange     func(delta int)

	mu      sync.Mutex
	gen     uint64
	stopped bool
	writers map[string]lease
}

func newWriterTracker(defaultLease time.Duration, onChange func(delta int)) *writerTracker {
	return &writerTracker{
		defaultLease: defaultLease,
		onChange:     onChange,
		writers:      make(map[string]lease),
	}
}

func (t *writerTracker) alive(id string, d time.Duration) {
	if d <= 0 {
		d = t.defaultLease
	}

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	prev, known := t.writers[id]
	if known {
		prev.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.writers[id] = lease{
		timer: time.AfterFunc(d, func() { t.expire(id, gen) }),
		gen:   gen,
	}
	t.mu.Unlock()

	if !known {
		t.onChange(1)
	}
}

func (t *writerTracker) gone(id string) {
	t.mu.Lock()
	l, ok := t.writers[id]
	if ok {
		l.timer.Stop()
		delete(t.writers, id)
	}
	t.mu.Unlock()

	if ok {
		t.onChange(-1)
	}
}

func (t *writerTracker) expire(id string, gen uint64) {
	t.mu.Lock()
	l, ok := t.writers[id]
	if !ok || l.gen != gen || t.stopped {
		t.mu.Unlock()
		return
	}
	delete(t.writers, id)
	t.mu.Unlock()

	t.onChange(-1)
}

func (t *writerTracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.writers)
}

func (t *writerTracker) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for id, l := range t.writers {
		l.timer.Stop()
		delete(t.writers, id)
	}
}
