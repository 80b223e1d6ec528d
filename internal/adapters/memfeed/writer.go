package memfeed

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ajmhs/training-listeners-read-write/internal/domain"
	"github.com/ajmhs/training-listeners-read-write/internal/ports"
)

type writer struct {
	id    string
	feed  *Feed
	topic *topic

	mu        sync.Mutex
	closed    bool
	seq       uint64
	instances map[string]struct{}
}

func newWriter(f *Feed, t *topic) *writer {
	return &writer{
		id:        uuid.New().String(),
		feed:      f,
		topic:     t,
		instances: make(map[string]struct{}),
	}
}

func (w *writer) Write(shape domain.ShapeTypeExtended) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ports.ErrFeedClosed
	}
	w.instances[shape.Color] = struct{}{}
	w.publish(shape, true, domain.InstanceAlive)
	return nil
}

// Dispose announces that the instance identified by color no longer exists.
func (w *writer) Dispose(color string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ports.ErrFeedClosed
	}
	delete(w.instances, color)
	w.publish(domain.ShapeTypeExtended{Color: color}, false, domain.InstanceDisposed)
	return nil
}

// Close unregisters every instance the writer still owns and unmatches it from readers.
func (w *writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ports.ErrFeedClosed
	}
	for color := range w.instances {
		w.publish(domain.ShapeTypeExtended{Color: color}, false, domain.InstanceNoWriters)
	}
	w.instances = nil
	w.closed = true
	w.mu.Unlock()

	sp := w.feed.space
	sp.mu.Lock()
	delete(w.topic.writers, w)
	readers := snapshotReaders(w.topic)
	sp.forget(w.topic)
	sp.mu.Unlock()

	for _, r := range readers {
		r.matched(-1)
	}
	w.feed.forgetWriter(w)
	return nil
}

// publish fans a sample out to the topic's current readers. Callers hold w.mu.
func (w *writer) publish(shape domain.ShapeTypeExtended, valid bool, state domain.InstanceState) {
	w.seq++
	now := time.Now()
	sample := domain.Sample{
		Data: shape,
		Info: domain.SampleInfo{
			Valid:              valid,
			InstanceState:      state,
			SourceTimestamp:    now,
			ReceptionTimestamp: now,
			PublicationHandle:  w.id,
			SequenceNumber:     w.seq,
		},
	}

	sp := w.feed.space
	sp.mu.Lock()
	readers := snapshotReaders(w.topic)
	sp.mu.Unlock()

	for _, r := range readers {
		r.deliver(sample)
	}
}

var _ ports.Writer = (*writer)(nil)
