package memfeed

import (
	"errors"
	"sync"

	"github.com/ajmhs/training-listeners-read-write/internal/ports"
)

// Feed is a participant in an in-process domain.
type Feed struct {
	conn  *Connector
	space *space

	mu      sync.Mutex
	closed  bool
	subs    map[*subscription]struct{}
	writers map[*writer]struct{}
}

func (f *Feed) Subscribe(topicName, typeName string) (ports.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ports.ErrFeedClosed
	}

	f.space.mu.Lock()
	t, err := f.space.lookup(topicName, typeName)
	if err != nil {
		f.space.mu.Unlock()
		return nil, err
	}
	sub := newSubscription(f, t)
	t.readers[sub] = struct{}{}
	existing := len(t.writers)
	f.space.mu.Unlock()

	for i := 0; i < existing; i++ {
		sub.matched(1)
	}
	if f.subs == nil {
		f.subs = make(map[*subscription]struct{})
	}
	f.subs[sub] = struct{}{}
	go sub.run()
	return sub, nil
}

func (f *Feed) NewWriter(topicName, typeName string) (ports.Writer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ports.ErrFeedClosed
	}

	f.space.mu.Lock()
	t, err := f.space.lookup(topicName, typeName)
	if err != nil {
		f.space.mu.Unlock()
		return nil, err
	}
	w := newWriter(f, t)
	t.writers[w] = struct{}{}
	readers := snapshotReaders(t)
	f.space.mu.Unlock()

	for _, r := range readers {
		r.matched(1)
	}
	if f.writers == nil {
		f.writers = make(map[*writer]struct{})
	}
	f.writers[w] = struct{}{}
	return w, nil
}

// Close closes every reader and writer created from this feed and leaves the domain.
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	subs := f.subs
	writers := f.writers
	f.subs, f.writers = nil, nil
	f.mu.Unlock()

	var errs []error
	for w := range writers {
		if err := w.Close(); err != nil && !errors.Is(err, ports.ErrFeedClosed) {
			errs = append(errs, err)
		}
	}
	for s := range subs {
		if err := s.Close(); err != nil && !errors.Is(err, ports.ErrFeedClosed) {
			errs = append(errs, err)
		}
	}
	f.conn.release(f.space)
	return errors.Join(errs...)
}

func (f *Feed) forgetSubscription(s *subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, s)
}

func (f *Feed) forgetWriter(w *writer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.writers, w)
}

func snapshotReaders(t *topic) []*subscription {
	out := make([]*subscription, 0, len(t.readers))
	for r := range t.readers {
		out = append(out, r)
	}
	return out
}

var _ ports.Feed = (*Feed)(nil)
