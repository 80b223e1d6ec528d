package natsfeed

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/ajmhs/training-listeners-read-write/internal/domain"
	"github.com/ajmhs/training-listeners-read-write/internal/ports"
)

type writer struct {
	id       string
	nc       *nats.Conn
	subj     subjects
	typeName string
	lease    time.Duration

	discoverSub *nats.Subscription

	mu        sync.Mutex
	closed    bool
	seq       uint64
	instances map[string]struct{}

	stopCh chan struct{}
	doneCh chan struct{}
}

// startWriter announces a new writer and keeps its presence lease alive until Close.
func startWriter(nc *nats.Conn, subj subjects, typeName string, lease time.Duration) (*writer, error) {
	w := &writer{
		id:        uuid.New().String(),
		nc:        nc,
		subj:      subj,
		typeName:  typeName,
		lease:     lease,
		instances: make(map[string]struct{}),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}

	var err error
	w.discoverSub, err = nc.Subscribe(subj.discover, func(*nats.Msg) {
		if err := w.announce(presenceAlive); err != nil {
			logger.WithError(err).WithField("writer", w.id).Warn("announce on discover failed")
		}
	})
	if err != nil {
		return nil, err
	}
	if err := w.announce(presenceAlive); err != nil {
		_ = w.discoverSub.Unsubscribe()
		return nil, err
	}

	go w.heartbeat()
	return w, nil
}

func (w *writer) Write(shape domain.ShapeTypeExtended) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ports.ErrFeedClosed
	}
	w.instances[shape.Color] = struct{}{}
	return w.publish(envelope{Kind: kindData, Data: &shape})
}

func (w *writer) Dispose(color string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ports.ErrFeedClosed
	}
	delete(w.instances, color)
	return w.publish(envelope{Kind: kindDispose, Key: color})
}

// Close unregisters the writer's instances and tells readers it is gone.
func (w *writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ports.ErrFeedClosed
	}
	var firstErr error
	for color := range w.instances {
		if err := w.publish(envelope{Kind: kindUnregister, Key: color}); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.instances = nil
	w.closed = true
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.discoverSub.Unsubscribe(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.announce(presenceGone); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.nc.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// publish stamps and sends an envelope. Callers hold w.mu.
func (w *writer) publish(env envelope) error {
	w.seq++
	env.WriterID = w.id
	env.Type = w.typeName
	env.Seq = w.seq
	env.SourceTimestamp = time.Now().UTC()

	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return w.nc.Publish(w.subj.data, body)
}

func (w *writer) announce(state string) error {
	body, err := json.Marshal(announcement{
		WriterID:    w.id,
		Type:        w.typeName,
		State:       state,
		LeaseMillis: w.lease.Milliseconds(),
	})
	if err != nil {
		return err
	}
	return w.nc.Publish(w.subj.presence, body)
}

func (w *writer) heartbeat() {
	defer close(w.doneCh)
	ticker := time.NewTicker(w.lease / 3)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.announce(presenceAlive); err != nil {
				logger.WithError(err).WithField("writer", w.id).Warn("heartbeat failed")
			}
		}
	}
}

var _ ports.Writer = (*writer)(nil)
