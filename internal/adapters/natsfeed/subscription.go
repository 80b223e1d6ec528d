package natsfeed

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ajmhs/training-listeners-read-write/internal/domain"
	"github.com/ajmhs/training-listeners-read-write/internal/ports"
)

type subscription struct {
	topic    string
	typeName string
	obs      ports.Observability
	tracker  *writerTracker

	dataSub     *nats.Subscription
	presenceSub *nats.Subscription

	mu       sync.Mutex
	closed   bool
	listener ports.Listener
	pending  []domain.Sample
	statuses []domain.SubscriptionMatchedStatus
	current  int
	total    int
}

func newSubscription(topic, typeName string, defaultLease time.Duration, obs ports.Observability) *subscription {
	s := &subscription{topic: topic, typeName: typeName, obs: obs}
	s.tracker = newWriterTracker(defaultLease, s.matched)
	return s
}

// attach subscribes to the data and presence subjects and asks live writers to announce.
func (s *subscription) attach(nc *nats.Conn, subj subjects, pendingMsgs int) error {
	var err error
	s.presenceSub, err = nc.Subscribe(subj.presence, s.handlePresence)
	if err != nil {
		return err
	}
	s.dataSub, err = nc.Subscribe(subj.data, s.handleData)
	if err != nil {
		_ = s.presenceSub.Unsubscribe()
		return err
	}
	if err := s.dataSub.SetPendingLimits(pendingMsgs, -1); err != nil {
		s.unsubscribe()
		return err
	}
	if err := nc.Publish(subj.discover, nil); err != nil {
		s.unsubscribe()
		return err
	}
	return nc.Flush()
}

func (s *subscription) Topic() string { return s.topic }

func (s *subscription) SetListener(l ports.Listener) {
	s.mu.Lock()
	s.listener = l
	statuses := s.statuses
	s.statuses = nil
	hasData := len(s.pending) > 0
	s.mu.Unlock()

	if l == nil {
		return
	}
	for _, st := range statuses {
		l.OnSubscriptionMatched(st)
	}
	if hasData {
		l.OnDataAvailable(s)
	}
}

func (s *subscription) Take() []domain.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

func (s *subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ports.ErrFeedClosed
	}
	s.closed = true
	s.listener = nil
	s.mu.Unlock()

	s.tracker.stop()
	return s.unsubscribe()
}

func (s *subscription) unsubscribe() error {
	var err error
	if s.dataSub != nil {
		err = s.dataSub.Unsubscribe()
	}
	if s.presenceSub != nil {
		if e := s.presenceSub.Unsubscribe(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

func (s *subscription) handleData(m *nats.Msg) {
	var env envelope
	if err := json.Unmarshal(m.Data, &env); err != nil {
		s.obs.LogError("envelope_decode_failed", err, ports.Field{Key: "subject", Value: m.Subject})
		return
	}
	if env.Type != s.typeName {
		s.obs.LogError("envelope_type_mismatch",
			fmt.Errorf("%s: got %s, want %s: %w", s.topic, env.Type, s.typeName, ports.ErrTopicTypeMismatch))
		return
	}
	sample, err := env.toSample(time.Now())
	if err != nil {
		s.obs.LogError("envelope_invalid", err, ports.Field{Key: "subject", Value: m.Subject})
		return
	}

	// Data from a writer whose announcement has not arrived yet still proves it is alive.
	s.tracker.alive(env.WriterID, 0)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, sample)
	l := s.listener
	s.mu.Unlock()

	if l != nil {
		l.OnDataAvailable(s)
	}
}

func (s *subscription) handlePresence(m *nats.Msg) {
	var a announcement
	if err := json.Unmarshal(m.Data, &a); err != nil {
		s.obs.LogError("presence_decode_failed", err, ports.Field{Key: "subject", Value: m.Subject})
		return
	}
	if a.Type != s.typeName || a.WriterID == "" {
		return
	}
	switch a.State {
	case presenceAlive:
		s.tracker.alive(a.WriterID, a.lease())
	case presenceGone:
		s.tracker.gone(a.WriterID)
	}
}

func (s *subscription) matched(delta int) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.current += delta
	st := domain.SubscriptionMatchedStatus{
		CurrentCount:       s.current,
		CurrentCountChange: delta,
	}
	if delta > 0 {
		s.total += delta
		st.TotalCountChange = delta
	}
	st.TotalCount = s.total
	l := s.listener
	if l == nil {
		s.statuses = append(s.statuses, st)
	}
	s.mu.Unlock()

	if l != nil {
		l.OnSubscriptionMatched(st)
	}
}

var (
	_ ports.Subscription = (*subscription)(nil)
	_ ports.SampleReader = (*subscription)(nil)
)
