package memfeed

import (
	"sync"

	"github.com/ajmhs/training-listeners-read-write/internal/adapters/queue"
	"github.com/ajmhs/training-listeners-read-write/internal/domain"
	"github.com/ajmhs/training-listeners-read-write/internal/ports"
)

type subscription struct {
	feed  *Feed
	topic *topic
	queue ports.SampleQueue

	mu       sync.Mutex
	listener ports.Listener
	current  int
	total    int
	pending  []domain.SubscriptionMatchedStatus

	wake      chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

func newSubscription(f *Feed, t *topic) *subscription {
	return &subscription{
		feed:   f,
		topic:  t,
		queue:  queue.NewMemQueue(f.conn.policy.MaxQueueLen),
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

func (s *subscription) Topic() string { return s.topic.name }

func (s *subscription) SetListener(l ports.Listener) {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	s.signal()
}

// Take hands the listener up to Policy.MaxBatchSize queued samples and wakes the
// delivery loop again when more are left.
func (s *subscription) Take() []domain.Sample {
	batch := s.queue.DequeueBatch(s.feed.conn.policy.MaxBatchSize)
	if s.queue.Len() > 0 {
		s.signal()
	}
	s.feed.conn.obs.SetGauge("shapes_feed_queue_length", float64(s.queue.Len()))
	if len(batch) == 0 {
		return nil
	}
	out := make([]domain.Sample, len(batch))
	for i, sample := range batch {
		out[i] = *sample
	}
	return out
}

// Close stops delivery. It must not be called from inside a listener callback.
func (s *subscription) Close() error {
	err := ports.ErrFeedClosed
	s.closeOnce.Do(func() {
		err = nil
		sp := s.feed.space
		sp.mu.Lock()
		delete(s.topic.readers, s)
		sp.forget(s.topic)
		sp.mu.Unlock()

		close(s.stopCh)
		<-s.doneCh
		s.feed.forgetSubscription(s)
	})
	return err
}

func (s *subscription) matched(delta int) {
	s.mu.Lock()
	s.current += delta
	st := domain.SubscriptionMatchedStatus{
		TotalCount:         s.total,
		CurrentCount:       s.current,
		CurrentCountChange: delta,
	}
	if delta > 0 {
		s.total += delta
		st.TotalCount = s.total
		st.TotalCountChange = delta
	}
	s.pending = append(s.pending, st)
	s.mu.Unlock()
	s.signal()
}

func (s *subscription) deliver(sample domain.Sample) {
	pol := s.feed.conn.policy
	obs := s.feed.conn.obs
	if !enqueueWithPolicy(s.queue, &sample, pol, obs, s.stopCh) {
		obs.IncCounter("shapes_feed_dropped_total", 1)
		return
	}
	s.signal()
}

func (s *subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run is the delivery loop: it calls the listener on its own goroutine whenever data
// or status changes are pending.
func (s *subscription) run() {
	defer close(s.doneCh)
	for {
		select {
		case <-s.stopCh:
			return
		case <-s.wake:
		}

		s.mu.Lock()
		l := s.listener
		var statuses []domain.SubscriptionMatchedStatus
		if l != nil {
			statuses = s.pending
			s.pending = nil
		}
		s.mu.Unlock()
		if l == nil {
			continue
		}

		for _, st := range statuses {
			l.OnSubscriptionMatched(st)
		}
		if s.queue.Len() > 0 {
			l.OnDataAvailable(s)
		}
	}
}

var (
	_ ports.Subscription = (*subscription)(nil)
	_ ports.SampleReader = (*subscription)(nil)
)
