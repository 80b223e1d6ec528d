package shapesub

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ajmhs/training-listeners-read-write/internal/domain"
)

// ErrChannelSinkClosed is returned for batches that arrive after the channel sink's
// close function ran.
var ErrChannelSinkClosed = errors.New("shapesub: channel sink closed")

// SampleBatchSink is invoked with each batch of valid samples, in delivery order.
type SampleBatchSink func([]Sample) error

// NewCallbackSink returns a Sink that calls fn with a copy of every non-empty batch.
// An error from fn is reported by the collector as a failed emit.
func NewCallbackSink(name string, fn SampleBatchSink) Sink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink returns a Sink that forwards batches on a channel of the given
// buffer size. Sends block while the channel is full. Calling the returned func closes
// the channel and makes later writes fail with ErrChannelSinkClosed.
func NewChannelSink(name string, buffer int) (Sink, <-chan []Sample, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan []Sample, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackSink struct {
	name string
	fn   SampleBatchSink
}

func (s *callbackSink) WriteBatch(samples []*domain.Sample) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if len(samples) == 0 {
		return nil
	}
	return s.fn(copyBatch(samples))
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	ch     chan []Sample
	closed chan struct{}
	once   sync.Once
	// guards sends against close
	mu sync.RWMutex
}

func (s *channelSink) WriteBatch(samples []*domain.Sample) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	if len(samples) == 0 {
		return nil
	}

	batch := copyBatch(samples)

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case s.ch <- batch:
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}

func copyBatch(samples []*domain.Sample) []Sample {
	if len(samples) == 0 {
		return nil
	}
	out := make([]Sample, 0, len(samples))
	for _, sample := range samples {
		if sample != nil {
			out = append(out, *sample)
		}
	}
	return out
}
