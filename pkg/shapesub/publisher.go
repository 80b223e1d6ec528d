package shapesub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ajmhs/training-listeners-read-write/internal/app/generator"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("shapesub: publisher closed")

// PublisherConfig selects where a Publisher writes.
type PublisherConfig struct {
	DomainID int
	Topic    string
}

func (c *PublisherConfig) applyDefaults() {
	if c.Topic == "" {
		c.Topic = "Oblong"
	}
}

func (c *PublisherConfig) validate() error {
	if c.DomainID < 0 {
		return fmt.Errorf("domain id %d must not be negative", c.DomainID)
	}
	return nil
}

// Publisher lets callers push shapes onto a topic of any feed that accepts writers.
type Publisher struct {
	feed   Feed
	writer Writer

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewPublisher joins the domain on conn and opens a writer on the configured topic.
func NewPublisher(ctx context.Context, conn Connector, cfg *PublisherConfig) (*Publisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("connector is required")
	}
	if cfg == nil {
		cfg = &PublisherConfig{}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	feed, err := conn.Connect(ctx, cfg.DomainID)
	if err != nil {
		return nil, err
	}
	w, err := feed.NewWriter(cfg.Topic, ShapeTypeName)
	if err != nil {
		_ = feed.Close()
		return nil, err
	}
	return &Publisher{feed: feed, writer: w}, nil
}

// Publish writes one shape.
func (p *Publisher) Publish(shape Shape) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPublisherClosed
	}
	return p.writer.Write(shape)
}

// Dispose marks the instance with the given color as gone.
func (p *Publisher) Dispose(color string) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPublisherClosed
	}
	return p.writer.Dispose(color)
}

// Bounce publishes a shape of the given color moving around the canvas every interval
// until Close. count 0 means no limit.
func (p *Publisher) Bounce(color string, interval time.Duration, count uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	prev := p.cancel
	p.cancel = func() {
		if prev != nil {
			prev()
		}
		cancel()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		_ = generator.NewBouncer(color, 0).Run(ctx, p.writer, interval, count)
	}()
}

// Close stops bouncing shapes, closes the writer and leaves the domain, respecting the
// provided context.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	err := p.writer.Close()
	if errors.Is(err, ErrFeedClosed) {
		err = nil
	}
	return errors.Join(err, p.feed.Close())
}
