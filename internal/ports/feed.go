package ports

import (
	"context"
	"errors"

	"github.com/ajmhs/training-listeners-read-write/internal/domain"
)

var (
	// ErrFeedClosed is returned by operations on a feed or subscription after Close.
	ErrFeedClosed = errors.New("feed closed")
	// ErrInvalidTopic is returned when a topic name cannot be used on the feed.
	ErrInvalidTopic = errors.New("invalid topic name")
	// ErrTopicTypeMismatch is returned when a topic is already registered with another type.
	ErrTopicTypeMismatch = errors.New("topic registered with a different type")
	// ErrReadOnlyFeed is returned by feeds that cannot create writers.
	ErrReadOnlyFeed = errors.New("feed does not support writers")
)

// Connector joins a data-distribution domain.
type Connector interface {
	Connect(ctx context.Context, domainID int) (Feed, error)
}

// Feed is a joined domain from which readers and writers are created.
type Feed interface {
	Subscribe(topic, typeName string) (Subscription, error)
	NewWriter(topic, typeName string) (Writer, error)
	Close() error
}

// Subscription is a reader on one topic. Samples that arrive before a listener is set
// stay queued on the subscription.
type Subscription interface {
	Topic() string
	SetListener(l Listener)
	Close() error
}

// Writer publishes shape instances on one topic.
type Writer interface {
	Write(shape domain.ShapeTypeExtended) error
	Dispose(color string) error
	Close() error
}
