package shapesub

import (
	"io"

	"github.com/ajmhs/training-listeners-read-write/internal/adapters/memfeed"
	"github.com/ajmhs/training-listeners-read-write/internal/app/subscriber"
)

// Subscriber joins a domain, prints shapes from one topic and stops after the
// configured sample count or on cancellation.
type Subscriber = subscriber.App

// SubscriberOption customizes the dependencies used by Subscriber.
type SubscriberOption = subscriber.Option

// Result summarizes a finished run.
type Result = subscriber.Result

// NewSubscriber bootstraps the default adapters (feed selected by feed.kind, stdout
// printer, optional Postgres recorder, Prometheus observability). Options override any
// of them.
func NewSubscriber(cfg *Config, opts ...SubscriberOption) (*Subscriber, error) {
	return subscriber.New(cfg, opts...)
}

// WithConnector injects a custom feed connector.
func WithConnector(c Connector) SubscriberOption { return subscriber.WithConnector(c) }

// WithSink injects a custom sink so samples can be sent to any database or API.
func WithSink(s Sink) SubscriberOption { return subscriber.WithSink(s) }

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) SubscriberOption {
	return subscriber.WithObservability(obs)
}

// WithOutput redirects status lines and printed samples.
func WithOutput(w io.Writer) SubscriberOption { return subscriber.WithOutput(w) }

// NewLoopback returns an in-process connector. Share one between a Subscriber and
// publishers in the same process; a nil obs logs only.
func NewLoopback(policy Policy, obs Observability) Connector {
	return memfeed.NewConnector(policy, obs)
}
