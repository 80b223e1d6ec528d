package shapesub

import (
	"context"
	"fmt"
)

// Flow assembles a Subscriber in three steps: a Config, then the feed it reads
// shapes from, then where counted samples go.
type Flow struct {
	cfg  *Config
	opts []SubscriberOption
}

// FlowOption adjusts a Flow once its Config is known.
type FlowOption func(*Flow)

// StreamInOption picks the feed samples are read from.
type StreamInOption func(*Flow)

// StreamOutOption picks where valid samples and metrics end up.
type StreamOutOption func(*Flow)

// Conf reads a subscriber YAML file and starts a Flow from it.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig starts a Flow from cfg. A nil cfg is an error.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Config returns the Config the Flow will build with. Changes made to it before
// StreamOUT take effect.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options passes SubscriberOption values straight through to NewSubscriber.
func (f *Flow) Options(opts ...SubscriberOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

// StreamIN chooses the shapes feed. Without it the feed named in the Config is used.
func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// StreamOUT chooses the sample sink and returns a Subscriber that has not joined
// its domain yet.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Subscriber, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return NewSubscriber(f.cfg, f.opts...)
}

// Run builds the Subscriber and reads until the sample target is met or ctx ends.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) (Result, error) {
	sub, err := f.StreamOUT(opts...)
	if err != nil {
		return Result{}, err
	}
	return sub.Run(ctx)
}

// WithFlowOptions hands SubscriberOption values to Conf or ConfFromConfig.
func WithFlowOptions(opts ...SubscriberOption) FlowOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(opts...)
		}
	}
}

// StreamInConnector reads from c, for example a loopback shared with a Publisher.
func StreamInConnector(c Connector) StreamInOption {
	return func(f *Flow) {
		if f != nil && c != nil {
			f.appendOptions(WithConnector(c))
		}
	}
}

// StreamInObservability sets the Observability given to the feed and collector.
func StreamInObservability(obs Observability) StreamInOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutSink writes each valid sample batch to s instead of stdout.
func StreamOutSink(s Sink) StreamOutOption {
	return func(f *Flow) {
		if f != nil && s != nil {
			f.appendOptions(WithSink(s))
		}
	}
}

// StreamOutObservability is StreamInObservability for callers that think of
// metrics as output.
func StreamOutObservability(obs Observability) StreamOutOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutCallback hands each valid sample batch to fn.
func StreamOutCallback(name string, fn SampleBatchSink) StreamOutOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(WithSink(NewCallbackSink(name, fn)))
		}
	}
}

func (f *Flow) appendOptions(opts ...SubscriberOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
