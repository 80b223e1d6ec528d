// Package natsfeed carries shape topics over NATS. Every topic maps to three subjects
// under <prefix>.<domain>.<topic>: data, presence and discover.
package natsfeed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/ajmhs/training-listeners-read-write/internal/adapters/observability"
	"github.com/ajmhs/training-listeners-read-write/internal/logging"
	"github.com/ajmhs/training-listeners-read-write/internal/ports"
)

var logger = logging.For("natsfeed")

// Config describes the NATS connection and the presence lease used by writers.
type Config struct {
	URL         string        `yaml:"url"`
	Prefix      string        `yaml:"prefix"`
	Name        string        `yaml:"name"`
	Lease       time.Duration `yaml:"lease"`
	PendingMsgs int           `yaml:"pending_msgs"`
}

func (c *Config) ApplyDefaults() {
	if c.URL == "" {
		c.URL = nats.DefaultURL
	}
	if c.Prefix == "" {
		c.Prefix = "shapes"
	}
	if c.Name == "" {
		c.Name = "shapes"
	}
	if c.Lease <= 0 {
		c.Lease = 3 * time.Second
	}
	if c.PendingMsgs <= 0 {
		c.PendingMsgs = 65536
	}
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("url is required")
	}
	if err := validateToken(c.Prefix); err != nil {
		return fmt.Errorf("prefix %q: %w", c.Prefix, err)
	}
	if c.Lease < 10*time.Millisecond {
		return fmt.Errorf("lease %s is too short", c.Lease)
	}
	return nil
}

// Connector opens one NATS connection per Connect call.
type Connector struct {
	cfg  Config
	opts []nats.Option
	obs  ports.Observability
}

func NewConnector(cfg Config, obs ports.Observability, opts ...nats.Option) (*Connector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if obs == nil {
		obs = observability.NewLogObs("natsfeed")
	}
	return &Connector{cfg: cfg, opts: opts, obs: obs}, nil
}

func (c *Connector) Connect(ctx context.Context, domainID int) (ports.Feed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if domainID < 0 {
		return nil, fmt.Errorf("natsfeed: domain id %d must not be negative", domainID)
	}

	opts := []nats.Option{
		nats.Name(fmt.Sprintf("%s-d%d", c.cfg.Name, domainID)),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.WithError(err).Warn("disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("reconnected")
		}),
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}
	opts = append(opts, c.opts...)

	nc, err := nats.Connect(c.cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("natsfeed: connect %s: %w", c.cfg.URL, err)
	}
	logger.WithFields(log.Fields{
		"url":    nc.ConnectedUrl(),
		"domain": domainID,
	}).Debug("connected")

	return &Feed{
		nc:       nc,
		cfg:      c.cfg,
		domainID: domainID,
		obs:      c.obs,
	}, nil
}

// Feed is one NATS connection bound to a domain.
type Feed struct {
	nc       *nats.Conn
	cfg      Config
	domainID int
	obs      ports.Observability

	mu      sync.Mutex
	closed  bool
	subs    []*subscription
	writers []*writer
}

func (f *Feed) Subscribe(topic, typeName string) (ports.Subscription, error) {
	subj, err := subjectsFor(f.cfg.Prefix, f.domainID, topic)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ports.ErrFeedClosed
	}

	s := newSubscription(topic, typeName, f.cfg.Lease, f.obs)
	if err := s.attach(f.nc, subj, f.cfg.PendingMsgs); err != nil {
		return nil, fmt.Errorf("natsfeed: subscribe %s: %w", subj.data, err)
	}
	f.subs = append(f.subs, s)
	return s, nil
}

func (f *Feed) NewWriter(topic, typeName string) (ports.Writer, error) {
	subj, err := subjectsFor(f.cfg.Prefix, f.domainID, topic)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ports.ErrFeedClosed
	}

	w, err := startWriter(f.nc, subj, typeName, f.cfg.Lease)
	if err != nil {
		return nil, fmt.Errorf("natsfeed: writer on %s: %w", subj.data, err)
	}
	f.writers = append(f.writers, w)
	return w, nil
}

// Close unregisters writers, unsubscribes readers and closes the connection.
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	subs, writers := f.subs, f.writers
	f.subs, f.writers = nil, nil
	f.mu.Unlock()

	var errs []error
	for _, w := range writers {
		if err := w.Close(); err != nil && !errors.Is(err, ports.ErrFeedClosed) {
			errs = append(errs, err)
		}
	}
	for _, s := range subs {
		if err := s.Close(); err != nil && !errors.Is(err, ports.ErrFeedClosed) {
			errs = append(errs, err)
		}
	}
	if err := f.nc.Flush(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		errs = append(errs, err)
	}
	f.nc.Close()
	return errors.Join(errs...)
}

var (
	_ ports.Connector = (*Connector)(nil)
	_ ports.Feed      = (*Feed)(nil)
)
