// Package subscriber wires a feed, the bounded collector and the emit sinks into the
// shapes subscriber application.
package subscriber

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/ajmhs/training-listeners-read-write/internal/adapters/memfeed"
	"github.com/ajmhs/training-listeners-read-write/internal/adapters/natsfeed"
	"github.com/ajmhs/training-listeners-read-write/internal/adapters/observability"
	"github.com/ajmhs/training-listeners-read-write/internal/adapters/opcua"
	"github.com/ajmhs/training-listeners-read-write/internal/adapters/sink"
	"github.com/ajmhs/training-listeners-read-write/internal/app/config"
	"github.com/ajmhs/training-listeners-read-write/internal/app/generator"
	"github.com/ajmhs/training-listeners-read-write/internal/collector"
	"github.com/ajmhs/training-listeners-read-write/internal/domain"
	"github.com/ajmhs/training-listeners-read-write/internal/logging"
	"github.com/ajmhs/training-listeners-read-write/internal/ports"
)

var logger = logging.For("subscriber")

// Option customizes the dependencies used by App.
type Option func(*overrides)

type overrides struct {
	connector     ports.Connector
	sink          ports.Sink
	observability ports.Observability
	out           io.Writer
}

// WithConnector replaces the feed selected by feed.kind.
func WithConnector(c ports.Connector) Option {
	return func(o *overrides) {
		o.connector = c
	}
}

// WithSink replaces the stdout printer and the Postgres recorder.
func WithSink(s ports.Sink) Option {
	return func(o *overrides) {
		o.sink = s
	}
}

// WithObservability replaces the Prometheus backend.
func WithObservability(obs ports.Observability) Option {
	return func(o *overrides) {
		o.observability = obs
	}
}

// WithOutput redirects status lines and printed samples. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(o *overrides) {
		o.out = w
	}
}

// Result summarizes a finished run.
type Result struct {
	State       collector.State
	SamplesRead uint64
}

type App struct {
	cfg        *config.Config
	obs        ports.Observability
	connector  ports.Connector
	sink       ports.Sink
	customSink bool
	out        io.Writer
	db         *sql.DB
	metricsSrv *http.Server
}

// New builds the default adapters for cfg. Options override any of them.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var o overrides
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	obs := o.observability
	if obs == nil {
		obs = observability.NewPromObs()
	}
	out := o.out
	if out == nil {
		out = os.Stdout
	}

	conn := o.connector
	if conn == nil {
		var err error
		conn, err = newConnector(cfg, obs)
		if err != nil {
			return nil, err
		}
	}

	return &App{
		cfg:        cfg,
		obs:        obs,
		connector:  conn,
		sink:       o.sink,
		customSink: o.sink != nil,
		out:        out,
	}, nil
}

func newConnector(cfg *config.Config, obs ports.Observability) (ports.Connector, error) {
	switch cfg.Feed.Kind {
	case config.FeedLoopback, "":
		return memfeed.NewConnector(cfg.Feed.Loopback.Policy, obs), nil
	case config.FeedNATS:
		c, err := natsfeed.NewConnector(cfg.Feed.NATS, obs)
		if err != nil {
			return nil, fmt.Errorf("nats feed: %w", err)
		}
		return c, nil
	case config.FeedOPCUA:
		c, err := opcua.NewConnector(cfg.Feed.OPCUA, obs)
		if err != nil {
			return nil, fmt.Errorf("opcua feed: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown feed kind %q", cfg.Feed.Kind)
	}
}

// Run joins the domain, subscribes to the configured topic and blocks until the sample
// target is reached or ctx is cancelled. Resources are released on every path.
func (a *App) Run(ctx context.Context) (res Result, err error) {
	if a == nil {
		return res, fmt.Errorf("app is nil")
	}
	res.State = collector.StateInitializing

	if err := a.prepareSink(ctx); err != nil {
		return res, err
	}
	defer func() {
		if a.db != nil {
			err = errors.Join(err, a.db.Close())
			a.db = nil
		}
	}()

	feed, err := a.connector.Connect(ctx, a.cfg.DomainID)
	if err != nil {
		return res, fmt.Errorf("join domain %d: %w", a.cfg.DomainID, err)
	}
	defer func() {
		err = errors.Join(err, feed.Close())
	}()

	sub, err := feed.Subscribe(a.cfg.Topic, domain.ShapeTypeName)
	if err != nil {
		return res, fmt.Errorf("subscribe %s: %w", a.cfg.Topic, err)
	}

	col := collector.New(a.cfg.SampleCount,
		collector.WithSink(a.sink),
		collector.WithObservability(a.obs),
		collector.WithWaitInterval(a.cfg.WaitInterval),
		collector.WithOutput(a.out),
	)
	sub.SetListener(col)

	stopDemo, err := a.startDemoWriter(feed)
	if err != nil {
		_ = sub.Close()
		return res, err
	}

	a.startMetrics()

	logger.WithFields(log.Fields{
		"domain": a.cfg.DomainID,
		"topic":  a.cfg.Topic,
		"feed":   a.cfg.Feed.Kind,
		"target": a.cfg.SampleCount,
	}).Info("subscriber running")

	res.State = col.Run(ctx)
	res.SamplesRead = col.SamplesRead()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if e := stopDemo(); e != nil {
		errs = append(errs, e)
	}
	if e := sub.Close(); e != nil && !errors.Is(e, ports.ErrFeedClosed) {
		errs = append(errs, e)
	}
	if e := a.Shutdown(shutdownCtx); e != nil {
		errs = append(errs, e)
	}
	return res, errors.Join(errs...)
}

// Shutdown stops the metrics server.
func (a *App) Shutdown(ctx context.Context) error {
	if a.metricsSrv == nil {
		return nil
	}
	srv := a.metricsSrv
	a.metricsSrv = nil
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) prepareSink(ctx context.Context) error {
	if a.customSink {
		return nil
	}
	sinks := []ports.Sink{sink.NewStdoutSink(a.out)}
	if a.cfg.Record.ConnString != "" {
		db, err := sink.OpenPostgres(ctx, a.cfg.Record.ConnString)
		if err != nil {
			return err
		}
		pg := sink.NewPostgresSink(db, a.cfg.Record.Table)
		if err := pg.EnsureTable(ctx); err != nil {
			db.Close()
			return fmt.Errorf("create table %s: %w", a.cfg.Record.Table, err)
		}
		a.db = db
		sinks = append(sinks, pg)
	}
	if len(sinks) == 1 {
		a.sink = sinks[0]
	} else {
		a.sink = sink.NewFanout(sinks...)
	}
	return nil
}

// startDemoWriter publishes bouncing shapes on the subscribed topic when the loopback
// feed asks for it. The returned func stops the writer and closes it.
func (a *App) startDemoWriter(feed ports.Feed) (func() error, error) {
	lb := a.cfg.Feed.Loopback
	if a.cfg.Feed.Kind != config.FeedLoopback || !lb.DemoWriter {
		return func() error { return nil }, nil
	}

	w, err := feed.NewWriter(a.cfg.Topic, domain.ShapeTypeName)
	if err != nil {
		return nil, fmt.Errorf("demo writer on %s: %w", a.cfg.Topic, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var (
		wg     sync.WaitGroup
		runErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		runErr = generator.NewBouncer(lb.Color, 0).Run(ctx, w, lb.PublishInterval, 0)
	}()

	return func() error {
		cancel()
		wg.Wait()
		err := w.Close()
		if errors.Is(runErr, ports.ErrFeedClosed) {
			runErr = nil
		}
		if errors.Is(err, ports.ErrFeedClosed) {
			err = nil
		}
		return errors.Join(runErr, err)
	}, nil
}

// metricsHandler serves the observability registry when it has one.
func (a *App) metricsHandler() http.Handler {
	if h, ok := a.obs.(interface{ Handler() http.Handler }); ok {
		return h.Handler()
	}
	return promhttp.Handler()
}

func (a *App) startMetrics() {
	if a.cfg.Metrics.Addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.metricsSrv = srv

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server exited")
		}
	}()
}
