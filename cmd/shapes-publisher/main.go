// Command shapes-publisher writes bouncing shapes on a NATS topic so shapes-subscriber
// has something to read. Start the subscriber with -feed nats to see them; its default
// loopback feed only reaches writers inside the same process.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ajmhs/training-listeners-read-write/internal/adapters/natsfeed"
	"github.com/ajmhs/training-listeners-read-write/internal/app/config"
	"github.com/ajmhs/training-listeners-read-write/internal/app/generator"
	"github.com/ajmhs/training-listeners-read-write/internal/domain"
	"github.com/ajmhs/training-listeners-read-write/internal/logging"
)

var logger = logging.For("publisher")

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		logger.WithError(err).Error("publisher failed")
		os.Exit(1)
	}
}

const usageHeader = `Usage: shapes-publisher [options]

Writes bouncing shapes to a NATS server. Pair it with a subscriber on the same
server, domain and topic:

    shapes-publisher -topic Oblong
    shapes-subscriber -feed nats -topic Oblong

The subscriber's default loopback feed does not see this publisher.

Options:
`

func run(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("shapes-publisher", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usageHeader)
		fs.PrintDefaults()
	}
	cfgPath := fs.String("config", "", "Path to a YAML configuration file (feed.nats is used)")
	domainID := fs.Int("domain", 0, "Domain ID to publish in")
	topic := fs.String("topic", "Oblong", "Topic to publish on")
	color := fs.String("color", "BLUE", "Shape color (instance key)")
	size := fs.Int("size", 30, "Shape size")
	interval := fs.Duration("interval", 100*time.Millisecond, "Publish interval")
	count := fs.Uint64("count", 0, "Number of samples to write (0 = until interrupted)")
	verbosity := fs.Int("verbosity", logging.VerbosityException, "How much debugging output to show, range 0-3")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	level, err := logging.LevelForVerbosity(*verbosity)
	if err != nil {
		return err
	}
	logging.Init(level)

	natsCfg := natsfeed.Config{}
	if *cfgPath != "" {
		cfg, err := config.Load(*cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		natsCfg = cfg.Feed.NATS
	}

	conn, err := natsfeed.NewConnector(natsCfg, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	feed, err := conn.Connect(ctx, *domainID)
	if err != nil {
		return err
	}
	defer feed.Close()

	w, err := feed.NewWriter(*topic, domain.ShapeTypeName)
	if err != nil {
		return err
	}
	defer w.Close()

	logger.WithField("topic", *topic).WithField("color", *color).Info("publishing")
	return generator.NewBouncer(*color, int32(*size)).Run(ctx, w, *interval, *count)
}
