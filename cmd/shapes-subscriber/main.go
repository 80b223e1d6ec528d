package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ajmhs/training-listeners-read-write/internal/app/cli"
	"github.com/ajmhs/training-listeners-read-write/internal/app/config"
	"github.com/ajmhs/training-listeners-read-write/internal/app/subscriber"
	"github.com/ajmhs/training-listeners-read-write/internal/logging"
)

var logger = logging.For("main")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	arguments, ret := cli.ParseArguments(args, stderr)
	switch ret {
	case cli.ParseExit:
		return 0
	case cli.ParseFailure:
		return 1
	}

	cfg := config.Default()
	if arguments.ConfigPath != "" {
		var err error
		cfg, err = config.Load(arguments.ConfigPath)
		if err != nil {
			fmt.Fprintf(stderr, "load config: %v\n", err)
			return 1
		}
	}
	arguments.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 1
	}

	level, err := logging.LevelForVerbosity(cfg.Verbosity)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	logging.InitWithOutput(stderr, level)

	app, err := subscriber.New(cfg, subscriber.WithOutput(stdout))
	if err != nil {
		logger.WithError(err).Error("setup failed")
		fmt.Fprintf(stderr, "setup failed: %v\n", err)
		return 1
	}

	res, err := app.Run(ctx)
	if err != nil {
		logger.WithError(err).Error("subscriber failed")
		fmt.Fprintf(stderr, "subscriber failed: %v\n", err)
		return 1
	}
	logger.WithField("state", res.State.String()).
		WithField("samples_read", res.SamplesRead).
		Info("subscriber finished")
	return 0
}
