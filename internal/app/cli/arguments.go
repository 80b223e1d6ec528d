// Package cli parses the subscriber command line.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"

	"github.com/ajmhs/training-listeners-read-write/internal/app/config"
	"github.com/ajmhs/training-listeners-read-write/internal/logging"
)

// ParseReturn tells the caller what to do after parsing.
type ParseReturn int

const (
	ParseOK ParseReturn = iota
	// ParseExit means help was printed; exit successfully without running.
	ParseExit
	ParseFailure
)

type Arguments struct {
	DomainID    int
	SampleCount uint64
	Verbosity   int
	ConfigPath  string
	FeedKind    string
	Topic       string

	set map[string]bool
}

// IsSet reports whether the named setting was given on the command line. Short and
// long spellings count as the same setting.
func (a Arguments) IsSet(name string) bool { return a.set[name] }

// Apply copies the explicitly given settings onto cfg.
func (a Arguments) Apply(cfg *config.Config) {
	if a.IsSet("domain") {
		cfg.DomainID = a.DomainID
	}
	if a.IsSet("sample-count") {
		cfg.SampleCount = a.SampleCount
	}
	if a.IsSet("verbosity") {
		cfg.Verbosity = a.Verbosity
	}
	if a.IsSet("feed") {
		cfg.Feed.Kind = a.FeedKind
	}
	if a.IsSet("topic") {
		cfg.Topic = a.Topic
	}
}

var aliases = map[string]string{
	"d": "domain",
	"s": "sample-count",
	"v": "verbosity",
}

// ParseArguments parses args (without the program name). Usage and errors go to stderr.
func ParseArguments(args []string, stderr io.Writer) (Arguments, ParseReturn) {
	a := Arguments{
		SampleCount: math.MaxUint64,
		Verbosity:   logging.VerbosityException,
		FeedKind:    config.FeedLoopback,
		Topic:       "Oblong",
	}

	fs := flag.NewFlagSet("shapes-subscriber", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: shapes-subscriber [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	const (
		domainUsage  = "Domain ID this application will subscribe in"
		countUsage   = "Number of samples to receive before cleanly shutting down (default: infinite)"
		verboseUsage = "How much debugging output to show, range 0-3"
	)
	fs.IntVar(&a.DomainID, "d", 0, domainUsage)
	fs.IntVar(&a.DomainID, "domain", 0, domainUsage)
	fs.Uint64Var(&a.SampleCount, "s", a.SampleCount, countUsage)
	fs.Uint64Var(&a.SampleCount, "sample-count", a.SampleCount, countUsage)
	fs.IntVar(&a.Verbosity, "v", a.Verbosity, verboseUsage)
	fs.IntVar(&a.Verbosity, "verbosity", a.Verbosity, verboseUsage)
	fs.StringVar(&a.ConfigPath, "config", "", "Path to a YAML configuration file")
	fs.StringVar(&a.FeedKind, "feed", a.FeedKind, "Feed to join: loopback, nats or opcua (use nats to read from shapes-publisher)")
	fs.StringVar(&a.Topic, "topic", a.Topic, "Topic to subscribe to")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return a, ParseExit
		}
		return a, ParseFailure
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected argument %q\n", fs.Arg(0))
		fs.Usage()
		return a, ParseFailure
	}

	a.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		name := f.Name
		if long, ok := aliases[name]; ok {
			name = long
		}
		a.set[name] = true
	})

	if a.IsSet("verbosity") {
		if _, err := logging.LevelForVerbosity(a.Verbosity); err != nil {
			fmt.Fprintf(stderr, "invalid -verbosity: %v\n", err)
			return a, ParseFailure
		}
	}
	if a.IsSet("domain") && a.DomainID < 0 {
		fmt.Fprintf(stderr, "invalid -domain %d: must not be negative\n", a.DomainID)
		return a, ParseFailure
	}
	switch a.FeedKind {
	case config.FeedLoopback, config.FeedNATS, config.FeedOPCUA:
	default:
		fmt.Fprintf(stderr, "invalid -feed %q\n", a.FeedKind)
		return a, ParseFailure
	}

	return a, ParseOK
}
