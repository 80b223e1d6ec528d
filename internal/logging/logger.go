package logging

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// Verbosity levels accepted on the command line.
const (
	VerbositySilent    = 0
	VerbosityException = 1
	VerbosityWarning   = 2
	VerbosityAll       = 3
)

// Init configures the standard logrus logger. Diagnostics go to stderr so that
// samples printed on stdout stay machine readable.
func Init(level log.Level) {
	InitWithOutput(os.Stderr, level)
}

func InitWithOutput(w io.Writer, level log.Level) {
	log.SetOutput(w)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(level)
}

// LevelForVerbosity maps a command-line verbosity onto a logrus level.
func LevelForVerbosity(v int) (log.Level, error) {
	switch v {
	case VerbositySilent:
		return log.PanicLevel, nil
	case VerbosityException:
		return log.ErrorLevel, nil
	case VerbosityWarning:
		return log.WarnLevel, nil
	case VerbosityAll:
		return log.DebugLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("verbosity %d out of range [%d, %d]", v, VerbositySilent, VerbosityAll)
	}
}

// For returns a logger entry tagged with the package name.
func For(pkg string) *log.Entry {
	return log.WithField("pkg", pkg)
}

func L() *log.Logger { return log.StandardLogger() }
