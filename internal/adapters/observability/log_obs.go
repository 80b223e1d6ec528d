package observability

import (
	log "github.com/sirupsen/logrus"

	"github.com/ajmhs/training-listeners-read-write/internal/domain"
	"github.com/ajmhs/training-listeners-read-write/internal/logging"
	"github.com/ajmhs/training-listeners-read-write/internal/ports"
)

// LogObs writes logs through logrus and discards metrics. It needs no registry, which
// makes it the fallback for adapters constructed without observability.
type LogObs struct {
	logger *log.Entry
}

func NewLogObs(component string) *LogObs {
	return &LogObs{logger: logging.For(component)}
}

func (l *LogObs) LogInfo(msg string, fields ...ports.Field) {
	l.logger.WithFields(toLogFields(fields)).Info(msg)
}

func (l *LogObs) LogError(msg string, err error, fields ...ports.Field) {
	if err != nil {
		l.logger.WithFields(toLogFields(fields)).WithError(err).Error(msg)
	}
}

func (l *LogObs) LogCritical(msg string, err error, fields ...ports.Field) {
	if err != nil {
		l.logger.WithFields(toLogFields(fields)).WithError(err).WithField("severity", "critical").Error(msg)
	}
}

func (l *LogObs) IncCounter(string, float64)     {}
func (l *LogObs) ObserveLatency(string, float64) {}
func (l *LogObs) SetGauge(string, float64)       {}
func (l *LogObs) AddGauge(string, float64)       {}
func (l *LogObs) RecordInvalid(*domain.Sample)   {}

var _ ports.Observability = (*LogObs)(nil)
