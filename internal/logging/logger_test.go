package logging

import (
	"bytes"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelForVerbosity(t *testing.T) {
	cases := map[int]log.Level{
		VerbositySilent:    log.PanicLevel,
		VerbosityException: log.ErrorLevel,
		VerbosityWarning:   log.WarnLevel,
		VerbosityAll:       log.DebugLevel,
	}
	for v, want := range cases {
		got, err := LevelForVerbosity(v)
		require.NoError(t, err)
		assert.Equal(t, want, got, "verbosity %d", v)
	}

	_, err := LevelForVerbosity(7)
	assert.Error(t, err)
}

func TestInitWithOutputFiltersBelowLevel(t *testing.T) {
	orig := L().Out
	origLevel := L().GetLevel()
	t.Cleanup(func() {
		log.SetOutput(orig)
		log.SetLevel(origLevel)
	})

	var buf bytes.Buffer
	InitWithOutput(&buf, log.WarnLevel)

	For("test").Info("hidden")
	For("test").Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "pkg=test")
}
