package logrus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/retainstate"
)

func TestLogrusLoggerFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	cause := errors.New("boom")
	l.Warn("save aborted (provider failed)", retainstate.Fields{"key": "k", "err": cause})
	l.Debug("no fields", nil)

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, logrus.WarnLevel, entries[0].Level)
	assert.Equal(t, "k", entries[0].Data["key"])
	assert.Equal(t, cause, entries[0].Data[logrus.ErrorKey])
	assert.Equal(t, "retainstate", entries[0].Data["component"])
	assert.Equal(t, "no fields", entries[1].Message)
}
