package sloghooks

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/retainstate/internal/util"
)

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, ln := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if ln == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(ln), &m))
		out = append(out, m)
	}
	return out
}

func newLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRedactsKeysByDefault(t *testing.T) {
	var buf bytes.Buffer
	h := New(newLogger(&buf), Options{})

	h.ProviderFailed("user:secret", errors.New("boom"))

	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "retainstate.provider_failed", got[0]["msg"])
	assert.Equal(t, util.Redact("user:secret"), got[0]["key"])
	assert.Equal(t, "boom", got[0]["err"])
}

func TestPlainKeysAndCustomRedact(t *testing.T) {
	var buf bytes.Buffer
	New(newLogger(&buf), Options{PlainKeys: true}).SnapshotRejected("editor", "stale_epoch")
	New(newLogger(&buf), Options{Redact: func(string) string { return "***" }}).ValueConsumed("k")

	got := lines(t, &buf)
	require.Len(t, got, 2)
	assert.Equal(t, "editor", got[0]["host"])
	assert.Equal(t, "stale_epoch", got[0]["reason"])
	assert.Equal(t, "***", got[1]["key"])
}

func TestSampling(t *testing.T) {
	var buf bytes.Buffer
	h := New(newLogger(&buf), Options{ConsumeEvery: 3})
	for i := 0; i < 9; i++ {
		h.ValueConsumed("k")
	}
	assert.Len(t, lines(t, &buf), 3)
}

func TestNilLogger(t *testing.T) {
	h := New(nil, Options{})
	assert.NotPanics(t, func() {
		h.ValueSaved("k", 1)
		h.UnclaimedForgotten(1, 2)
		h.SaveSkipped("id")
	})
}
