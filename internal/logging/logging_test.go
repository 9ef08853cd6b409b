package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" DEBUG ": zapcore.DebugLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNew_BuildsLoggerForEachEnv(t *testing.T) {
	for _, env := range []string{"dev", "prod", ""} {
		l := New(Config{Env: env, Level: "debug", Fields: map[string]string{"run": "r1"}})
		require.NotNil(t, l, "env %q", env)
		assert.True(t, l.Core().Enabled(zapcore.DebugLevel), "env %q", env)
	}
}

func TestAdapter_ForwardsKeyValues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a := NewAdapter(zap.New(core))
	ctx := context.Background()

	a.Debug(ctx, "polling", "attempt", 2)
	a.Info(ctx, "topology discovered", "localDC", "us-east")
	a.Error(ctx, "convergence failed", "error", "timeout")

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, int64(2), entries[0].ContextMap()["attempt"])

	assert.Equal(t, "topology discovered", entries[1].Message)
	assert.Equal(t, "us-east", entries[1].ContextMap()["localDC"])

	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

func TestNewAdapter_NilLoggerIsNop(t *testing.T) {
	a := NewAdapter(nil)

	assert.NotPanics(t, func() {
		a.Info(context.Background(), "ignored", "k", "v")
	})
}
