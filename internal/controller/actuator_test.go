package controller

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/leakguard/internal/ir"
)

func TestLogActuator_LogsTransitionsAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	a := NewLogActuator(logger)
	ctx := context.Background()

	require.NoError(t, a.Apply(ctx, ir.DefaultAction()))
	require.NoError(t, a.Apply(ctx, ir.DefaultAction()))
	require.NoError(t, a.Apply(ctx, ir.NewProbeAction(42)))
	require.NoError(t, a.Apply(ctx, ir.NewProbeAction(42)))

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "valve action changed"))
	assert.Contains(t, out, "probe_id=42")
	assert.NotContains(t, out, "valve action unchanged")
}

func TestNewLogActuator_NilLogger(t *testing.T) {
	a := NewLogActuator(nil)
	assert.NotNil(t, a.Logger)
}

func TestActuatorFunc(t *testing.T) {
	var got ir.Action
	f := ActuatorFunc(func(_ context.Context, a ir.Action) error {
		got = a
		return nil
	})

	require.NoError(t, f.Apply(context.Background(), ir.NewProbeAction(1)))
	assert.Equal(t, ir.NewProbeAction(1), got)
}
