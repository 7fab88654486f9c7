package controller

import (
	"context"
	"log/slog"

	"github.com/roach88/leakguard/internal/ir"
)

// Actuator carries out the action decided on each tick.
//
// Apply is called once per tick, including for NoAction, so an actuator
// can reopen or keep state as it sees fit. Errors are logged and counted by
// the controller; they never stop the control loop.
type Actuator interface {
	Apply(ctx context.Context, action ir.Action) error
}

// ActuatorFunc adapts a function to the Actuator interface.
type ActuatorFunc func(ctx context.Context, action ir.Action) error

// Apply calls f.
func (f ActuatorFunc) Apply(ctx context.Context, action ir.Action) error {
	return f(ctx, action)
}

// LogActuator reports decisions through slog instead of driving hardware.
// Transitions are logged at Info, steady state at Debug.
type LogActuator struct {
	Logger *slog.Logger

	last    ir.Action
	started bool
}

// NewLogActuator creates a LogActuator. A nil logger uses slog.Default().
func NewLogActuator(logger *slog.Logger) *LogActuator {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogActuator{Logger: logger}
}

// Apply implements Actuator.
func (a *LogActuator) Apply(ctx context.Context, action ir.Action) error {
	attrs := []any{"action", action.Type.String(), "reason", action.Reason.String()}
	if action.HasProbe() {
		attrs = append(attrs, "probe_id", action.ProbeID)
	}

	if !a.started || action != a.last {
		a.Logger.InfoContext(ctx, "valve action changed", attrs...)
	} else {
		a.Logger.DebugContext(ctx, "valve action unchanged", attrs...)
	}

	a.started = true
	a.last = action
	return nil
}
