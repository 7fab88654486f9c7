package controller

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/leakguard/internal/codec"
	"github.com/roach88/leakguard/internal/engine"
	"github.com/roach88/leakguard/internal/ir"
	"github.com/roach88/leakguard/internal/store"
)

// Decision is the outcome of one tick.
type Decision struct {
	Seq      int64
	TickID   string
	RunToken string
	Reading  Reading
	Action   ir.Action

	// CriterionIndex is the position of the winning criterion, or -1.
	CriterionIndex int

	// ConfigHash identifies the criteria document the tick was decided under.
	ConfigHash string
}

// Controller is the single owner of an engine.
//
// It feeds readings to the engine, hands each resolved action to an
// Actuator, and logs ticks and criteria changes to an optional store so a
// run can be replayed or resumed.
//
// Thread-safety model:
//   - Step, Reconfigure, RemoveCriterion, AddCriterion: serialized by an
//     internal mutex; safe from any goroutine
//   - Enqueue: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//
// The engine itself is never touched outside the mutex.
type Controller struct {
	mu sync.Mutex

	eng      *engine.Engine
	store    *store.Store
	actuator Actuator
	logger   *slog.Logger
	metrics  *Metrics
	tokens   TokenGenerator
	clock    SeqClock
	observer func(Decision)
	queue    *eventQueue

	runToken   string
	configHash string
	started    bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithStore logs every tick and change to s.
func WithStore(s *store.Store) Option {
	return func(c *Controller) {
		c.store = s
	}
}

// WithActuator sets the actuator. Default: a LogActuator on the
// controller's logger.
func WithActuator(a Actuator) Option {
	return func(c *Controller) {
		c.actuator = a
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithMetrics registers controller metrics with reg.
// A nil registerer disables metrics.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Controller) {
		c.metrics = newMetrics(reg)
	}
}

// WithTokenGenerator sets the run token source. Default: UUIDv7Generator.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(c *Controller) {
		c.tokens = g
	}
}

// SeqClock stamps ticks and changes with strictly increasing seq numbers.
// Implemented by engine.Clock.
type SeqClock interface {
	Next() int64
	Current() int64
}

// WithClock sets the logical clock that stamps seq numbers.
func WithClock(clock SeqClock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithObserver registers fn to receive every decision after it has been
// actuated and logged. fn runs under the controller's lock and must not
// call back into the controller.
func WithObserver(fn func(Decision)) Option {
	return func(c *Controller) {
		c.observer = fn
	}
}

// New creates a controller that owns eng. A nil eng starts empty.
//
// The controller takes exclusive ownership: callers must not touch eng
// after handing it over.
func New(eng *engine.Engine, opts ...Option) *Controller {
	if eng == nil {
		eng = engine.New()
	}

	c := &Controller{
		eng:    eng,
		logger: slog.Default(),
		tokens: UUIDv7Generator{},
		clock:  engine.NewClock(),
		queue:  newEventQueue(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.actuator == nil {
		c.actuator = NewLogActuator(c.logger)
	}

	return c
}

// Start begins a run: it assigns the run token and registers the starting
// document with the store. It is called implicitly by the first Step or
// criteria change; calling it again is a no-op.
//
// The engine is re-decoded from its own document so the live criteria
// match exactly what is persisted (thresholds are stored to two decimals).
// This also resets criterion state.
func (c *Controller) Start(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startLocked(ctx)
}

func (c *Controller) startLocked(ctx context.Context) (string, error) {
	if c.started {
		return c.runToken, nil
	}

	document := codec.Encode(c.eng)
	c.eng.ClearCriteria()
	codec.Decode(c.eng, document)

	if c.runToken == "" {
		c.runToken = c.tokens.Generate()
	}
	c.configHash = ir.ConfigHash(document)

	if c.store != nil {
		err := c.store.StartRun(ctx, store.Run{
			Token:      c.runToken,
			Document:   document,
			ConfigHash: c.configHash,
			StartSeq:   c.clock.Current(),
		})
		if err != nil {
			return "", fmt.Errorf("start run %s: %w", c.runToken, err)
		}
	}

	c.started = true
	if c.metrics != nil {
		c.metrics.activeCriteria.Set(float64(c.eng.Len()))
	}

	c.logger.InfoContext(ctx, "run started",
		"run_token", c.runToken,
		"criteria", c.eng.Len(),
		"config_hash", c.configHash,
	)

	return c.runToken, nil
}

// Step processes one reading synchronously: update every criterion,
// resolve the action, actuate, log.
//
// Invalid readings are rejected before touching the engine. Actuator
// failures are logged and counted but not returned. A store failure is
// returned together with the (already actuated) decision.
func (c *Controller) Step(ctx context.Context, r Reading) (Decision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.startLocked(ctx); err != nil {
		return Decision{}, err
	}

	if err := r.Validate(); err != nil {
		if c.metrics != nil {
			c.metrics.rejectedTotal.Inc()
		}
		return Decision{}, fmt.Errorf("step: %w", err)
	}

	state := r.State()
	seq := c.clock.Next()

	c.eng.Update(state, r.Elapsed)
	action, index := c.eng.ActionWithIndex()

	tickID, err := ir.TickID(c.runToken, seq, state, r.Elapsed)
	if err != nil {
		return Decision{}, fmt.Errorf("step seq %d: %w", seq, err)
	}

	d := Decision{
		Seq:            seq,
		TickID:         tickID,
		RunToken:       c.runToken,
		Reading:        r,
		Action:         action,
		CriterionIndex: index,
		ConfigHash:     c.configHash,
	}

	if c.metrics != nil {
		c.metrics.ticksTotal.Inc()
		c.metrics.decisionsTotal.WithLabelValues(action.Type.String(), action.Reason.String()).Inc()
	}

	c.logger.DebugContext(ctx, "tick",
		"seq", seq,
		"flow_rate", r.FlowRate,
		"elapsed", int64(r.Elapsed),
		"action", action.String(),
		"criterion_index", index,
	)

	if err := c.actuator.Apply(ctx, action); err != nil {
		if c.metrics != nil {
			c.metrics.actuationErrorsTotal.Inc()
		}
		c.logger.ErrorContext(ctx, "actuation failed",
			"error", err,
			"seq", seq,
			"action", action.String(),
		)
	}

	var storeErr error
	if c.store != nil {
		err := c.store.WriteTick(ctx, store.Tick{
			ID:             tickID,
			RunToken:       c.runToken,
			Seq:            seq,
			FlowRate:       r.FlowRate,
			Probes:         state.Probes.Active(),
			Elapsed:        r.Elapsed,
			Action:         action,
			CriterionIndex: index,
			ConfigHash:     c.configHash,
		})
		if err != nil {
			if c.metrics != nil {
				c.metrics.storeErrorsTotal.Inc()
			}
			storeErr = fmt.Errorf("step seq %d: %w", seq, err)
		}
	}

	if c.observer != nil {
		c.observer(d)
	}

	return d, storeErr
}

// Reconfigure replaces every criterion with those decoded from document.
//
// Decoding is permissive: malformed records are skipped (and logged) and
// records beyond capacity are dropped. Returns the number of criteria
// now held.
func (c *Controller) Reconfigure(ctx context.Context, document string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.startLocked(ctx); err != nil {
		return 0, err
	}

	if errs := codec.Validate(document); len(errs) > 0 {
		c.logger.WarnContext(ctx, "criteria document has skipped records",
			"skipped", len(errs),
			"first", errs[0].Error(),
		)
	}

	if err := applyChange(c.eng, store.ChangeReconfigure, document); err != nil {
		return c.eng.Len(), c.reject(err)
	}
	return c.eng.Len(), c.recordChangeLocked(ctx, store.ChangeReconfigure, document)
}

// RemoveCriterion removes the criterion at index; later criteria move up
// one position. An out of range index leaves the engine untouched.
func (c *Controller) RemoveCriterion(ctx context.Context, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.startLocked(ctx); err != nil {
		return err
	}

	payload := strconv.Itoa(index)
	if err := applyChange(c.eng, store.ChangeRemove, payload); err != nil {
		return c.reject(err)
	}
	return c.recordChangeLocked(ctx, store.ChangeRemove, payload)
}

// AddCriterion appends cr at the lowest priority.
//
// cr goes through the codec before it reaches the engine, so its threshold
// is truncated to two decimals exactly as it would be after a restart.
func (c *Controller) AddCriterion(ctx context.Context, cr engine.Criterion) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.startLocked(ctx); err != nil {
		return err
	}

	record := codec.EncodeCriterion(cr)
	if err := applyChange(c.eng, store.ChangeAdd, record); err != nil {
		return c.reject(err)
	}
	return c.recordChangeLocked(ctx, store.ChangeAdd, record)
}

func (c *Controller) reject(err error) error {
	if c.metrics != nil {
		c.metrics.rejectedTotal.Inc()
	}
	return err
}

// recordChangeLocked stamps an applied change, refreshes the config hash
// and logs the change. The engine has already been mutated; a store error
// is returned but not rolled back.
func (c *Controller) recordChangeLocked(ctx context.Context, kind store.ChangeKind, payload string) error {
	seq := c.clock.Next()
	c.configHash = ir.ConfigHash(codec.Encode(c.eng))

	if c.metrics != nil {
		c.metrics.changesTotal.WithLabelValues(string(kind)).Inc()
		c.metrics.activeCriteria.Set(float64(c.eng.Len()))
	}

	c.logger.InfoContext(ctx, "criteria changed",
		"seq", seq,
		"kind", string(kind),
		"criteria", c.eng.Len(),
		"config_hash", c.configHash,
	)

	if c.store == nil {
		return nil
	}

	id, err := ir.ChangeID(c.runToken, seq, string(kind), payload)
	if err != nil {
		return fmt.Errorf("%s seq %d: %w", kind, seq, err)
	}

	err = c.store.WriteChange(ctx, store.Change{
		ID:         id,
		RunToken:   c.runToken,
		Seq:        seq,
		Kind:       kind,
		Payload:    payload,
		ConfigHash: c.configHash,
	})
	if err != nil {
		if c.metrics != nil {
			c.metrics.storeErrorsTotal.Inc()
		}
		return fmt.Errorf("%s seq %d: %w", kind, seq, err)
	}
	return nil
}

// RunToken returns the token of the current run, or "" before Start.
func (c *Controller) RunToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runToken
}

// ConfigHash returns the hash of the criteria document in effect.
func (c *Controller) ConfigHash() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.configHash
}

// Document returns the serialized criteria currently held.
func (c *Controller) Document() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return codec.Encode(c.eng)
}

// Criteria returns a copy of the criteria currently held, with state.
func (c *Controller) Criteria() []engine.Criterion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eng.Criteria()
}

// Seq returns the last seq stamped by the controller.
func (c *Controller) Seq() int64 {
	return c.clock.Current()
}
