package engine

import (
	"github.com/roach88/leakguard/internal/ir"
)

// MaxCriteria is the fixed capacity of an Engine.
const MaxCriteria = 10

// Engine holds an ordered, bounded set of criteria and resolves their
// outputs into one action per tick.
//
// Order is priority: the first criterion (by insertion position, after
// removals) whose evaluation yields an action wins.
//
// INVARIANTS:
//   - n <= MaxCriteria; failed mutations leave the engine untouched
//   - criteria[:n] keeps insertion order under removal (shift down, no tombstones)
//   - criteria[n:] are zero values
//
// Engine is not safe for concurrent use. It is owned by exactly one control
// loop; callers that share it must serialize access themselves.
type Engine struct {
	criteria [MaxCriteria]Criterion
	n        int
}

// New creates an empty engine.
func New() *Engine {
	return &Engine{}
}

// Update forwards the tick to every criterion in order. There is no early
// exit, so accumulators stay current for criteria that will not win.
func (e *Engine) Update(state *ir.SensorState, elapsed ir.Seconds) {
	for i := 0; i < e.n; i++ {
		e.criteria[i].Update(state, elapsed)
	}
}

// Action returns the first action yielded by the criteria in priority
// order, or ir.DefaultAction() when none match.
func (e *Engine) Action() ir.Action {
	action, _ := e.ActionWithIndex()
	return action
}

// ActionWithIndex is like Action but also returns the position of the
// winning criterion, or -1 when none matched.
func (e *Engine) ActionWithIndex() (ir.Action, int) {
	for i := 0; i < e.n; i++ {
		if action, ok := e.criteria[i].Evaluate(); ok {
			return action, i
		}
	}
	return ir.DefaultAction(), -1
}

// AddCriterion appends c at the lowest priority.
// Returns a CriteriaError matching ErrCapacityExceeded when full.
func (e *Engine) AddCriterion(c Criterion) error {
	if e.n >= MaxCriteria {
		return &CriteriaError{Code: ErrCodeCapacityExceeded, Len: e.n}
	}
	e.criteria[e.n] = c
	e.n++
	return nil
}

// RemoveCriterion removes the criterion at index, shifting later criteria
// down one position. Returns a CriteriaError matching ErrIndexOutOfRange
// for any index outside [0, Len()).
func (e *Engine) RemoveCriterion(index int) error {
	if index < 0 || index >= e.n {
		return &CriteriaError{Code: ErrCodeIndexOutOfRange, Index: index, Len: e.n}
	}
	copy(e.criteria[index:e.n], e.criteria[index+1:e.n])
	e.n--
	e.criteria[e.n] = Criterion{}
	return nil
}

// ClearCriteria removes every criterion.
func (e *Engine) ClearCriteria() {
	for i := 0; i < e.n; i++ {
		e.criteria[i] = Criterion{}
	}
	e.n = 0
}

// Reset clears the state of every criterion and keeps the configuration.
func (e *Engine) Reset() {
	for i := 0; i < e.n; i++ {
		e.criteria[i].Reset()
	}
}

// Len returns the number of criteria held.
func (e *Engine) Len() int {
	return e.n
}

// Cap returns the fixed capacity.
func (e *Engine) Cap() int {
	return MaxCriteria
}

// At returns a copy of the criterion at index.
func (e *Engine) At(index int) (Criterion, bool) {
	if index < 0 || index >= e.n {
		return Criterion{}, false
	}
	return e.criteria[index], true
}

// Criteria returns a copy of the criteria in priority order.
func (e *Engine) Criteria() []Criterion {
	out := make([]Criterion, e.n)
	copy(out, e.criteria[:e.n])
	return out
}
