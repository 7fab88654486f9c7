// Package engine implements the leakguard criteria evaluation engine.
//
// The engine holds up to MaxCriteria leak detection criteria in priority
// order. Each control cycle the owner calls Update with a sensor snapshot
// and the elapsed time, then Action to resolve the criteria into a single
// decision.
//
// ARCHITECTURE:
//
// Criteria:
// Criterion is a closed tagged variant (KindFlowRate, KindProbe). Every
// operation is an exhaustive switch on the kind; there is no interface
// dispatch and no heap allocation per criterion.
//
// Tick Processing:
//  1. Update fans the snapshot out to every criterion, in order, no early exit
//  2. Action scans criteria in order and returns the first match
//  3. If nothing matches, ir.DefaultAction() is returned
//
// Update and Action never fail. Collection changes (AddCriterion,
// RemoveCriterion) fail with a *CriteriaError and leave the engine unchanged.
//
// The engine performs no I/O, no logging and no locking. Cost per tick is
// O(MaxCriteria). Serialization lives in package codec; the control loop
// that owns an Engine lives in package controller.
//
// Deterministic Time:
// Elapsed time is supplied by the caller. The engine never samples a clock,
// so replaying the same ticks always reproduces the same decisions.
package engine
