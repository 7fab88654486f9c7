// Package controller owns a criteria engine and drives it from sensor
// readings.
//
// A Controller is the only code that touches its engine. Readings arrive
// either synchronously through Step or asynchronously through Enqueue and
// the single-writer Run loop. Each tick resolves to one ir.Action, which is
// handed to an Actuator and, when a store is attached, logged together with
// the reading so the run can later be replayed (Replay) or continued after
// a restart (Resume).
//
// Criteria can be changed while running (Reconfigure, RemoveCriterion,
// AddCriterion). Changes are logged in the same seq space as ticks.
package controller
