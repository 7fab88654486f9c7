// Package harness runs scenario tests against the leak controller.
//
// A scenario starts a controller run from a criteria document or a CUE
// configuration, drives it with readings and criteria changes, and checks
// the decisions it made. Every run uses the real engine, codec and store, so
// a passing scenario exercises the same path as production.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	criteria: "T,200,60,|"          # or config: path/to/config.cue
//	run_token: run-1                # optional
//	steps:
//	  - tick: {flow_rate: 3, elapsed: 30, probes: [42]}
//	    expect: {action: close_valve, reason: exceeded_flow_rate}
//	  - remove: 0
//	  - add: "T,200,15,"
//	  - reconfigure: "P,42,|"
//	  - restart: true
//	  - remove: 9
//	    expect_error: INDEX_OUT_OF_RANGE
//	assertions:
//	  - type: encoded
//	    document: "P,42,|"
//	  - type: action_count
//	    action: close_valve
//	    count: 1
//
// # Assertion Types
//
//   - encoded: the criteria document after the last step
//   - action_count: ticks with an action (and optional reason) occur N times
//   - first_trip: seq of the first close_valve decision
//   - replay_ok: the logged run replays to identical decisions
//
// # Deterministic Testing
//
// The harness uses:
//   - Fixed run tokens (testutil.FixedRunToken)
//   - Deterministic logical clock (testutil.DeterministicClock)
//   - In-memory SQLite database (isolated per scenario)
//
// This ensures identical traces across runs for golden file comparison.
package harness
