// Package ir provides the value types shared by every leakguard package.
//
// This package contains type definitions and their canonical encoding only.
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Fixed-size probe buffer (MaxProbes), passed by pointer on every tick
//   - Action is a value; the zero value is NOT the default action, use DefaultAction
//   - Canonical JSON forbids floats; flow rates enter hashes as float32 bits
//   - Logical clocks (seq) only, never wall-clock timestamps
package ir
