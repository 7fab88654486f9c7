package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainTick   = "leakguard/tick/v1"
	DomainChange = "leakguard/change/v1"
	DomainConfig = "leakguard/config/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ConfigHash identifies a serialized criteria document.
// Identical documents always hash identically, independent of when
// or under which name they were saved.
func ConfigHash(document string) string {
	return hashWithDomain(DomainConfig, []byte(document))
}

// TickID computes the content-addressed ID of a logged tick.
//
// The flow rate is hashed through its float32 bit pattern because
// canonical JSON forbids floats; the bits are exact and stable.
func TickID(runToken string, seq int64, state *SensorState, elapsed Seconds) (string, error) {
	probes := []any{}
	if state.Probes != nil {
		for _, id := range state.Probes.Active() {
			probes = append(probes, id)
		}
	}

	obj := map[string]any{
		"run_token":      runToken,
		"seq":            seq,
		"flow_rate_bits": int64(math.Float32bits(state.FlowRate)),
		"probes":         probes,
		"elapsed":        elapsed,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("TickID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTick, canonical), nil
}

// MustTickID is like TickID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustTickID(runToken string, seq int64, state *SensorState, elapsed Seconds) string {
	id, err := TickID(runToken, seq, state, elapsed)
	if err != nil {
		panic(err)
	}
	return id
}

// ChangeID computes the content-addressed ID of a logged criteria change.
// kind names the change ("reconfigure", "remove", "add"); payload is its
// textual argument (a document, an index, or a single record).
func ChangeID(runToken string, seq int64, kind, payload string) (string, error) {
	obj := map[string]any{
		"run_token": runToken,
		"seq":       seq,
		"kind":      kind,
		"payload":   payload,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ChangeID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainChange, canonical), nil
}
