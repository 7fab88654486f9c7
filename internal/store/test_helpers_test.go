package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/leakguard/internal/ir"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun registers a run starting at seq 0 with document.
func createTestRun(t *testing.T, s *Store, token, document string) {
	t.Helper()
	if err := s.StartRun(context.Background(), Run{Token: token, Document: document}); err != nil {
		t.Fatalf("StartRun() failed: %v", err)
	}
}

// createTestTick builds a tick with a content-addressed ID.
func createTestTick(token string, seq int64, flow float32, elapsed ir.Seconds, action ir.Action, index int, probes ...uint8) Tick {
	tick := Tick{
		RunToken:       token,
		Seq:            seq,
		FlowRate:       flow,
		Probes:         probes,
		Elapsed:        elapsed,
		Action:         action,
		CriterionIndex: index,
		ConfigHash:     "test-hash",
	}
	if tick.Probes == nil {
		tick.Probes = []uint8{}
	}
	tick.ID = ir.MustTickID(token, seq, tick.State(), elapsed)
	return tick
}

// createTestChange builds a change with a content-addressed ID.
func createTestChange(token string, seq int64, kind ChangeKind, payload string) Change {
	id, err := ir.ChangeID(token, seq, string(kind), payload)
	if err != nil {
		panic(err)
	}
	return Change{
		ID:         id,
		RunToken:   token,
		Seq:        seq,
		Kind:       kind,
		Payload:    payload,
		ConfigHash: ir.ConfigHash(payload),
	}
}
