package store

import (
	"reflect"
	"testing"

	"github.com/roach88/leakguard/internal/ir"
)

func TestMarshalProbes(t *testing.T) {
	tests := []struct {
		name   string
		probes []uint8
		want   string
	}{
		{"nil", nil, "[]"},
		{"empty", []uint8{}, "[]"},
		{"single", []uint8{42}, "[42]"},
		{"bounds", []uint8{0, 255}, "[0,255]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := marshalProbes(tt.probes)
			if err != nil {
				t.Fatalf("marshalProbes() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnmarshalProbes(t *testing.T) {
	got, err := unmarshalProbes("[0,42,255]")
	if err != nil {
		t.Fatalf("unmarshalProbes() failed: %v", err)
	}
	if !reflect.DeepEqual(got, []uint8{0, 42, 255}) {
		t.Errorf("got %v", got)
	}

	for _, bad := range []string{"[256]", "[-1]", "not json", `"AQI="`} {
		if _, err := unmarshalProbes(bad); err == nil {
			t.Errorf("unmarshalProbes(%q) should fail", bad)
		}
	}
}

func TestUnmarshalAction(t *testing.T) {
	want := ir.NewProbeAction(9)
	actionType, reason, probeID := marshalAction(want)

	got, err := unmarshalAction(actionType, reason, probeID)
	if err != nil {
		t.Fatalf("unmarshalAction() failed: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if _, err := unmarshalAction("explode", "none", 255); err == nil {
		t.Error("expected error for unknown action type")
	}
	if _, err := unmarshalAction("no_action", "bogus", 255); err == nil {
		t.Error("expected error for unknown reason")
	}
	if _, err := unmarshalAction("no_action", "none", 300); err == nil {
		t.Error("expected error for out of range probe id")
	}
}
