package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/leakguard/internal/ir"
)

// marshalProbes converts active probe ids to canonical JSON TEXT for storage.
// An empty set is stored as "[]", never NULL.
func marshalProbes(probes []uint8) (string, error) {
	list := make([]any, len(probes))
	for i, id := range probes {
		list[i] = id
	}
	data, err := ir.MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("marshal probes: %w", err)
	}
	return string(data), nil
}

// unmarshalProbes parses the stored probe list.
// Decodes through []int because encoding/json treats []uint8 as base64.
func unmarshalProbes(data string) ([]uint8, error) {
	if data == "" || data == "[]" {
		return []uint8{}, nil
	}
	var ids []int
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal probes: %w", err)
	}
	out := make([]uint8, len(ids))
	for i, id := range ids {
		if id < 0 || id >= ir.MaxProbes {
			return nil, fmt.Errorf("unmarshal probes: id %d out of range", id)
		}
		out[i] = uint8(id)
	}
	return out, nil
}

// marshalAction splits an action into its stored columns.
func marshalAction(a ir.Action) (actionType, reason string, probeID int) {
	return a.Type.String(), a.Reason.String(), int(a.ProbeID)
}

// unmarshalAction rebuilds an action from its stored columns.
func unmarshalAction(actionType, reason string, probeID int) (ir.Action, error) {
	t, err := ir.ParseActionType(actionType)
	if err != nil {
		return ir.Action{}, fmt.Errorf("unmarshal action: %w", err)
	}
	r, err := ir.ParseActionReason(reason)
	if err != nil {
		return ir.Action{}, fmt.Errorf("unmarshal action: %w", err)
	}
	if probeID < 0 || probeID > 0xFF {
		return ir.Action{}, fmt.Errorf("unmarshal action: probe id %d out of range", probeID)
	}
	return ir.Action{Type: t, Reason: r, ProbeID: uint8(probeID)}, nil
}
