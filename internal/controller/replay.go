package controller

import (
	"context"
	"fmt"
	"strconv"

	"github.com/roach88/leakguard/internal/codec"
	"github.com/roach88/leakguard/internal/engine"
	"github.com/roach88/leakguard/internal/ir"
	"github.com/roach88/leakguard/internal/store"
)

// applyChange mutates e the way a logged change describes. It is the only
// path by which a running controller or a replay changes criteria, so both
// always agree.
func applyChange(e *engine.Engine, kind store.ChangeKind, payload string) error {
	switch kind {
	case store.ChangeReconfigure:
		e.ClearCriteria()
		codec.Decode(e, payload)
		return nil

	case store.ChangeRemove:
		index, err := strconv.Atoi(payload)
		if err != nil {
			return fmt.Errorf("remove: bad index %q: %w", payload, err)
		}
		return e.RemoveCriterion(index)

	case store.ChangeAdd:
		c, ok := codec.DecodeCriterion(payload)
		if !ok {
			return fmt.Errorf("add: malformed criterion record %q", payload)
		}
		return e.AddCriterion(c)

	default:
		return fmt.Errorf("unknown change kind %q", kind)
	}
}

// Mismatch is one difference between a logged record and its replay.
type Mismatch struct {
	Seq      int64
	ID       string
	Field    string
	Logged   string
	Replayed string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("seq %d: %s logged %s, replayed %s", m.Seq, m.Field, m.Logged, m.Replayed)
}

// ReplayResult summarizes the verification of one run.
type ReplayResult struct {
	RunToken   string
	Ticks      int
	Changes    int
	Trips      int
	Gaps       []int64
	Mismatches []Mismatch
}

// OK reports whether the run replayed identically and completely.
func (r ReplayResult) OK() bool {
	return len(r.Mismatches) == 0 && len(r.Gaps) == 0
}

// Replay recomputes every decision of a logged run on a fresh engine and
// compares it against the log.
//
// Each tick is checked for its action, its winning criterion, its
// content-addressed ID, and the config hash it was decided under. A change
// that no longer applies is an error, not a mismatch: the log is corrupt.
func Replay(ctx context.Context, s *store.Store, token string) (ReplayResult, error) {
	h, err := s.GetRunHistory(ctx, token)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay %s: %w", token, err)
	}

	result := ReplayResult{
		RunToken: token,
		Ticks:    h.Ticks,
		Changes:  h.Changes,
		Trips:    h.Trips,
		Gaps:     h.Gaps,
	}

	eng := engine.New()
	codec.Decode(eng, h.Run.Document)
	hash := ir.ConfigHash(codec.Encode(eng))

	if hash != h.Run.ConfigHash {
		result.Mismatches = append(result.Mismatches, Mismatch{
			Seq:      h.Run.StartSeq,
			ID:       token,
			Field:    "config_hash",
			Logged:   h.Run.ConfigHash,
			Replayed: hash,
		})
	}

	for _, entry := range h.Entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if ch := entry.Change; ch != nil {
			if err := applyChange(eng, ch.Kind, ch.Payload); err != nil {
				return result, fmt.Errorf("replay %s: change seq %d: %w", token, ch.Seq, err)
			}
			hash = ir.ConfigHash(codec.Encode(eng))
			if hash != ch.ConfigHash {
				result.Mismatches = append(result.Mismatches, Mismatch{
					Seq: ch.Seq, ID: ch.ID, Field: "config_hash",
					Logged: ch.ConfigHash, Replayed: hash,
				})
			}
			continue
		}

		t := entry.Tick
		state := t.State()
		eng.Update(state, t.Elapsed)
		action, index := eng.ActionWithIndex()

		result.Mismatches = append(result.Mismatches, compareTick(token, t, state, action, index, hash)...)
	}

	return result, nil
}

func compareTick(token string, t *store.Tick, state *ir.SensorState, action ir.Action, index int, hash string) []Mismatch {
	var out []Mismatch
	add := func(field, logged, replayed string) {
		out = append(out, Mismatch{Seq: t.Seq, ID: t.ID, Field: field, Logged: logged, Replayed: replayed})
	}

	if action != t.Action {
		add("action", t.Action.String(), action.String())
	}
	if index != t.CriterionIndex {
		add("criterion_index", strconv.Itoa(t.CriterionIndex), strconv.Itoa(index))
	}
	if hash != t.ConfigHash {
		add("config_hash", t.ConfigHash, hash)
	}
	if id, err := ir.TickID(token, t.Seq, state, t.Elapsed); err != nil || id != t.ID {
		add("id", t.ID, id)
	}
	return out
}

// ReplayAll replays every run in the store, in ListRunTokens order.
func ReplayAll(ctx context.Context, s *store.Store) ([]ReplayResult, error) {
	tokens, err := s.ListRunTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay all: %w", err)
	}

	results := make([]ReplayResult, 0, len(tokens))
	for _, token := range tokens {
		r, err := Replay(ctx, s, token)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}

// Resume rebuilds the engine of a logged run, including criterion state,
// and returns a controller that continues the run where the log ends.
//
// The store option is set to s; other options apply as for New.
func Resume(ctx context.Context, s *store.Store, token string, opts ...Option) (*Controller, error) {
	h, err := s.GetRunHistory(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("resume %s: %w", token, err)
	}

	eng := engine.New()
	codec.Decode(eng, h.Run.Document)

	for _, entry := range h.Entries {
		if ch := entry.Change; ch != nil {
			if err := applyChange(eng, ch.Kind, ch.Payload); err != nil {
				return nil, fmt.Errorf("resume %s: change seq %d: %w", token, ch.Seq, err)
			}
			continue
		}
		eng.Update(entry.Tick.State(), entry.Tick.Elapsed)
	}

	c := New(eng, append(opts, WithStore(s))...)
	c.runToken = token
	c.clock = engine.NewClockAt(h.LastSeq)
	c.configHash = ir.ConfigHash(codec.Encode(eng))
	c.started = true
	if c.metrics != nil {
		c.metrics.activeCriteria.Set(float64(eng.Len()))
	}

	c.logger.InfoContext(ctx, "run resumed",
		"run_token", token,
		"seq", h.LastSeq,
		"criteria", eng.Len(),
		"config_hash", c.configHash,
	)

	return c, nil
}
