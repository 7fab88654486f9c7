package store

import (
	"context"
	"fmt"

	"github.com/roach88/leakguard/internal/ir"
)

// Entry is one element of a run history: exactly one of Tick or Change
// is set.
type Entry struct {
	Seq    int64
	Tick   *Tick
	Change *Change
}

// RunHistory is the complete log of one run, ready to be replayed.
type RunHistory struct {
	Run     Run
	Entries []Entry

	Ticks   int
	Changes int
	LastSeq int64

	// Trips counts ticks whose action was not the default.
	Trips int

	// Gaps lists seq values between StartSeq and LastSeq with no entry.
	// A non-empty list means the log is incomplete, usually because a
	// write failed and the controller logged and continued.
	Gaps []int64
}

// Complete reports whether every seq of the run is accounted for.
func (h RunHistory) Complete() bool {
	return len(h.Gaps) == 0
}

// GetRunHistory loads a run and merges its ticks and changes in seq order.
// Returns sql.ErrNoRows (wrapped) if the run does not exist.
func (s *Store) GetRunHistory(ctx context.Context, token string) (RunHistory, error) {
	run, err := s.ReadRun(ctx, token)
	if err != nil {
		return RunHistory{}, fmt.Errorf("get run history: %w", err)
	}

	ticks, err := s.ReadTicks(ctx, token)
	if err != nil {
		return RunHistory{}, fmt.Errorf("get run history: %w", err)
	}

	changes, err := s.ReadChanges(ctx, token)
	if err != nil {
		return RunHistory{}, fmt.Errorf("get run history: %w", err)
	}

	h := RunHistory{
		Run:     run,
		Entries: make([]Entry, 0, len(ticks)+len(changes)),
		Ticks:   len(ticks),
		Changes: len(changes),
		LastSeq: run.StartSeq,
	}

	// Merge two seq-ordered lists. Ticks and changes never share a seq
	// within a run; on a corrupt log the change goes first.
	i, j := 0, 0
	for i < len(ticks) || j < len(changes) {
		if j < len(changes) && (i >= len(ticks) || changes[j].Seq <= ticks[i].Seq) {
			c := changes[j]
			h.Entries = append(h.Entries, Entry{Seq: c.Seq, Change: &c})
			j++
			continue
		}
		t := ticks[i]
		if t.Action.Type != ir.NoAction {
			h.Trips++
		}
		h.Entries = append(h.Entries, Entry{Seq: t.Seq, Tick: &t})
		i++
	}

	next := run.StartSeq + 1
	for _, e := range h.Entries {
		for ; next < e.Seq; next++ {
			h.Gaps = append(h.Gaps, next)
		}
		if e.Seq >= next {
			next = e.Seq + 1
		}
		if e.Seq > h.LastSeq {
			h.LastSeq = e.Seq
		}
	}

	return h, nil
}
