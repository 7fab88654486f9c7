package controller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/leakguard/internal/engine"
	"github.com/roach88/leakguard/internal/ir"
	"github.com/roach88/leakguard/internal/store"
)

// recordRun drives a mixed run of ticks and changes against s.
func recordRun(t *testing.T, s *store.Store) *Controller {
	t.Helper()
	c := newTestController(t, "T,200,60,|P,42,|", WithStore(s))
	ctx := context.Background()

	step(t, c, 3, 30)
	step(t, c, 3, 30)
	require.NoError(t, c.RemoveCriterion(ctx, 0))
	require.NoError(t, c.AddCriterion(ctx, engine.NewFlowRateCriterion(1.673, 10)))
	step(t, c, 2, 5)
	step(t, c, 2, 5, 42)
	_, err := c.Reconfigure(ctx, "T,50,1,|")
	require.NoError(t, err)
	step(t, c, 0.6, 1)
	return c
}

func TestReplay_MatchesLiveRun(t *testing.T) {
	s := openTestStore(t)
	recordRun(t, s)

	result, err := Replay(context.Background(), s, "run-1")
	require.NoError(t, err)

	assert.True(t, result.OK(), "mismatches: %v gaps: %v", result.Mismatches, result.Gaps)
	assert.Equal(t, 5, result.Ticks)
	assert.Equal(t, 3, result.Changes)
	assert.Equal(t, 3, result.Trips)
}

func TestReplay_DetectsTamperedAction(t *testing.T) {
	s := openTestStore(t)
	recordRun(t, s)

	_, err := s.DB().Exec(`UPDATE ticks SET action_type = 'no_action', reason = 'none', probe_id = 255, criterion_index = -1 WHERE seq = 2`)
	require.NoError(t, err)

	result, err := Replay(context.Background(), s, "run-1")
	require.NoError(t, err)
	require.False(t, result.OK())

	fields := map[string]bool{}
	for _, m := range result.Mismatches {
		assert.Equal(t, int64(2), m.Seq)
		fields[m.Field] = true
	}
	assert.True(t, fields["action"])
	assert.True(t, fields["criterion_index"])
	assert.Contains(t, result.Mismatches[0].String(), "seq 2")
}

func TestReplay_DetectsTamperedReading(t *testing.T) {
	s := openTestStore(t)
	recordRun(t, s)

	_, err := s.DB().Exec(`UPDATE ticks SET flow_rate = 9 WHERE seq = 1`)
	require.NoError(t, err)

	result, err := Replay(context.Background(), s, "run-1")
	require.NoError(t, err)

	var idMismatch bool
	for _, m := range result.Mismatches {
		if m.Seq == 1 && m.Field == "id" {
			idMismatch = true
		}
	}
	assert.True(t, idMismatch, "changed reading must no longer match its content-addressed id")
}

func TestReplay_ReportsGaps(t *testing.T) {
	s := openTestStore(t)
	recordRun(t, s)

	_, err := s.DB().Exec(`DELETE FROM ticks WHERE seq = 5`)
	require.NoError(t, err)

	result, err := Replay(context.Background(), s, "run-1")
	require.NoError(t, err)
	assert.False(t, result.OK())
	assert.Equal(t, []int64{5}, result.Gaps)
}

func TestReplay_CorruptChangeIsError(t *testing.T) {
	s := openTestStore(t)
	recordRun(t, s)

	_, err := s.DB().Exec(`UPDATE changes SET payload = '7' WHERE kind = 'remove'`)
	require.NoError(t, err)

	_, err = Replay(context.Background(), s, "run-1")
	assert.True(t, engine.IsIndexError(err))
}

func TestReplay_UnknownRun(t *testing.T) {
	s := openTestStore(t)
	_, err := Replay(context.Background(), s, "missing")
	assert.Error(t, err)
}

func TestReplayAll(t *testing.T) {
	s := openTestStore(t)
	recordRun(t, s)

	other := New(engine.New(),
		WithStore(s),
		WithLogger(discardLogger()),
		WithTokenGenerator(NewFixedGenerator("run-2")),
	)
	_, err := other.Step(context.Background(), Reading{FlowRate: 1, Elapsed: 1})
	require.NoError(t, err)

	results, err := ReplayAll(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "run-1", results[0].RunToken)
	assert.Equal(t, "run-2", results[1].RunToken)
	for _, r := range results {
		assert.True(t, r.OK())
	}
}

func TestResume_ContinuesAccumulators(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := newTestController(t, "T,200,60,|", WithStore(s))
	step(t, first, 3, 40)

	resumed, err := Resume(ctx, s, "run-1", WithLogger(discardLogger()))
	require.NoError(t, err)
	assert.Equal(t, "run-1", resumed.RunToken())
	assert.Equal(t, int64(1), resumed.Seq())

	// 40s before the restart plus 20s after reach the 60s minimum.
	d := step(t, resumed, 3, 20)
	assert.Equal(t, ir.ExceededFlowRate, d.Action.Reason)
	assert.Equal(t, int64(2), d.Seq)

	result, err := Replay(ctx, s, "run-1")
	require.NoError(t, err)
	assert.True(t, result.OK(), "mismatches: %v", result.Mismatches)
}

func TestResume_AppliesChanges(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	recordRun(t, s)

	resumed, err := Resume(ctx, s, "run-1", WithLogger(discardLogger()))
	require.NoError(t, err)
	assert.Equal(t, "T,50,1,|", resumed.Document())
	assert.Equal(t, ir.ConfigHash("T,50,1,|"), resumed.ConfigHash())
	assert.Equal(t, int64(8), resumed.Seq())
}

func TestApplyChange_UnknownKind(t *testing.T) {
	err := applyChange(engine.New(), store.ChangeKind("explode"), "")
	assert.Error(t, err)

	err = applyChange(engine.New(), store.ChangeRemove, "x")
	assert.Error(t, err)

	err = applyChange(engine.New(), store.ChangeAdd, "Q,1,")
	assert.Error(t, err)
}
