package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/leakguard/internal/ir"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// LatestConfig returns the most recent revision saved under name.
// Returns sql.ErrNoRows if the name was never saved.
func (s *Store) LatestConfig(ctx context.Context, name string) (ConfigVersion, error) {
	return scanConfigRow(s.db.QueryRowContext(ctx, `
		SELECT seq, name, document, config_hash, engine_version, format_version
		FROM configs
		WHERE name = ?
		ORDER BY seq DESC
		LIMIT 1
	`, name))
}

// ListConfigs returns every saved revision, oldest first.
// Returns an empty slice (not nil) if nothing was saved.
func (s *Store) ListConfigs(ctx context.Context) ([]ConfigVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, name, document, config_hash, engine_version, format_version
		FROM configs
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query configs: %w", err)
	}
	defer rows.Close()

	configs := []ConfigVersion{}
	for rows.Next() {
		cfg, err := scanConfigRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate configs: %w", err)
	}
	return configs, nil
}

// ReadRun returns the run registered under token.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, token string) (Run, error) {
	var run Run
	err := s.db.QueryRowContext(ctx, `
		SELECT run_token, document, config_hash, start_seq, engine_version, format_version
		FROM runs
		WHERE run_token = ?
	`, token).Scan(
		&run.Token, &run.Document, &run.ConfigHash, &run.StartSeq,
		&run.EngineVersion, &run.FormatVersion,
	)
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// RunConfig returns the document a run started from.
// Returns sql.ErrNoRows if the run does not exist.
func (s *Store) RunConfig(ctx context.Context, token string) (string, error) {
	run, err := s.ReadRun(ctx, token)
	if err != nil {
		return "", err
	}
	return run.Document, nil
}

// ListRunTokens returns every registered run token.
// Ordered by start_seq, then token bytes; UUIDv7 tokens therefore list in
// creation order.
func (s *Store) ListRunTokens(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_token
		FROM runs
		ORDER BY start_seq ASC, run_token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	tokens := []string{}
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan run token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return tokens, nil
}

// ReadTicks returns the decisions of a run.
// Ordered deterministically: ORDER BY seq ASC, id COLLATE BINARY ASC.
// Returns an empty slice (not nil) if the run has no ticks.
func (s *Store) ReadTicks(ctx context.Context, token string) ([]Tick, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_token, seq, flow_rate, probes, elapsed,
		       action_type, reason, probe_id, criterion_index, config_hash
		FROM ticks
		WHERE run_token = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	ticks := []Tick{}
	for rows.Next() {
		t, err := scanTick(rows)
		if err != nil {
			return nil, err
		}
		ticks = append(ticks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticks: %w", err)
	}
	return ticks, nil
}

// ReadTick retrieves a single tick by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadTick(ctx context.Context, id string) (Tick, error) {
	return scanTick(s.db.QueryRowContext(ctx, `
		SELECT id, run_token, seq, flow_rate, probes, elapsed,
		       action_type, reason, probe_id, criterion_index, config_hash
		FROM ticks
		WHERE id = ?
	`, id))
}

// ReadChanges returns the criteria changes of a run.
// Ordered deterministically: ORDER BY seq ASC, id COLLATE BINARY ASC.
func (s *Store) ReadChanges(ctx context.Context, token string) ([]Change, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_token, seq, kind, payload, config_hash
		FROM changes
		WHERE run_token = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	changes := []Change{}
	for rows.Next() {
		var c Change
		var kind string
		if err := rows.Scan(&c.ID, &c.RunToken, &c.Seq, &kind, &c.Payload, &c.ConfigHash); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		c.Kind = ChangeKind(kind)
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return changes, nil
}

// LastSeq returns the highest seq logged for a run across ticks and
// changes, or the run's start seq if nothing was logged yet.
// Returns sql.ErrNoRows if the run does not exist.
func (s *Store) LastSeq(ctx context.Context, token string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(r.start_seq,
		           COALESCE((SELECT MAX(seq) FROM ticks WHERE run_token = r.run_token), 0),
		           COALESCE((SELECT MAX(seq) FROM changes WHERE run_token = r.run_token), 0))
		FROM runs r
		WHERE r.run_token = ?
	`, token).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func scanConfigRow(row rowScanner) (ConfigVersion, error) {
	var cfg ConfigVersion
	if err := row.Scan(
		&cfg.Seq, &cfg.Name, &cfg.Document, &cfg.ConfigHash,
		&cfg.EngineVersion, &cfg.FormatVersion,
	); err != nil {
		return ConfigVersion{}, err
	}
	return cfg, nil
}

// scanTick scans a row into a Tick. sql.ErrNoRows is returned unwrapped.
func scanTick(row rowScanner) (Tick, error) {
	var t Tick
	var flowRate float64
	var probesJSON, actionType, reason string
	var probeID int
	var elapsed int64

	if err := row.Scan(
		&t.ID, &t.RunToken, &t.Seq, &flowRate, &probesJSON, &elapsed,
		&actionType, &reason, &probeID, &t.CriterionIndex, &t.ConfigHash,
	); err != nil {
		if err == sql.ErrNoRows {
			return Tick{}, err
		}
		return Tick{}, fmt.Errorf("scan tick: %w", err)
	}

	t.FlowRate = float32(flowRate)
	t.Elapsed = ir.Seconds(elapsed)

	probes, err := unmarshalProbes(probesJSON)
	if err != nil {
		return Tick{}, err
	}
	t.Probes = probes

	action, err := unmarshalAction(actionType, reason, probeID)
	if err != nil {
		return Tick{}, err
	}
	t.Action = action

	return t, nil
}
