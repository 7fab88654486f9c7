package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/leakguard/internal/ir"
)

// SaveConfig stores document as the latest revision of name.
//
// If the latest revision already has the same content hash, nothing is
// written and that revision is returned with inserted=false. Saving A, B,
// then A again writes three rows, so LatestConfig reflects the last save.
func (s *Store) SaveConfig(ctx context.Context, name, document string) (cfg ConfigVersion, inserted bool, err error) {
	hash := ir.ConfigHash(document)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ConfigVersion{}, false, fmt.Errorf("save config: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	latest, err := scanConfigRow(tx.QueryRowContext(ctx, `
		SELECT seq, name, document, config_hash, engine_version, format_version
		FROM configs
		WHERE name = ?
		ORDER BY seq DESC
		LIMIT 1
	`, name))
	switch {
	case err == nil && latest.ConfigHash == hash:
		return latest, false, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return ConfigVersion{}, false, fmt.Errorf("save config: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO configs (name, document, config_hash, engine_version, format_version)
		VALUES (?, ?, ?, ?, ?)
	`, name, document, hash, ir.EngineVersion, ir.FormatVersion)
	if err != nil {
		return ConfigVersion{}, false, fmt.Errorf("save config: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return ConfigVersion{}, false, fmt.Errorf("save config: last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ConfigVersion{}, false, fmt.Errorf("save config: commit: %w", err)
	}

	return ConfigVersion{
		Seq:           seq,
		Name:          name,
		Document:      document,
		ConfigHash:    hash,
		EngineVersion: ir.EngineVersion,
		FormatVersion: ir.FormatVersion,
	}, true, nil
}

// StartRun registers a controller run.
// Uses ON CONFLICT(run_token) DO NOTHING so a resumed run keeps its
// original starting document.
func (s *Store) StartRun(ctx context.Context, run Run) error {
	engineVersion, formatVersion := run.EngineVersion, run.FormatVersion
	if engineVersion == "" {
		engineVersion = ir.EngineVersion
	}
	if formatVersion == "" {
		formatVersion = ir.FormatVersion
	}
	hash := run.ConfigHash
	if hash == "" {
		hash = ir.ConfigHash(run.Document)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_token, document, config_hash, start_seq, engine_version, format_version)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_token) DO NOTHING
	`, run.Token, run.Document, hash, run.StartSeq, engineVersion, formatVersion)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// WriteTick appends a decision to the log.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - rewriting the same tick
// is silently ignored. A different tick at an already used (run, seq) is a
// constraint violation and returns an error.
//
// The run referenced by RunToken must exist (foreign key constraint).
func (s *Store) WriteTick(ctx context.Context, t Tick) error {
	probesJSON, err := marshalProbes(t.Probes)
	if err != nil {
		return fmt.Errorf("write tick: %w", err)
	}
	actionType, reason, probeID := marshalAction(t.Action)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ticks
		(id, run_token, seq, flow_rate, probes, elapsed, action_type, reason, probe_id, criterion_index, config_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		t.ID,
		t.RunToken,
		t.Seq,
		float64(t.FlowRate),
		probesJSON,
		int64(t.Elapsed),
		actionType,
		reason,
		probeID,
		t.CriterionIndex,
		t.ConfigHash,
	)
	if err != nil {
		return fmt.Errorf("write tick: %w", err)
	}
	return nil
}

// WriteChange appends a criteria change to the log.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
//
// The run referenced by RunToken must exist (foreign key constraint).
func (s *Store) WriteChange(ctx context.Context, c Change) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO changes (id, run_token, seq, kind, payload, config_hash)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, c.ID, c.RunToken, c.Seq, string(c.Kind), c.Payload, c.ConfigHash)
	if err != nil {
		return fmt.Errorf("write change: %w", err)
	}
	return nil
}
