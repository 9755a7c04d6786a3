package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"base-launch-radar/internal/domain"
	"base-launch-radar/internal/storage"
)

// AlertArchive implements storage.AlertArchive using ClickHouse.
// One row per dispatched alert: queryable columns for the fields the
// operator tooling filters on, plus the full alert as a JSON payload.
type AlertArchive struct {
	conn *Conn
}

// NewAlertArchive creates a new AlertArchive.
func NewAlertArchive(conn *Conn) *AlertArchive {
	return &AlertArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.AlertArchive = (*AlertArchive)(nil)

// Insert appends a dispatched alert.
func (s *AlertArchive) Insert(ctx context.Context, a *domain.Alert) error {
	if a == nil || a.AlertID == "" {
		return storage.ErrInvalidInput
	}

	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO alert_archive (
			alert_id, pair_address, base_token, factory_id, block_number,
			overall_score, security_score, risk_tag, is_honeypot, lp_locked,
			created_at_ms, payload
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		a.AlertID,
		a.Pair.PairAddress.Hex(),
		a.Pair.BaseToken.Hex(),
		a.Pair.FactoryID,
		a.Pair.BlockNumber,
		uint8(a.Score.Overall),
		uint8(a.Score.Security),
		string(a.Score.Risk),
		a.Safety.IsHoneypot,
		a.Safety.LPLocked,
		uint64(a.CreatedAt),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// LatestForPair returns the most recent archived alert for a pair.
func (s *AlertArchive) LatestForPair(ctx context.Context, pair string) (*domain.Alert, error) {
	if pair == "" {
		return nil, storage.ErrInvalidInput
	}

	row := s.conn.QueryRow(ctx, `
		SELECT payload
		FROM alert_archive
		WHERE lower(pair_address) = lower(?)
		ORDER BY created_at_ms DESC
		LIMIT 1
	`, pair)

	var payload string
	if err := row.Scan(&payload); err != nil {
		return nil, storage.ErrNotFound
	}

	var a domain.Alert
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return nil, fmt.Errorf("unmarshal alert payload: %w", err)
	}

	return &a, nil
}
