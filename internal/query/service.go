package query

import (
	"context"
	"database/sql"
	"fmt"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Service provides read-only access to the persisted operation log and
// payout history. Live market state is served straight from the engine;
// this covers the historical surfaces only.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// ListOperations returns operation log entries newest-first, paginated by
// sequence cursor.
func (s *Service) ListOperations(ctx context.Context, f OpsFilter) ([]OperationEntry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	query := `
		SELECT sequence, command_id, kind, market_id, payload, result, timestamp
		FROM street.operations
		WHERE TRUE
	`
	args := []interface{}{}
	argIdx := 1

	if f.MarketID != nil {
		query += fmt.Sprintf(" AND market_id = $%d", argIdx)
		args = append(args, *f.MarketID)
		argIdx++
	}
	if f.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, f.Kind)
		argIdx++
	}
	if f.BeforeSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *f.BeforeSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []OperationEntry
	for rows.Next() {
		var e OperationEntry
		if err := rows.Scan(
			&e.Sequence, &e.CommandID, &e.Kind, &e.MarketID,
			&e.Payload, &e.Result, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// ListPayouts returns payment instructions for an account, newest-first.
func (s *Service) ListPayouts(ctx context.Context, account string, limit int) ([]PayoutEntry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT payout_id, account, amount, kind, created_at
		FROM street.payouts
		WHERE account = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payouts []PayoutEntry
	for rows.Next() {
		var p PayoutEntry
		if err := rows.Scan(&p.PayoutID, &p.Account, &p.Amount, &p.Kind, &p.CreatedAt); err != nil {
			return nil, err
		}
		payouts = append(payouts, p)
	}

	return payouts, rows.Err()
}

// LatestSequence returns the highest persisted sequence, for freshness
// reporting alongside historical responses.
func (s *Service) LatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM street.operations`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
