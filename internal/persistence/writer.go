package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"StreetBook/internal/engine"
)

// OperationLogWriter writes operation records and payout instructions to
// Postgres using multi-row INSERT. Writes are idempotent: replays of the
// same sequence or payout id are no-ops.
type OperationLogWriter struct {
	db *sql.DB
}

// OperationRow is a row in street.operations.
type OperationRow struct {
	Sequence  int64
	CommandID uuid.UUID
	Kind      string
	MarketID  *uuid.UUID
	Payload   []byte
	Result    []byte
	Timestamp time.Time
}

// PayoutRow is a row in street.payouts: one payment instruction handed to
// the settlement rail.
type PayoutRow struct {
	PayoutID  uuid.UUID
	Account   uuid.UUID
	Amount    string // scaled integer as decimal string, NUMERIC column
	Kind      string
	CreatedAt time.Time
}

func NewOperationLogWriter(db *sql.DB) *OperationLogWriter {
	return &OperationLogWriter{db: db}
}

// RowFromRecord converts an engine record into its storage row.
func RowFromRecord(rec engine.Record) OperationRow {
	row := OperationRow{
		Sequence:  int64(rec.Sequence),
		CommandID: rec.CommandID,
		Kind:      rec.Kind,
		Payload:   rec.Payload,
		Result:    rec.Result,
		Timestamp: rec.Timestamp,
	}
	if rec.Market != uuid.Nil {
		id := rec.Market
		row.MarketID = &id
	}
	return row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// WriteOperationBatch writes a batch of operation records.
func (w *OperationLogWriter) WriteOperationBatch(ctx context.Context, tx execer, ops []OperationRow) error {
	if len(ops) == 0 {
		return nil
	}

	query := `INSERT INTO street.operations
		(sequence, command_id, kind, market_id, payload, result, timestamp)
		VALUES `

	values := make([]string, 0, len(ops))
	args := make([]interface{}, 0, len(ops)*7)

	for i, o := range ops {
		base := i * 7
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args,
			o.Sequence, o.CommandID, o.Kind, o.MarketID,
			o.Payload, o.Result, o.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WritePayoutBatch writes a batch of payout instructions.
func (w *OperationLogWriter) WritePayoutBatch(ctx context.Context, tx execer, payouts []PayoutRow) error {
	if len(payouts) == 0 {
		return nil
	}

	query := `INSERT INTO street.payouts
		(payout_id, account, amount, kind, created_at)
		VALUES `

	values := make([]string, 0, len(payouts))
	args := make([]interface{}, 0, len(payouts)*5)

	for i, p := range payouts {
		base := i * 5
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5,
		))
		args = append(args, p.PayoutID, p.Account, p.Amount, p.Kind, p.CreatedAt)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (payout_id) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
