package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"StreetBook/internal/engine"
	"StreetBook/internal/observability"
)

// SnapshotManager handles creating and loading engine snapshots for
// recovery. On warm restart the latest snapshot loads first, then the
// operation log replays from snapshot.sequence forward.
type SnapshotManager struct {
	db      *sql.DB
	metrics *observability.Metrics
}

func NewSnapshotManager(db *sql.DB, metrics *observability.Metrics) *SnapshotManager {
	return &SnapshotManager{db: db, metrics: metrics}
}

// SaveSnapshot persists the serialized engine state.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *engine.SnapshotState) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	snapshotID := uuid.New()
	formatVersion := int32(1) // v1: JSON-encoded engine.SnapshotState

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO street.snapshots
			(snapshot_id, sequence, data, format_version, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, size_bytes = $5
	`, snapshotID, int64(snap.Sequence), data, formatVersion, len(data), time.Now().UTC())
	if err != nil {
		return err
	}

	if sm.metrics != nil {
		sm.metrics.SnapshotSizeBytes.Set(float64(len(data)))
		sm.metrics.SnapshotLastSeq.Set(float64(snap.Sequence))
	}
	return nil
}

// LoadLatestSnapshot returns the most recent snapshot, or nil on cold start.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*engine.SnapshotState, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM street.snapshots
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap engine.SnapshotState
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

// LoadRecordsFrom loads operation records from a given sequence for replay.
func (sm *SnapshotManager) LoadRecordsFrom(ctx context.Context, fromSequence int64, limit int) ([]engine.Record, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT sequence, command_id, kind, market_id, payload, result, timestamp
		FROM street.operations
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []engine.Record
	for rows.Next() {
		var (
			seq      int64
			marketID *uuid.UUID
			rec      engine.Record
		)
		if err := rows.Scan(
			&seq, &rec.CommandID, &rec.Kind, &marketID,
			&rec.Payload, &rec.Result, &rec.Timestamp,
		); err != nil {
			return nil, err
		}
		rec.Sequence = uint64(seq)
		if marketID != nil {
			rec.Market = *marketID
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

