package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"StreetBook/internal/observability"
)

// PostgresIdempotencyChecker is the tier-2 dedup lookup behind the
// in-memory LRU. The operation log is the source of truth for which
// command ids have already been applied.
type PostgresIdempotencyChecker struct {
	db      *sql.DB
	metrics *observability.Metrics
}

func NewPostgresIdempotencyChecker(db *sql.DB, metrics *observability.Metrics) *PostgresIdempotencyChecker {
	return &PostgresIdempotencyChecker{db: db, metrics: metrics}
}

// IsProcessed checks whether a command id exists in the operation log.
func (pic *PostgresIdempotencyChecker) IsProcessed(commandID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	var exists int
	err := pic.db.QueryRowContext(ctx, `
		SELECT 1 FROM street.operations WHERE command_id = $1 LIMIT 1
	`, commandID).Scan(&exists)
	if pic.metrics != nil {
		pic.metrics.DedupTier2Duration.Observe(time.Since(start).Seconds())
	}

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
