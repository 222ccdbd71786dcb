package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"StreetBook/internal/curve"
	"StreetBook/internal/engine"
	"StreetBook/internal/observability"
)

// Worker drains the persist and payout channels and batch-writes to
// Postgres. The persist channel uses BLOCKING sends from the engine, so if
// this worker falls behind the engine stalls and no record is lost.
type Worker struct {
	writer       *OperationLogWriter
	db           *sql.DB
	records      <-chan engine.Record
	payouts      <-chan PayoutRow
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
	log          zerolog.Logger
}

func NewWorker(
	db *sql.DB,
	records <-chan engine.Record,
	payouts <-chan PayoutRow,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Worker {
	return &Worker{
		writer:       NewOperationLogWriter(db),
		db:           db,
		records:      records,
		payouts:      payouts,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
		log:          log,
	}
}

// Run starts the worker loop. It batches incoming rows and flushes when the
// batch is full or the flush timeout expires. Blocks until ctx is cancelled
// or the record channel closes.
func (w *Worker) Run(ctx context.Context) error {
	opBatch := make([]OperationRow, 0, w.batchSize)
	payoutBatch := make([]PayoutRow, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	flushAll := func(flushCtx context.Context) error {
		if len(opBatch) == 0 && len(payoutBatch) == 0 {
			return nil
		}
		err := w.flush(flushCtx, opBatch, payoutBatch)
		opBatch = opBatch[:0]
		payoutBatch = payoutBatch[:0]
		return err
	}

	for {
		select {
		case <-ctx.Done():
			if err := flushAll(context.Background()); err != nil {
				w.log.Error().Err(err).Msg("final flush failed")
			}
			return ctx.Err()

		case rec, ok := <-w.records:
			if !ok {
				if err := flushAll(context.Background()); err != nil {
					w.log.Error().Err(err).Msg("final flush failed")
				}
				return nil
			}
			w.observeRecord(rec)
			opBatch = append(opBatch, RowFromRecord(rec))
			if len(opBatch) >= w.batchSize {
				w.flushWithRetry(ctx, &opBatch, &payoutBatch)
				timer.Reset(w.flushTimeout)
			}

		case p, ok := <-w.payouts:
			if !ok {
				w.payouts = nil
				continue
			}
			payoutBatch = append(payoutBatch, p)
			if len(payoutBatch) >= w.batchSize {
				w.flushWithRetry(ctx, &opBatch, &payoutBatch)
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(opBatch) > 0 || len(payoutBatch) > 0 {
				w.flushWithRetry(ctx, &opBatch, &payoutBatch)
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// observeRecord counts derived records as they pass through. The persist
// channel sees every record exactly once, unlike the lossy publish channel.
func (w *Worker) observeRecord(rec engine.Record) {
	if w.metrics == nil {
		return
	}
	switch rec.Kind {
	case engine.KindMarketResolved:
		w.metrics.DerivedRecords.WithLabelValues(rec.Kind).Inc()
		var res struct {
			Outcome curve.Side `json:"outcome"`
		}
		if err := json.Unmarshal(rec.Result, &res); err == nil {
			w.metrics.MarketsResolved.WithLabelValues(res.Outcome.String()).Inc()
		}
	case engine.KindResolutionAborted:
		w.metrics.DerivedRecords.WithLabelValues(rec.Kind).Inc()
		w.metrics.ResolutionsAborted.Inc()
	case engine.KindDisputeTied:
		w.metrics.DerivedRecords.WithLabelValues(rec.Kind).Inc()
		w.metrics.DisputeTies.Inc()
	}
}

// flushWithRetry retries with exponential backoff. The worker never drops
// records: it retries until the write succeeds or, on shutdown, attempts
// one final flush with a background context.
func (w *Worker) flushWithRetry(ctx context.Context, ops *[]OperationRow, payouts *[]PayoutRow) {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("records", len(*ops)).
				Msg("persistence retry")
			if w.metrics != nil {
				w.metrics.PersistRetry.Inc()
			}
			select {
			case <-ctx.Done():
				if err := w.flush(context.Background(), *ops, *payouts); err != nil {
					w.log.Error().Err(err).Msg("final flush on shutdown failed")
				}
				*ops = (*ops)[:0]
				*payouts = (*payouts)[:0]
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := w.flush(ctx, *ops, *payouts)
		if err == nil {
			if attempt > 0 {
				w.log.Info().Int("retries", attempt).Msg("persistence flush succeeded")
			}
			*ops = (*ops)[:0]
			*payouts = (*payouts)[:0]
			return
		}
		w.log.Error().Err(err).Msg("persistence flush failed")
	}
}

func (w *Worker) flush(ctx context.Context, ops []OperationRow, payouts []PayoutRow) error {
	start := time.Now()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		}
		return err
	}
	defer tx.Rollback()

	if err := w.writer.WriteOperationBatch(ctx, tx, ops); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_operations").Inc()
		}
		return err
	}

	if err := w.writer.WritePayoutBatch(ctx, tx, payouts); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_payouts").Inc()
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		}
		return fmt.Errorf("commit batch: %w", err)
	}

	if w.metrics != nil {
		w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.PersistBatchSize.Observe(float64(len(ops)))
		w.metrics.PersistRecordsWritten.Add(float64(len(ops)))
		if len(ops) > 0 {
			w.metrics.PersistLastSequence.Set(float64(ops[len(ops)-1].Sequence))
		}
	}

	return nil
}
