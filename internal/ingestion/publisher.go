package ingestion

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"StreetBook/internal/engine"
)

// OutboundPublisher publishes operation records to NATS for downstream
// consumers (indexers, notification services, market UIs).
// Subjects follow the pattern: street.markets.events.{kind}.{market_id}
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan engine.Record
	log       zerolog.Logger
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan engine.Record, log zerolog.Logger) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
		log:       log,
	}
}

// Run starts the outbound publisher loop. Publish failures are non-fatal:
// downstream consumers can rebuild from the operation log.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case rec, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, rec); err != nil {
				op.log.Warn().Err(err).Uint64("sequence", rec.Sequence).Msg("outbound publish failed")
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, rec engine.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	subject := fmt.Sprintf("street.markets.events.%s", rec.Kind)
	if rec.Market != uuid.Nil {
		subject = fmt.Sprintf("%s.%s", subject, rec.Market)
	}

	_, err = op.js.Publish(ctx, subject, data)
	return err
}
