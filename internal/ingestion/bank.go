package ingestion

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"StreetBook/internal/fixed"
	"StreetBook/internal/observability"
	"StreetBook/internal/persistence"
)

// PaymentBank hands settlement instructions to the payment rail. It
// publishes to street.payments.instructions.{account} and records the
// instruction in street.payouts via the persistence worker.
//
// Pay always returns nil: publishes are async and JetStream redelivers on
// its side, so the engine's settlement flow is identical on the original
// run and on replay. The ledger fallback path only ever fires through the
// in-process test banks.
type PaymentBank struct {
	js      jetstream.JetStream
	payouts chan<- persistence.PayoutRow
	metrics *observability.Metrics
	log     zerolog.Logger
}

type paymentInstruction struct {
	PayoutID uuid.UUID `json:"payout_id"`
	Account  uuid.UUID `json:"account"`
	Amount   string    `json:"amount"`
	IssuedAt time.Time `json:"issued_at"`
}

func NewPaymentBank(
	js jetstream.JetStream,
	payouts chan<- persistence.PayoutRow,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *PaymentBank {
	return &PaymentBank{
		js:      js,
		payouts: payouts,
		metrics: metrics,
		log:     log,
	}
}

func (b *PaymentBank) Pay(account uuid.UUID, amount *big.Int) error {
	if !fixed.IsPositive(amount) {
		return nil
	}

	instr := paymentInstruction{
		PayoutID: uuid.New(),
		Account:  account,
		Amount:   amount.String(),
		IssuedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(instr)
	if err != nil {
		b.log.Error().Err(err).Str("account", account.String()).Msg("cannot marshal payment instruction")
		return nil
	}

	subject := fmt.Sprintf("street.payments.instructions.%s", account)
	if _, err := b.js.PublishAsync(subject, data); err != nil {
		b.log.Error().Err(err).Str("account", account.String()).Str("amount", instr.Amount).
			Msg("payment publish failed, instruction retained in payout log")
	}
	if b.metrics != nil {
		b.metrics.PaymentsIssued.WithLabelValues("instruction").Inc()
	}

	if b.payouts != nil {
		b.payouts <- persistence.PayoutRow{
			PayoutID:  instr.PayoutID,
			Account:   account,
			Amount:    instr.Amount,
			Kind:      "payment",
			CreatedAt: instr.IssuedAt,
		}
	}

	return nil
}
