package payout

import (
	"math/big"

	"github.com/google/uuid"
)

// Bank is the outbound settlement port. The production implementation
// publishes payment instructions for the external settlement system;
// tests use in-memory fakes.
//
// A failed Pay must never abort the operation that triggered it: callers
// convert the failure into a deferred ledger credit instead.
type Bank interface {
	Pay(account uuid.UUID, amount *big.Int) error
}
