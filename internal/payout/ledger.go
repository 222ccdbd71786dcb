// Package payout handles everything that moves money out of the protocol:
// the deferred withdrawal ledger, the bank port, and bond/reward
// distribution after resolution.
package payout

import (
	"math/big"

	"github.com/google/uuid"

	"StreetBook/internal/fixed"
)

// Ledger is the pull-pattern withdrawal ledger. Settlement never pushes
// funds to participants; it credits here and the owner drains later. The
// creator-fee mapping is kept parallel so fee income stays visible
// separately from winnings, and global totals track funds truly owed.
type Ledger struct {
	balances    map[uuid.UUID]*big.Int
	creatorFees map[uuid.UUID]*big.Int

	outstanding    *big.Int
	outstandingFee *big.Int
}

func NewLedger() *Ledger {
	return &Ledger{
		balances:       make(map[uuid.UUID]*big.Int),
		creatorFees:    make(map[uuid.UUID]*big.Int),
		outstanding:    new(big.Int),
		outstandingFee: new(big.Int),
	}
}

// Credit adds to the account's withdrawable balance. Non-positive amounts
// are ignored so callers can pass truncated-to-zero remainders unchecked.
func (l *Ledger) Credit(account uuid.UUID, amount *big.Int) {
	if !fixed.IsPositive(amount) {
		return
	}
	bal, ok := l.balances[account]
	if !ok {
		bal = new(big.Int)
		l.balances[account] = bal
	}
	bal.Add(bal, amount)
	l.outstanding.Add(l.outstanding, amount)
}

// CreditCreatorFee accrues trade fee income for a market creator.
func (l *Ledger) CreditCreatorFee(account uuid.UUID, amount *big.Int) {
	if !fixed.IsPositive(amount) {
		return
	}
	fee, ok := l.creatorFees[account]
	if !ok {
		fee = new(big.Int)
		l.creatorFees[account] = fee
	}
	fee.Add(fee, amount)
	l.outstandingFee.Add(l.outstandingFee, amount)
}

// Balance returns a copy of the account's withdrawable balance.
func (l *Ledger) Balance(account uuid.UUID) *big.Int {
	return fixed.Clone(l.balances[account])
}

// CreatorFees returns a copy of the account's accrued creator fees.
func (l *Ledger) CreatorFees(account uuid.UUID) *big.Int {
	return fixed.Clone(l.creatorFees[account])
}

// Drain zeroes both mappings for the account atomically and returns what
// was owed. A second drain returns two zeros.
func (l *Ledger) Drain(account uuid.UUID) (balance, fees *big.Int) {
	balance = fixed.Clone(l.balances[account])
	fees = fixed.Clone(l.creatorFees[account])
	delete(l.balances, account)
	delete(l.creatorFees, account)
	l.outstanding.Sub(l.outstanding, balance)
	l.outstandingFee.Sub(l.outstandingFee, fees)
	return balance, fees
}

// Restore re-credits a drained balance after a failed payment so the funds
// are never lost, only deferred again.
func (l *Ledger) Restore(account uuid.UUID, balance, fees *big.Int) {
	l.Credit(account, balance)
	l.CreditCreatorFee(account, fees)
}

// OutstandingTotal is the sum of all withdrawable balances.
func (l *Ledger) OutstandingTotal() *big.Int {
	return fixed.Clone(l.outstanding)
}

// OutstandingCreatorFeeTotal is the sum of all accrued creator fees.
func (l *Ledger) OutstandingCreatorFeeTotal() *big.Int {
	return fixed.Clone(l.outstandingFee)
}

// Snapshot exports a deep copy of the ledger contents for state
// serialization; encoding may run after the engine lock is released.
// Totals are recomputed on restore rather than stored.
func (l *Ledger) Snapshot() (map[uuid.UUID]*big.Int, map[uuid.UUID]*big.Int) {
	balances := make(map[uuid.UUID]*big.Int, len(l.balances))
	for acct, bal := range l.balances {
		balances[acct] = fixed.Clone(bal)
	}
	creatorFees := make(map[uuid.UUID]*big.Int, len(l.creatorFees))
	for acct, fee := range l.creatorFees {
		creatorFees[acct] = fixed.Clone(fee)
	}
	return balances, creatorFees
}

// Restore replaces ledger contents from a decoded snapshot.
func (l *Ledger) RestoreSnapshot(balances, creatorFees map[uuid.UUID]*big.Int) {
	l.balances = make(map[uuid.UUID]*big.Int)
	l.creatorFees = make(map[uuid.UUID]*big.Int)
	l.outstanding = new(big.Int)
	l.outstandingFee = new(big.Int)
	for acct, bal := range balances {
		l.Credit(acct, bal)
	}
	for acct, fee := range creatorFees {
		l.CreditCreatorFee(acct, fee)
	}
}
