package engine

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"StreetBook/internal/command"
	"StreetBook/internal/fixed"
	"StreetBook/internal/market"
)

// SettleAmount is the record summary for claim and emergency refund.
type SettleAmount struct {
	Amount *big.Int `json:"amount"`
}

// WithdrawResult is the record summary for withdraw.
type WithdrawResult struct {
	Balance     *big.Int `json:"balance"`
	CreatorFees *big.Int `json:"creator_fees"`
	Total       *big.Int `json:"total"`
}

func (e *Engine) applyClaim(c *command.Claim) (any, error) {
	m, err := e.getMarket(c.Market)
	if err != nil {
		return nil, err
	}
	if !m.Resolved {
		return nil, ErrNotResolved
	}

	pos, ok := m.LookupPosition(c.Account)
	if !ok {
		return nil, ErrNoWinningShares
	}
	if pos.Claimed {
		return nil, ErrAlreadyClaimed
	}
	if pos.Refunded {
		return nil, ErrAlreadyRefunded
	}

	winShares := pos.Shares(m.Outcome)
	if winShares.Sign() == 0 {
		// the flag stays unset: a losing holder keeps a clean record
		return nil, ErrNoWinningShares
	}

	winningSupply := m.Supply(m.Outcome)
	amount := fixed.MulDiv(m.PoolBalance, winShares, winningSupply)

	// shrink supply and pool before paying so later claimants compute
	// correct proportions
	claimed := fixed.Clone(winShares)
	winningSupply.Sub(winningSupply, claimed)
	m.PoolBalance.Sub(m.PoolBalance, amount)
	pos.Shares(m.Outcome).SetInt64(0)
	pos.Claimed = true
	e.checkMarketInvariants(m)

	if err := e.bank.Pay(c.Account, amount); err != nil {
		e.ledger.Credit(c.Account, amount)
	}

	return &SettleAmount{Amount: amount}, nil
}

// RefundEligible reports whether the market is in the emergency-refund
// condition at the given instant. A protocol pause always opens the path;
// otherwise the refund delay must have elapsed with the market unresolved
// and no proposer recorded.
func (e *Engine) RefundEligible(m *market.Market, now time.Time) bool {
	if e.params.Paused {
		return true
	}
	if m.Resolved || m.Proposer != uuid.Nil {
		return false
	}
	return !now.Before(m.ExpiresAt.Add(e.params.RefundDelay))
}

func (e *Engine) applyEmergencyRefund(c *command.EmergencyRefund) (any, error) {
	m, err := e.getMarket(c.Market)
	if err != nil {
		return nil, err
	}
	if !e.RefundEligible(m, c.Timestamp) {
		return nil, ErrRefundNotEligible
	}

	pos, ok := m.LookupPosition(c.Account)
	if !ok || pos.IsEmpty() {
		return nil, fmt.Errorf("%w: no shares held", ErrRefundNotEligible)
	}
	if pos.Refunded {
		return nil, ErrAlreadyRefunded
	}
	if pos.Claimed {
		return nil, ErrAlreadyClaimed
	}

	totalSupply := fixed.Add(m.YesSupply, m.NoSupply)
	if totalSupply.Sign() == 0 {
		return nil, fmt.Errorf("%w: nothing outstanding", ErrRefundNotEligible)
	}
	held := pos.TotalShares()
	amount := fixed.MulDiv(m.PoolBalance, held, totalSupply)

	// shrink pool and supplies immediately so later refunders compute
	// proportions against what actually remains
	m.YesSupply.Sub(m.YesSupply, pos.YesShares)
	m.NoSupply.Sub(m.NoSupply, pos.NoShares)
	m.PoolBalance.Sub(m.PoolBalance, amount)
	pos.YesShares.SetInt64(0)
	pos.NoShares.SetInt64(0)
	pos.Refunded = true
	e.checkMarketInvariants(m)

	if err := e.bank.Pay(c.Account, amount); err != nil {
		e.ledger.Credit(c.Account, amount)
	}

	return &SettleAmount{Amount: amount}, nil
}

func (e *Engine) applyWithdraw(c *command.Withdraw) (any, error) {
	balance, fees := e.ledger.Drain(c.Account)
	total := fixed.Add(balance, fees)
	if total.Sign() == 0 {
		return nil, ErrNothingToWithdraw
	}

	if err := e.bank.Pay(c.Account, total); err != nil {
		e.ledger.Restore(c.Account, balance, fees)
		return nil, fmt.Errorf("withdraw payment failed: %w", err)
	}

	return &WithdrawResult{Balance: balance, CreatorFees: fees, Total: total}, nil
}
