package engine

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"StreetBook/internal/command"
	"StreetBook/internal/curve"
	"StreetBook/internal/fixed"
	"StreetBook/internal/market"
	"StreetBook/internal/payout"
)

// BondResult is the record summary for propose and dispute.
type BondResult struct {
	Posted   *big.Int `json:"posted"`
	Fee      *big.Int `json:"fee"`
	Recorded *big.Int `json:"recorded"`
}

// VoteResult records the weight a vote carried.
type VoteResult struct {
	Weight *big.Int `json:"weight"`
}

// FinalizeResult is the record summary for finalize.
type FinalizeResult struct {
	Status  string     `json:"status"` // resolved, aborted, tie
	Outcome curve.Side `json:"outcome,omitempty"`
}

func (e *Engine) applyPropose(c *command.Propose) (any, error) {
	m, err := e.getMarket(c.Market)
	if err != nil {
		return nil, err
	}
	if e.params.Paused {
		return nil, ErrPaused
	}
	if phase := m.PhaseAt(c.Timestamp); phase != market.PhaseExpired {
		return nil, fmt.Errorf("%w: propose in phase %s", ErrWrongPhase, phase)
	}
	// a market with no holders on one side has no one to pay from; it
	// must expire into the refund path instead
	if m.YesSupply.Sign() == 0 || m.NoSupply.Sign() == 0 {
		return nil, ErrZeroSupplySide
	}

	// a proposal must leave room for a full dispute+vote cycle to finish
	// strictly before the refund deadline
	refundAt := m.ExpiresAt.Add(e.params.RefundDelay)
	if c.Timestamp.After(refundAt.Add(-e.params.ResolutionBuffer)) {
		return nil, ErrRefundTooClose
	}

	priorityEnd := m.ExpiresAt.Add(e.params.CreatorPriorityWindow)
	if c.Timestamp.Before(priorityEnd) && c.Account != m.Creator {
		return nil, fmt.Errorf("%w: until %s", ErrCreatorPriority, priorityEnd.Format(time.RFC3339))
	}

	required := m.RequiredBond(e.params)
	if c.BondAmount == nil || c.BondAmount.Cmp(required) != 0 {
		return nil, fmt.Errorf("%w: posted %s, required %s", ErrBondMismatch, fixed.String(c.BondAmount), required)
	}

	fee := fixed.Bps(required, e.params.ResolutionFeeBps)
	recorded := fixed.Sub(required, fee)

	m.Proposer = c.Account
	m.ProposedOutcome = c.Outcome
	m.ProposedAt = c.Timestamp
	m.ProposalBond = recorded
	m.ProposalBondPosted = fixed.Clone(required)

	e.dist.PayTreasury(fee)

	return &BondResult{Posted: required, Fee: fee, Recorded: recorded}, nil
}

func (e *Engine) applyDispute(c *command.Dispute) (any, error) {
	m, err := e.getMarket(c.Market)
	if err != nil {
		return nil, err
	}
	if e.params.Paused {
		return nil, ErrPaused
	}
	if phase := m.PhaseAt(c.Timestamp); phase != market.PhaseProposed {
		return nil, fmt.Errorf("%w: dispute in phase %s", ErrWrongPhase, phase)
	}
	// no additional refund-deadline cutoff here: blocking disputes near
	// that boundary would let a last-moment wrong proposal go unchallenged.
	// The window is half-open: at the exact deadline tick the window has
	// elapsed and finalize is the only accepted action.
	if !c.Timestamp.Before(m.ProposedAt.Add(e.params.DisputeWindow)) {
		return nil, fmt.Errorf("%w: dispute window ended", ErrWindowClosed)
	}

	required := new(big.Int).Lsh(m.ProposalBondPosted, 1)
	if c.BondAmount == nil || c.BondAmount.Cmp(required) != 0 {
		return nil, fmt.Errorf("%w: posted %s, required %s", ErrBondMismatch, fixed.String(c.BondAmount), required)
	}

	fee := fixed.Bps(required, e.params.ResolutionFeeBps)
	recorded := fixed.Sub(required, fee)

	m.Disputer = c.Account
	m.DisputedAt = c.Timestamp
	m.DisputeBond = recorded

	e.dist.PayTreasury(fee)

	return &BondResult{Posted: required, Fee: fee, Recorded: recorded}, nil
}

func (e *Engine) applyVote(c *command.Vote) (any, error) {
	m, err := e.getMarket(c.Market)
	if err != nil {
		return nil, err
	}
	if e.params.Paused {
		return nil, ErrPaused
	}
	if phase := m.PhaseAt(c.Timestamp); phase != market.PhaseDisputed {
		return nil, fmt.Errorf("%w: vote in phase %s", ErrWrongPhase, phase)
	}
	// half-open like the dispute window: the deadline tick belongs to
	// finalize, not to a late vote
	if !c.Timestamp.Before(m.DisputedAt.Add(e.params.VoteWindow)) {
		return nil, fmt.Errorf("%w: vote window ended", ErrWindowClosed)
	}

	pos, ok := m.LookupPosition(c.Account)
	if !ok || pos.IsEmpty() {
		return nil, ErrNoVoteWeight
	}
	if pos.HasVoted {
		return nil, ErrAlreadyVoted
	}

	// weight is the balance held right now, never re-evaluated later
	weight := pos.TotalShares()
	pos.HasVoted = true
	pos.VotedOutcome = c.Outcome
	pos.VoteWeight = weight

	if c.Outcome == curve.SideYes {
		m.YesVotes.Add(m.YesVotes, weight)
	} else {
		m.NoVotes.Add(m.NoVotes, weight)
	}

	return &VoteResult{Weight: weight}, nil
}

func (e *Engine) applyFinalize(c *command.Finalize) (any, []derived, error) {
	m, err := e.getMarket(c.Market)
	if err != nil {
		return nil, nil, err
	}
	if e.params.Paused {
		return nil, nil, ErrPaused
	}

	switch phase := m.PhaseAt(c.Timestamp); phase {
	case market.PhaseProposed:
		if c.Timestamp.Before(m.ProposedAt.Add(e.params.DisputeWindow)) {
			return nil, nil, fmt.Errorf("%w: dispute window still open", ErrWindowNotElapsed)
		}
		if m.Supply(m.ProposedOutcome).Sign() == 0 {
			return e.abortResolution(m)
		}
		return e.resolve(m, m.ProposedOutcome, c.Timestamp, false)

	case market.PhaseDisputed:
		if c.Timestamp.Before(m.DisputedAt.Add(e.params.VoteWindow)) {
			return nil, nil, fmt.Errorf("%w: vote window still open", ErrWindowNotElapsed)
		}
		if m.YesVotes.Cmp(m.NoVotes) == 0 {
			out := e.dist.SettleTie(m)
			clearResolution(m)
			return &FinalizeResult{Status: "tie"},
				[]derived{{kind: KindDisputeTied, market: m.ID, result: out}}, nil
		}
		winner := curve.SideYes
		if m.NoVotes.Cmp(m.YesVotes) > 0 {
			winner = curve.SideNo
		}
		if m.Supply(winner).Sign() == 0 {
			return e.abortResolution(m)
		}
		return e.resolve(m, winner, c.Timestamp, true)

	default:
		return nil, nil, fmt.Errorf("%w: finalize in phase %s", ErrWrongPhase, phase)
	}
}

// abortResolution declines to resolve and re-opens the refund path. The
// bonds come back and the resolution fields clear; leaving them set would
// deadlock the market out of both resolution and refund.
func (e *Engine) abortResolution(m *market.Market) (any, []derived, error) {
	out := e.dist.ReturnBonds(m)
	clearResolution(m)
	return &FinalizeResult{Status: "aborted"},
		[]derived{{kind: KindResolutionAborted, market: m.ID, result: out}}, nil
}

func (e *Engine) resolve(m *market.Market, outcome curve.Side, at time.Time, disputed bool) (any, []derived, error) {
	m.Resolved = true
	m.Outcome = outcome
	m.ResolvedAt = at

	var out payout.Outcome
	if disputed {
		out = e.dist.SettleDisputed(m, e.params)
	} else {
		out = e.dist.SettleUndisputed(m, e.params)
	}
	e.checkMarketInvariants(m)

	return &FinalizeResult{Status: "resolved", Outcome: outcome},
		[]derived{{kind: KindMarketResolved, market: m.ID, result: struct {
			Outcome    curve.Side     `json:"outcome"`
			Settlement payout.Outcome `json:"settlement"`
		}{outcome, out}}}, nil
}

func clearResolution(m *market.Market) {
	m.Proposer = uuid.Nil
	m.ProposedAt = time.Time{}
	m.ProposalBond = new(big.Int)
	m.ProposalBondPosted = new(big.Int)
	m.Disputer = uuid.Nil
	m.DisputedAt = time.Time{}
	m.DisputeBond = new(big.Int)
	m.YesVotes = new(big.Int)
	m.NoVotes = new(big.Int)
}
