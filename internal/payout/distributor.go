package payout

import (
	"math/big"

	"github.com/google/uuid"

	"StreetBook/internal/curve"
	"StreetBook/internal/fixed"
	"StreetBook/internal/market"
)

// Distributor turns resolution outcomes into money movements. Participant
// payouts are always deferred ledger credits; only protocol income is
// pushed through the bank, and even that falls back to a ledger credit if
// the push fails.
type Distributor struct {
	ledger   *Ledger
	bank     Bank
	treasury uuid.UUID
}

func NewDistributor(ledger *Ledger, bank Bank, treasury uuid.UUID) *Distributor {
	return &Distributor{ledger: ledger, bank: bank, treasury: treasury}
}

// Outcome summarizes one settlement for the operation record.
type Outcome struct {
	ProposerCredit *big.Int `json:"proposer_credit,omitempty"`
	DisputerCredit *big.Int `json:"disputer_credit,omitempty"`
	JuryPool       *big.Int `json:"jury_pool,omitempty"`
	TreasuryCut    *big.Int `json:"treasury_cut,omitempty"`
	PoolReward     *big.Int `json:"pool_reward,omitempty"`
}

// PayTreasury pushes protocol income to the treasury account.
func (d *Distributor) PayTreasury(amount *big.Int) {
	if !fixed.IsPositive(amount) {
		return
	}
	if err := d.bank.Pay(d.treasury, amount); err != nil {
		d.ledger.Credit(d.treasury, amount)
	}
}

// SettleUndisputed pays an unchallenged proposer: bond back plus the pool
// reward. The reward comes out of the pool before winners claim, so the
// winning side collectively funds it.
func (d *Distributor) SettleUndisputed(m *market.Market, p market.ProtocolParams) Outcome {
	reward := fixed.Bps(m.PoolBalance, p.ProposerRewardBps)
	m.PoolBalance.Sub(m.PoolBalance, reward)

	credit := fixed.Add(m.ProposalBond, reward)
	d.ledger.Credit(m.Proposer, credit)
	return Outcome{ProposerCredit: credit, PoolReward: reward}
}

// SettleDisputed pays out after a vote decided between proposer and
// disputer. The prevailing party recovers its own bond plus the majority
// share of the losing bond; the remainder of the losing bond funds the
// jury, split by recorded vote weight. The pool reward goes only to a
// winning proposer, never to a disputer. With no winning-side voters the
// jury pool goes to the treasury instead.
func (d *Distributor) SettleDisputed(m *market.Market, p market.ProtocolParams) Outcome {
	var out Outcome

	winner := m.Outcome
	proposerWon := winner == m.ProposedOutcome

	var winAccount uuid.UUID
	var winBond, loseBond *big.Int
	if proposerWon {
		winAccount, winBond, loseBond = m.Proposer, m.ProposalBond, m.DisputeBond
	} else {
		winAccount, winBond, loseBond = m.Disputer, m.DisputeBond, m.ProposalBond
	}

	majorityCut := fixed.Bps(loseBond, p.MajorityShareBps)

	winCredit := fixed.Add(winBond, majorityCut)
	if proposerWon {
		reward := fixed.Bps(m.PoolBalance, p.ProposerRewardBps)
		m.PoolBalance.Sub(m.PoolBalance, reward)
		out.PoolReward = reward
		winCredit.Add(winCredit, reward)
	}
	d.ledger.Credit(winAccount, winCredit)
	if proposerWon {
		out.ProposerCredit = winCredit
	} else {
		out.DisputerCredit = winCredit
	}

	juryPool := fixed.Sub(loseBond, majorityCut)
	out.JuryPool = juryPool
	out.TreasuryCut = d.distributeJury(m, winner, juryPool)
	d.PayTreasury(out.TreasuryCut)
	return out
}

// distributeJury splits the jury pool among winning-side voters in
// proportion to the weight recorded when each vote landed. It returns the
// undistributed remainder (truncation dust, or the whole pool when the
// winning side cast no votes).
func (d *Distributor) distributeJury(m *market.Market, winner curve.Side, juryPool *big.Int) *big.Int {
	if !fixed.IsPositive(juryPool) {
		return new(big.Int)
	}

	totalWeight := new(big.Int)
	for _, pos := range m.Positions {
		if pos.HasVoted && pos.VotedOutcome == winner {
			totalWeight.Add(totalWeight, pos.VoteWeight)
		}
	}
	if totalWeight.Sign() == 0 {
		return fixed.Clone(juryPool)
	}

	distributed := new(big.Int)
	for _, acct := range m.SortedAccounts() {
		pos := m.Positions[acct]
		if !pos.HasVoted || pos.VotedOutcome != winner {
			continue
		}
		share := fixed.MulDiv(juryPool, pos.VoteWeight, totalWeight)
		d.ledger.Credit(acct, share)
		distributed.Add(distributed, share)
	}
	return fixed.Sub(juryPool, distributed)
}

// SettleTie returns both bonds when a dispute vote deadlocks. Neither side
// profits and neither is punished; the market goes back to accepting a
// fresh proposal.
func (d *Distributor) SettleTie(m *market.Market) Outcome {
	proposerCredit := fixed.Clone(m.ProposalBond)
	disputerCredit := fixed.Clone(m.DisputeBond)
	d.ledger.Credit(m.Proposer, proposerCredit)
	d.ledger.Credit(m.Disputer, disputerCredit)
	return Outcome{ProposerCredit: proposerCredit, DisputerCredit: disputerCredit}
}

// ReturnBonds refunds whichever bonds are open when a resolution aborts on
// a zero-supply side.
func (d *Distributor) ReturnBonds(m *market.Market) Outcome {
	var out Outcome
	if m.Proposer != uuid.Nil && fixed.IsPositive(m.ProposalBond) {
		out.ProposerCredit = fixed.Clone(m.ProposalBond)
		d.ledger.Credit(m.Proposer, out.ProposerCredit)
	}
	if m.Disputer != uuid.Nil && fixed.IsPositive(m.DisputeBond) {
		out.DisputerCredit = fixed.Clone(m.DisputeBond)
		d.ledger.Credit(m.Disputer, out.DisputerCredit)
	}
	return out
}
