// Package market holds the in-memory data model: markets, positions, protocol
// parameters. All mutation happens through the engine; nothing here touches
// the clock, timestamps are always passed in.
package market

import (
	"math/big"
	"time"

	"github.com/google/uuid"

	"StreetBook/internal/curve"
	"StreetBook/internal/fixed"
)

// Phase is the lifecycle stage of a market. It is derived from resolution
// fields plus the supplied clock, never stored, so it cannot go stale.
type Phase int32

const (
	PhaseActive Phase = iota
	PhaseExpired
	PhaseProposed
	PhaseDisputed
	PhaseResolved
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseExpired:
		return "expired"
	case PhaseProposed:
		return "proposed"
	case PhaseDisputed:
		return "disputed"
	case PhaseResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Market is one two-sided wagering market. Monetary fields are smallest
// native units, share fields are 1e18-scaled.
type Market struct {
	ID       uuid.UUID `json:"id"`
	Question string    `json:"question"`
	Evidence string    `json:"evidence"`
	Rules    string    `json:"rules"`
	Creator  uuid.UUID `json:"creator"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	Heat             HeatLevel `json:"heat"`
	VirtualLiquidity *big.Int  `json:"virtual_liquidity"`

	YesSupply   *big.Int `json:"yes_supply"`
	NoSupply    *big.Int `json:"no_supply"`
	PoolBalance *big.Int `json:"pool_balance"`

	Resolved   bool       `json:"resolved"`
	Outcome    curve.Side `json:"outcome"`
	ResolvedAt time.Time  `json:"resolved_at"`

	// Proposer == uuid.Nil means no open proposal. Clearing it is what
	// re-opens the propose path after an aborted resolution.
	Proposer        uuid.UUID  `json:"proposer"`
	ProposedOutcome curve.Side `json:"proposed_outcome"`
	ProposedAt      time.Time  `json:"proposed_at"`
	// ProposalBond is the returnable remainder after the resolution-fee
	// skim; ProposalBondPosted is the gross amount the proposer paid,
	// which the dispute bond must exactly double.
	ProposalBond       *big.Int `json:"proposal_bond"`
	ProposalBondPosted *big.Int `json:"proposal_bond_posted"`

	Disputer    uuid.UUID `json:"disputer"`
	DisputedAt  time.Time `json:"disputed_at"`
	DisputeBond *big.Int  `json:"dispute_bond"`

	// Share-weighted vote accumulators for the current dispute round.
	YesVotes *big.Int `json:"yes_votes"`
	NoVotes  *big.Int `json:"no_votes"`

	Positions map[uuid.UUID]*Position `json:"positions"`
}

// NewMarket builds a market with zeroed supplies and the heat level's
// virtual liquidity.
func NewMarket(id uuid.UUID, question, evidence, rules string, creator uuid.UUID, createdAt, expiresAt time.Time, heat HeatLevel) *Market {
	return &Market{
		ID:                 id,
		Question:           question,
		Evidence:           evidence,
		Rules:              rules,
		Creator:            creator,
		CreatedAt:          createdAt,
		ExpiresAt:          expiresAt,
		Heat:               heat,
		VirtualLiquidity:   heat.VirtualLiquidity(),
		YesSupply:          new(big.Int),
		NoSupply:           new(big.Int),
		PoolBalance:        new(big.Int),
		ProposalBond:       new(big.Int),
		ProposalBondPosted: new(big.Int),
		DisputeBond:        new(big.Int),
		YesVotes:           new(big.Int),
		NoVotes:            new(big.Int),
		Positions:          make(map[uuid.UUID]*Position),
	}
}

// Clone returns an independent deep copy: snapshot serialization runs
// concurrently with the engine, so nothing in the copy may alias live
// big.Ints or the positions map.
func (m *Market) Clone() *Market {
	out := *m
	out.VirtualLiquidity = fixed.Clone(m.VirtualLiquidity)
	out.YesSupply = fixed.Clone(m.YesSupply)
	out.NoSupply = fixed.Clone(m.NoSupply)
	out.PoolBalance = fixed.Clone(m.PoolBalance)
	out.ProposalBond = fixed.Clone(m.ProposalBond)
	out.ProposalBondPosted = fixed.Clone(m.ProposalBondPosted)
	out.DisputeBond = fixed.Clone(m.DisputeBond)
	out.YesVotes = fixed.Clone(m.YesVotes)
	out.NoVotes = fixed.Clone(m.NoVotes)
	out.Positions = make(map[uuid.UUID]*Position, len(m.Positions))
	for acct, pos := range m.Positions {
		out.Positions[acct] = pos.Clone()
	}
	return &out
}

// PhaseAt derives the lifecycle phase at the given instant.
func (m *Market) PhaseAt(now time.Time) Phase {
	switch {
	case m.Resolved:
		return PhaseResolved
	case m.Disputer != uuid.Nil:
		return PhaseDisputed
	case m.Proposer != uuid.Nil:
		return PhaseProposed
	case !now.Before(m.ExpiresAt):
		return PhaseExpired
	default:
		return PhaseActive
	}
}

// Supply returns the outstanding shares on one side.
func (m *Market) Supply(side curve.Side) *big.Int {
	if side == curve.SideYes {
		return m.YesSupply
	}
	return m.NoSupply
}

// RequiredBond computes the proposal bond: max(bondFloor, dynamicBondBps of
// the current pool). Disputes post exactly double this.
func (m *Market) RequiredBond(p ProtocolParams) *big.Int {
	return fixed.Max(p.BondFloor, fixed.Bps(m.PoolBalance, p.DynamicBondBps))
}

// PositionFor returns the account's position, creating an empty one on first
// touch.
func (m *Market) PositionFor(account uuid.UUID) *Position {
	pos, ok := m.Positions[account]
	if !ok {
		pos = NewPosition(account)
		m.Positions[account] = pos
	}
	return pos
}

// LookupPosition returns the position without creating one.
func (m *Market) LookupPosition(account uuid.UUID) (*Position, bool) {
	pos, ok := m.Positions[account]
	return pos, ok
}

// SortedAccounts returns position holders in byte order of their IDs so that
// payout iteration is deterministic across replays.
func (m *Market) SortedAccounts() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(m.Positions))
	for acct := range m.Positions {
		out = append(out, acct)
	}
	sortUUIDs(out)
	return out
}
