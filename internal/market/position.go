package market

import (
	"math/big"
	"sort"

	"github.com/google/uuid"

	"StreetBook/internal/curve"
	"StreetBook/internal/fixed"
)

// Position tracks one account's stake in one market. The Claimed and
// Refunded flags are persistent and mutually exclusive: once either exit
// path has paid out, the other is closed forever.
type Position struct {
	Account   uuid.UUID `json:"account"`
	YesShares *big.Int  `json:"yes_shares"`
	NoShares  *big.Int  `json:"no_shares"`

	Claimed  bool `json:"claimed"`
	Refunded bool `json:"refunded"`

	HasVoted     bool       `json:"has_voted"`
	VotedOutcome curve.Side `json:"voted_outcome"`
	// VoteWeight is the total share balance captured at vote time. Jury
	// rewards use this recorded weight, not the balance at finalize.
	VoteWeight *big.Int `json:"vote_weight"`
}

func NewPosition(account uuid.UUID) *Position {
	return &Position{
		Account:    account,
		YesShares:  new(big.Int),
		NoShares:   new(big.Int),
		VoteWeight: new(big.Int),
	}
}

// Shares returns the balance on one side. The returned value aliases the
// position; callers that mutate must go through AddShares/SubShares.
func (p *Position) Shares(side curve.Side) *big.Int {
	if side == curve.SideYes {
		return p.YesShares
	}
	return p.NoShares
}

// TotalShares is YES + NO, the weight a vote carries.
func (p *Position) TotalShares() *big.Int {
	return fixed.Add(p.YesShares, p.NoShares)
}

func (p *Position) AddShares(side curve.Side, amount *big.Int) {
	p.Shares(side).Add(p.Shares(side), amount)
}

func (p *Position) SubShares(side curve.Side, amount *big.Int) {
	p.Shares(side).Sub(p.Shares(side), amount)
}

// Clone returns an independent copy with no shared big.Int values.
func (p *Position) Clone() *Position {
	out := *p
	out.YesShares = fixed.Clone(p.YesShares)
	out.NoShares = fixed.Clone(p.NoShares)
	out.VoteWeight = fixed.Clone(p.VoteWeight)
	return &out
}

// IsEmpty reports whether the position holds no shares on either side.
func (p *Position) IsEmpty() bool {
	return p.YesShares.Sign() == 0 && p.NoShares.Sign() == 0
}

func sortUUIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		for k := 0; k < len(a); k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
}
