package market

import (
	"fmt"
	"math/big"
	"time"

	"StreetBook/internal/fixed"
)

// Majority bond share bounds. Outside this band the split either stops
// rewarding the majority or starves the jury entirely.
const (
	MinMajorityShareBps = 2000
	MaxMajorityShareBps = 8000
)

// ProtocolParams are the governance-controlled knobs. They arrive as external
// updates; the engine validates and clamps, it never originates them.
type ProtocolParams struct {
	TradeFeeBps      int64 `json:"trade_fee_bps"`
	CreatorFeeBps    int64 `json:"creator_fee_bps"`
	ResolutionFeeBps int64 `json:"resolution_fee_bps"`

	ProposerRewardBps    int64 `json:"proposer_reward_bps"`
	MaxProposerRewardBps int64 `json:"max_proposer_reward_bps"`

	// MajorityShareBps is the winning side's cut of the losing bond,
	// clamped to [MinMajorityShareBps, MaxMajorityShareBps].
	MajorityShareBps int64 `json:"majority_share_bps"`

	BondFloor      *big.Int `json:"bond_floor"`
	DynamicBondBps int64    `json:"dynamic_bond_bps"`

	CreatorPriorityWindow time.Duration `json:"creator_priority_window"`
	DisputeWindow         time.Duration `json:"dispute_window"`
	VoteWindow            time.Duration `json:"vote_window"`

	// RefundDelay is how long after expiry an unresolved, unproposed market
	// stays claimable before emergency refunds open.
	RefundDelay time.Duration `json:"refund_delay"`

	// ResolutionBuffer is the minimum room a new proposal must leave before
	// the refund deadline so dispute and vote windows can complete.
	ResolutionBuffer time.Duration `json:"resolution_buffer"`

	Paused bool `json:"paused"`
}

// DefaultParams returns the launch configuration.
func DefaultParams() ProtocolParams {
	return ProtocolParams{
		TradeFeeBps:          100, // 1%
		CreatorFeeBps:        50,
		ResolutionFeeBps:     500,
		ProposerRewardBps:    100,
		MaxProposerRewardBps: 300,
		MajorityShareBps:     5000,
		BondFloor:            new(big.Int).Mul(big.NewInt(10), fixed.UnitPrice),
		DynamicBondBps:       100,
		CreatorPriorityWindow: time.Hour,
		DisputeWindow:         24 * time.Hour,
		VoteWindow:            48 * time.Hour,
		RefundDelay:           30 * 24 * time.Hour,
		ResolutionBuffer:      72 * time.Hour,
	}
}

// Validate rejects parameter sets that would wedge the protocol.
func (p ProtocolParams) Validate() error {
	for _, f := range []struct {
		name string
		bps  int64
	}{
		{"trade_fee_bps", p.TradeFeeBps},
		{"creator_fee_bps", p.CreatorFeeBps},
		{"resolution_fee_bps", p.ResolutionFeeBps},
		{"proposer_reward_bps", p.ProposerRewardBps},
		{"max_proposer_reward_bps", p.MaxProposerRewardBps},
		{"dynamic_bond_bps", p.DynamicBondBps},
	} {
		if f.bps < 0 || f.bps >= 10_000 {
			return fmt.Errorf("%s out of range: %d", f.name, f.bps)
		}
	}
	if p.TradeFeeBps+p.CreatorFeeBps >= 10_000 {
		return fmt.Errorf("combined trade fees consume entire notional")
	}
	if p.ProposerRewardBps > p.MaxProposerRewardBps {
		return fmt.Errorf("proposer_reward_bps %d exceeds max %d",
			p.ProposerRewardBps, p.MaxProposerRewardBps)
	}
	if p.MajorityShareBps < MinMajorityShareBps || p.MajorityShareBps > MaxMajorityShareBps {
		return fmt.Errorf("majority_share_bps %d outside [%d, %d]",
			p.MajorityShareBps, MinMajorityShareBps, MaxMajorityShareBps)
	}
	if !fixed.IsPositive(p.BondFloor) {
		return fmt.Errorf("bond_floor must be positive")
	}
	if p.DisputeWindow <= 0 || p.VoteWindow <= 0 || p.RefundDelay <= 0 {
		return fmt.Errorf("windows must be positive")
	}
	if p.ResolutionBuffer < p.DisputeWindow+p.VoteWindow {
		return fmt.Errorf("resolution_buffer %s shorter than dispute+vote windows %s",
			p.ResolutionBuffer, p.DisputeWindow+p.VoteWindow)
	}
	return nil
}
