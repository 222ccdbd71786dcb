package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"StreetBook/internal/command"
	"StreetBook/internal/fixed"
	"StreetBook/internal/market"
)

// ParseGovernance converts a raw governance message into a typed command.
// Field names use snake_case to match the governance publisher; amounts are
// decimal strings and windows are whole seconds.
func ParseGovernance(raw RawMessage, now time.Time) (command.Command, error) {
	switch {
	case strings.HasPrefix(raw.Subject, "street.params.update"):
		return parseParamUpdate(raw.Data, now)
	case strings.HasPrefix(raw.Subject, "street.control.pause"):
		return parseSetPaused(raw.Data, now)
	default:
		return nil, fmt.Errorf("unknown governance subject: %s", raw.Subject)
	}
}

type paramUpdateJSON struct {
	TradeFeeBps          int64  `json:"trade_fee_bps"`
	CreatorFeeBps        int64  `json:"creator_fee_bps"`
	ResolutionFeeBps     int64  `json:"resolution_fee_bps"`
	ProposerRewardBps    int64  `json:"proposer_reward_bps"`
	MaxProposerRewardBps int64  `json:"max_proposer_reward_bps"`
	MajorityShareBps     int64  `json:"majority_share_bps"`
	BondFloor            string `json:"bond_floor"`
	DynamicBondBps       int64  `json:"dynamic_bond_bps"`

	CreatorPriorityWindowSec int64 `json:"creator_priority_window_s"`
	DisputeWindowSec         int64 `json:"dispute_window_s"`
	VoteWindowSec            int64 `json:"vote_window_s"`
	RefundDelaySec           int64 `json:"refund_delay_s"`
	ResolutionBufferSec      int64 `json:"resolution_buffer_s"`
}

func parseParamUpdate(data []byte, now time.Time) (*command.ParamUpdate, error) {
	var j paramUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse param update: %w", err)
	}

	bondFloor, ok := fixed.FromString(j.BondFloor)
	if !ok {
		return nil, fmt.Errorf("parse bond_floor: %q", j.BondFloor)
	}

	return &command.ParamUpdate{
		Base: command.NewBase(now),
		Params: market.ProtocolParams{
			TradeFeeBps:           j.TradeFeeBps,
			CreatorFeeBps:         j.CreatorFeeBps,
			ResolutionFeeBps:      j.ResolutionFeeBps,
			ProposerRewardBps:     j.ProposerRewardBps,
			MaxProposerRewardBps:  j.MaxProposerRewardBps,
			MajorityShareBps:      j.MajorityShareBps,
			BondFloor:             bondFloor,
			DynamicBondBps:        j.DynamicBondBps,
			CreatorPriorityWindow: time.Duration(j.CreatorPriorityWindowSec) * time.Second,
			DisputeWindow:         time.Duration(j.DisputeWindowSec) * time.Second,
			VoteWindow:            time.Duration(j.VoteWindowSec) * time.Second,
			RefundDelay:           time.Duration(j.RefundDelaySec) * time.Second,
			ResolutionBuffer:      time.Duration(j.ResolutionBufferSec) * time.Second,
		},
	}, nil
}

type pauseJSON struct {
	Paused bool `json:"paused"`
}

func parseSetPaused(data []byte, now time.Time) (*command.SetPaused, error) {
	var j pauseJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse pause control: %w", err)
	}
	return &command.SetPaused{
		Base:   command.NewBase(now),
		Paused: j.Paused,
	}, nil
}
