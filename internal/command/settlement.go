package command

import (
	"github.com/google/uuid"

	"StreetBook/internal/market"
)

// Claim pays out the caller's winning shares after resolution.
type Claim struct {
	Base
	Market  uuid.UUID `json:"market"`
	Account uuid.UUID `json:"account"`
}

func (c *Claim) Type() Type          { return TypeClaim }
func (c *Claim) MarketID() uuid.UUID { return c.Market }

// EmergencyRefund returns a proportional pool share when resolution has
// stalled past the refund deadline, or while the protocol is paused.
type EmergencyRefund struct {
	Base
	Market  uuid.UUID `json:"market"`
	Account uuid.UUID `json:"account"`
}

func (c *EmergencyRefund) Type() Type          { return TypeEmergencyRefund }
func (c *EmergencyRefund) MarketID() uuid.UUID { return c.Market }

// Withdraw drains the caller's deferred balance and accrued creator fees.
type Withdraw struct {
	Base
	Account uuid.UUID `json:"account"`
}

func (c *Withdraw) Type() Type          { return TypeWithdraw }
func (c *Withdraw) MarketID() uuid.UUID { return uuid.Nil }

// ParamUpdate replaces the protocol parameters. Updates originate from the
// external governance process, over NATS or the admin endpoint.
type ParamUpdate struct {
	Base
	Params market.ProtocolParams `json:"params"`
}

func (c *ParamUpdate) Type() Type          { return TypeParamUpdate }
func (c *ParamUpdate) MarketID() uuid.UUID { return uuid.Nil }

// SetPaused flips the protocol pause flag. Pausing halts trading and
// resolution and opens the emergency refund path.
type SetPaused struct {
	Base
	Paused bool `json:"paused"`
}

func (c *SetPaused) Type() Type          { return TypeSetPaused }
func (c *SetPaused) MarketID() uuid.UUID { return uuid.Nil }
