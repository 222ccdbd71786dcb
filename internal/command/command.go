// Package command defines the typed inputs the engine processes. Commands
// are built at the ingress edge (HTTP, NATS, replay); each carries a UUID
// for idempotent processing and the timestamp assigned when it entered the
// system. The engine itself never reads the clock.
package command

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeCreateMarket    Type = "create_market"
	TypeBuy             Type = "buy"
	TypeSell            Type = "sell"
	TypePropose         Type = "propose"
	TypeDispute         Type = "dispute"
	TypeVote            Type = "vote"
	TypeFinalize        Type = "finalize"
	TypeClaim           Type = "claim"
	TypeEmergencyRefund Type = "emergency_refund"
	TypeWithdraw        Type = "withdraw"
	TypeParamUpdate     Type = "param_update"
	TypeSetPaused       Type = "set_paused"
)

// Command is one unit of work for the engine.
type Command interface {
	CommandID() uuid.UUID
	Type() Type
	// MarketID is uuid.Nil for commands not scoped to a single market.
	MarketID() uuid.UUID
	OccurredAt() time.Time
}

// Base carries the fields every command shares.
type Base struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func (b Base) CommandID() uuid.UUID  { return b.ID }
func (b Base) OccurredAt() time.Time { return b.Timestamp }

// NewBase stamps a fresh command at the ingress edge.
func NewBase(now time.Time) Base {
	return Base{ID: uuid.New(), Timestamp: now.UTC()}
}

// Decode rebuilds a command from its type tag and JSON payload. Replay and
// the NATS subscriber both go through here, so the wire format and the log
// format stay identical.
func Decode(typ Type, payload []byte) (Command, error) {
	var cmd Command
	switch typ {
	case TypeCreateMarket:
		cmd = &CreateMarket{}
	case TypeBuy:
		cmd = &Buy{}
	case TypeSell:
		cmd = &Sell{}
	case TypePropose:
		cmd = &Propose{}
	case TypeDispute:
		cmd = &Dispute{}
	case TypeVote:
		cmd = &Vote{}
	case TypeFinalize:
		cmd = &Finalize{}
	case TypeClaim:
		cmd = &Claim{}
	case TypeEmergencyRefund:
		cmd = &EmergencyRefund{}
	case TypeWithdraw:
		cmd = &Withdraw{}
	case TypeParamUpdate:
		cmd = &ParamUpdate{}
	case TypeSetPaused:
		cmd = &SetPaused{}
	default:
		return nil, fmt.Errorf("unknown command type %q", typ)
	}
	if err := json.Unmarshal(payload, cmd); err != nil {
		return nil, fmt.Errorf("decode %s: %w", typ, err)
	}
	return cmd, nil
}

// Encode serializes a command for the operation log and outbound stream.
func Encode(cmd Command) ([]byte, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd.Type(), err)
	}
	return payload, nil
}
