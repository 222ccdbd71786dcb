package query

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OperationEntry is one row of the operation log as served to clients.
type OperationEntry struct {
	Sequence  int64           `json:"sequence"`
	CommandID uuid.UUID       `json:"command_id"`
	Kind      string          `json:"kind"`
	MarketID  *uuid.UUID      `json:"market_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// PayoutEntry is one payment instruction as served to clients.
type PayoutEntry struct {
	PayoutID  uuid.UUID `json:"payout_id"`
	Account   uuid.UUID `json:"account"`
	Amount    string    `json:"amount"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// OpsFilter narrows an operation history query. Nil or zero fields mean no
// filter; BeforeSequence is the pagination cursor.
type OpsFilter struct {
	MarketID       *uuid.UUID
	Kind           string
	BeforeSequence *int64
	Limit          int
}
