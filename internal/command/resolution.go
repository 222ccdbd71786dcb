package command

import (
	"math/big"

	"github.com/google/uuid"

	"StreetBook/internal/curve"
)

// Propose opens the resolution window with an outcome claim backed by a
// bond. BondAmount must equal the market's required bond exactly.
type Propose struct {
	Base
	Market     uuid.UUID  `json:"market"`
	Account    uuid.UUID  `json:"account"`
	Outcome    curve.Side `json:"outcome"`
	BondAmount *big.Int   `json:"bond_amount"`
}

func (c *Propose) Type() Type          { return TypePropose }
func (c *Propose) MarketID() uuid.UUID { return c.Market }

// Dispute challenges the open proposal. BondAmount must be exactly double
// the proposal bond.
type Dispute struct {
	Base
	Market     uuid.UUID `json:"market"`
	Account    uuid.UUID `json:"account"`
	BondAmount *big.Int  `json:"bond_amount"`
}

func (c *Dispute) Type() Type          { return TypeDispute }
func (c *Dispute) MarketID() uuid.UUID { return c.Market }

// Vote casts a share-weighted vote during a dispute. Weight is captured from
// the voter's position when the vote lands.
type Vote struct {
	Base
	Market  uuid.UUID  `json:"market"`
	Account uuid.UUID  `json:"account"`
	Outcome curve.Side `json:"outcome"`
}

func (c *Vote) Type() Type          { return TypeVote }
func (c *Vote) MarketID() uuid.UUID { return c.Market }

// Finalize closes resolution once the relevant window has elapsed. Anyone
// may call it; Account records the caller.
type Finalize struct {
	Base
	Market  uuid.UUID `json:"market"`
	Account uuid.UUID `json:"account"`
}

func (c *Finalize) Type() Type          { return TypeFinalize }
func (c *Finalize) MarketID() uuid.UUID { return c.Market }
