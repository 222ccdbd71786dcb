package command

import (
	"math/big"
	"time"

	"github.com/google/uuid"

	"StreetBook/internal/curve"
	"StreetBook/internal/market"
)

// CreateMarket opens a new two-sided market. The market ID is assigned at
// the ingress edge so replay reproduces it exactly.
type CreateMarket struct {
	Base
	NewMarketID uuid.UUID        `json:"new_market_id"`
	Question    string           `json:"question"`
	Evidence    string           `json:"evidence"`
	Rules       string           `json:"rules"`
	Creator     uuid.UUID        `json:"creator"`
	ExpiresAt   time.Time        `json:"expires_at"`
	Heat        market.HeatLevel `json:"heat"`
}

func (c *CreateMarket) Type() Type          { return TypeCreateMarket }
func (c *CreateMarket) MarketID() uuid.UUID { return c.NewMarketID }

// Buy spends AmountIn on one side. MinSharesOut is the slippage floor; the
// trade rejects if the quote lands below it.
type Buy struct {
	Base
	Market       uuid.UUID  `json:"market"`
	Account      uuid.UUID  `json:"account"`
	Side         curve.Side `json:"side"`
	AmountIn     *big.Int   `json:"amount_in"`
	MinSharesOut *big.Int   `json:"min_shares_out"`
}

func (c *Buy) Type() Type          { return TypeBuy }
func (c *Buy) MarketID() uuid.UUID { return c.Market }

// Sell returns Shares to the curve. MinAmountOut is the slippage floor.
type Sell struct {
	Base
	Market       uuid.UUID  `json:"market"`
	Account      uuid.UUID  `json:"account"`
	Side         curve.Side `json:"side"`
	Shares       *big.Int   `json:"shares"`
	MinAmountOut *big.Int   `json:"min_amount_out"`
}

func (c *Sell) Type() Type          { return TypeSell }
func (c *Sell) MarketID() uuid.UUID { return c.Market }
