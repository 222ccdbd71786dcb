package engine

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"StreetBook/internal/command"
	"StreetBook/internal/curve"
	"StreetBook/internal/fixed"
	"StreetBook/internal/market"
)

// TradeResult is the record summary for buys and sells.
type TradeResult struct {
	Shares      *big.Int `json:"shares,omitempty"`
	AmountOut   *big.Int `json:"amount_out,omitempty"`
	ProtocolFee *big.Int `json:"protocol_fee"`
	CreatorFee  *big.Int `json:"creator_fee"`
	YesPrice    *big.Int `json:"yes_price"`
	NoPrice     *big.Int `json:"no_price"`
}

func (e *Engine) applyCreateMarket(c *command.CreateMarket) (any, error) {
	if e.params.Paused {
		return nil, ErrPaused
	}
	if strings.TrimSpace(c.Question) == "" {
		return nil, fmt.Errorf("%w: empty question", ErrInvalidMarket)
	}
	if !c.ExpiresAt.After(c.Timestamp) {
		return nil, fmt.Errorf("%w: expiry %s is not in the future", ErrInvalidMarket, c.ExpiresAt)
	}
	if c.NewMarketID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing market id", ErrInvalidMarket)
	}

	m := market.NewMarket(c.NewMarketID, c.Question, c.Evidence, c.Rules,
		c.Creator, c.Timestamp, c.ExpiresAt, c.Heat)
	if !e.store.Add(m) {
		return nil, fmt.Errorf("%w: %s", ErrMarketExists, c.NewMarketID)
	}
	return nil, nil
}

func (e *Engine) applyBuy(c *command.Buy) (any, error) {
	m, err := e.getMarket(c.Market)
	if err != nil {
		return nil, err
	}
	if e.params.Paused {
		return nil, ErrPaused
	}
	if phase := m.PhaseAt(c.Timestamp); phase != market.PhaseActive {
		return nil, fmt.Errorf("%w: buy in phase %s", ErrWrongPhase, phase)
	}
	if !fixed.IsPositive(c.AmountIn) {
		return nil, ErrInvalidAmount
	}

	protocolFee := fixed.Bps(c.AmountIn, e.params.TradeFeeBps)
	creatorFee := fixed.Bps(c.AmountIn, e.params.CreatorFeeBps)
	net := fixed.Sub(c.AmountIn, protocolFee)
	net.Sub(net, creatorFee)

	shares := curve.SharesOut(net, c.Side, m.YesSupply, m.NoSupply, m.VirtualLiquidity)
	if !fixed.IsPositive(shares) {
		return nil, fmt.Errorf("%w: amount too small for one share unit", ErrInvalidAmount)
	}
	if c.MinSharesOut != nil && shares.Cmp(c.MinSharesOut) < 0 {
		return nil, fmt.Errorf("%w: quoted %s shares, floor %s", ErrSlippage, shares, c.MinSharesOut)
	}

	// effects before interactions
	m.Supply(c.Side).Add(m.Supply(c.Side), shares)
	m.PoolBalance.Add(m.PoolBalance, net)
	m.PositionFor(c.Account).AddShares(c.Side, shares)

	e.ledger.CreditCreatorFee(m.Creator, creatorFee)
	e.dist.PayTreasury(protocolFee)

	return &TradeResult{
		Shares:      shares,
		ProtocolFee: protocolFee,
		CreatorFee:  creatorFee,
		YesPrice:    curve.Price(curve.SideYes, m.YesSupply, m.NoSupply, m.VirtualLiquidity),
		NoPrice:     curve.Price(curve.SideNo, m.YesSupply, m.NoSupply, m.VirtualLiquidity),
	}, nil
}

func (e *Engine) applySell(c *command.Sell) (any, error) {
	m, err := e.getMarket(c.Market)
	if err != nil {
		return nil, err
	}
	if e.params.Paused {
		return nil, ErrPaused
	}
	if phase := m.PhaseAt(c.Timestamp); phase != market.PhaseActive {
		return nil, fmt.Errorf("%w: sell in phase %s", ErrWrongPhase, phase)
	}
	if !fixed.IsPositive(c.Shares) {
		return nil, ErrInvalidAmount
	}

	pos, ok := m.LookupPosition(c.Account)
	if !ok || pos.Shares(c.Side).Cmp(c.Shares) < 0 {
		return nil, fmt.Errorf("%w: selling %s %s shares", ErrInsufficientShares, c.Shares, c.Side)
	}

	gross, err := curve.SellReturn(c.Shares, c.Side, m.YesSupply, m.NoSupply, m.VirtualLiquidity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientShares, err)
	}
	if gross.Cmp(m.PoolBalance) > 0 {
		return nil, fmt.Errorf("%w: quote %s, pool %s", ErrPoolInsolvent, gross, m.PoolBalance)
	}

	protocolFee := fixed.Bps(gross, e.params.TradeFeeBps)
	creatorFee := fixed.Bps(gross, e.params.CreatorFeeBps)
	net := fixed.Sub(gross, protocolFee)
	net.Sub(net, creatorFee)
	if c.MinAmountOut != nil && net.Cmp(c.MinAmountOut) < 0 {
		return nil, fmt.Errorf("%w: quoted %s, floor %s", ErrSlippage, net, c.MinAmountOut)
	}

	// effects before interactions
	m.Supply(c.Side).Sub(m.Supply(c.Side), c.Shares)
	pos.SubShares(c.Side, c.Shares)
	m.PoolBalance.Sub(m.PoolBalance, gross)
	e.checkMarketInvariants(m)

	if err := e.bank.Pay(c.Account, net); err != nil {
		e.ledger.Credit(c.Account, net)
	}
	e.ledger.CreditCreatorFee(m.Creator, creatorFee)
	e.dist.PayTreasury(protocolFee)

	return &TradeResult{
		AmountOut:   net,
		ProtocolFee: protocolFee,
		CreatorFee:  creatorFee,
		YesPrice:    curve.Price(curve.SideYes, m.YesSupply, m.NoSupply, m.VirtualLiquidity),
		NoPrice:     curve.Price(curve.SideNo, m.YesSupply, m.NoSupply, m.VirtualLiquidity),
	}, nil
}
