// Package curve implements the constant-sum bonding curve used to price
// two-sided outcome shares. All functions are pure: they read supplies and
// return quantities without touching market state.
package curve

import (
	"errors"
	"math/big"

	"StreetBook/internal/fixed"
)

// Side selects one of the two outcome legs of a market.
type Side int32

const (
	SideYes Side = iota
	SideNo
)

func (s Side) String() string {
	if s == SideYes {
		return "yes"
	}
	return "no"
}

// Opposite returns the other leg.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// ErrInsufficientDepth is returned when a sell quote is requested for more
// shares than the curve can absorb on that side.
var ErrInsufficientDepth = errors.New("curve: sell exceeds available depth")

// virtuals computes the virtual supplies vYes, vNo and their sum. The
// virtual liquidity constant keeps pricing well-defined near zero volume.
func virtuals(yesSupply, noSupply, virtualLiquidity *big.Int) (vYes, vNo, total *big.Int) {
	vYes = fixed.Add(yesSupply, virtualLiquidity)
	vNo = fixed.Add(noSupply, virtualLiquidity)
	total = fixed.Add(vYes, vNo)
	return vYes, vNo, total
}

func sideSupply(side Side, vYes, vNo *big.Int) *big.Int {
	if side == SideYes {
		return vYes
	}
	return vNo
}

// Price returns the instantaneous price of one full share on the given side,
// in smallest currency units: UNIT_PRICE * vSide / total. The two sides
// always sum to UNIT_PRICE (up to integer truncation).
func Price(side Side, yesSupply, noSupply, virtualLiquidity *big.Int) *big.Int {
	vYes, vNo, total := virtuals(yesSupply, noSupply, virtualLiquidity)
	return fixed.MulDiv(fixed.UnitPrice, sideSupply(side, vYes, vNo), total)
}

// SharesOut quotes the shares received for a net (post-fee) currency amount,
// evaluated against the pre-trade state:
//
//	shares = amountIn * total * SCALE / (UNIT_PRICE * vSide)
func SharesOut(amountIn *big.Int, side Side, yesSupply, noSupply, virtualLiquidity *big.Int) *big.Int {
	vYes, vNo, total := virtuals(yesSupply, noSupply, virtualLiquidity)
	num := new(big.Int).Mul(amountIn, total)
	num.Mul(num, fixed.Scale)
	den := new(big.Int).Mul(fixed.UnitPrice, sideSupply(side, vYes, vNo))
	return num.Quo(num, den)
}

// SellReturn quotes the currency returned for selling shares. It MUST be
// evaluated against the post-trade virtual quantities:
//
//	vSideAfter = vSide - shares
//	totalAfter = total - shares
//	return     = shares * UNIT_PRICE * vSideAfter / (totalAfter * SCALE)
//
// Quoting against the pre-trade state instead would let a buy followed by an
// immediate sell of the same shares withdraw more than was paid in.
func SellReturn(shares *big.Int, side Side, yesSupply, noSupply, virtualLiquidity *big.Int) (*big.Int, error) {
	vYes, vNo, total := virtuals(yesSupply, noSupply, virtualLiquidity)
	vSide := sideSupply(side, vYes, vNo)

	if shares.Cmp(vSide) >= 0 {
		return nil, ErrInsufficientDepth
	}

	vSideAfter := fixed.Sub(vSide, shares)
	totalAfter := fixed.Sub(total, shares)

	num := new(big.Int).Mul(shares, fixed.UnitPrice)
	num.Mul(num, vSideAfter)
	den := new(big.Int).Mul(totalAfter, fixed.Scale)
	return num.Quo(num, den), nil
}
