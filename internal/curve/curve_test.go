package curve_test

import (
	"math/big"
	"testing"

	"StreetBook/internal/curve"
	"StreetBook/internal/fixed"
)

func bi(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad literal: " + s)
	}
	return v
}

// shares expressed at 1e18 scale
func shares(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), fixed.Scale)
}

// =============================================================================
// Price conservation
// =============================================================================

func TestPriceSidesSumToUnitPrice(t *testing.T) {
	tests := []struct {
		name string
		yes  *big.Int
		no   *big.Int
		vl   *big.Int
	}{
		{"fresh market", shares(0), shares(0), shares(1000)},
		{"balanced", shares(500), shares(500), shares(1000)},
		{"yes heavy", shares(9000), shares(10), shares(100)},
		{"no heavy", shares(3), shares(70000), shares(5000)},
		{"odd amounts", bi("123456789012345678901"), bi("98765432109876543"), shares(250)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yes := curve.Price(curve.SideYes, tt.yes, tt.no, tt.vl)
			no := curve.Price(curve.SideNo, tt.yes, tt.no, tt.vl)

			sum := new(big.Int).Add(yes, no)
			diff := new(big.Int).Sub(fixed.UnitPrice, sum)
			if diff.Sign() < 0 || diff.Cmp(big.NewInt(2)) > 0 {
				t.Fatalf("price(yes)+price(no) = %s, want within truncation of %s",
					sum, fixed.UnitPrice)
			}
		})
	}
}

func TestFreshMarketPricesEqual(t *testing.T) {
	vl := shares(1000)
	yes := curve.Price(curve.SideYes, fixed.Zero, fixed.Zero, vl)
	no := curve.Price(curve.SideNo, fixed.Zero, fixed.Zero, vl)
	if yes.Cmp(no) != 0 {
		t.Fatalf("fresh market prices differ: yes=%s no=%s", yes, no)
	}
	half := new(big.Int).Quo(fixed.UnitPrice, big.NewInt(2))
	if yes.Cmp(half) != 0 {
		t.Fatalf("fresh market price = %s, want %s", yes, half)
	}
}

func TestBuyingRaisesOwnPrice(t *testing.T) {
	vl := shares(1000)
	before := curve.Price(curve.SideYes, shares(100), shares(100), vl)
	after := curve.Price(curve.SideYes, shares(600), shares(100), vl)
	if after.Cmp(before) <= 0 {
		t.Fatalf("price did not rise after supply grew: before=%s after=%s", before, after)
	}
	otherAfter := curve.Price(curve.SideNo, shares(600), shares(100), vl)
	if otherAfter.Cmp(curve.Price(curve.SideNo, shares(100), shares(100), vl)) >= 0 {
		t.Fatalf("opposite price did not fall")
	}
}

// =============================================================================
// Round trip: buy then sell must never profit
// =============================================================================

func TestBuyThenSellNeverProfits(t *testing.T) {
	tests := []struct {
		name     string
		yes      *big.Int
		no       *big.Int
		vl       *big.Int
		amountIn *big.Int
		side     curve.Side
	}{
		{"fresh small", shares(0), shares(0), shares(100), bi("1000000"), curve.SideYes},
		{"fresh large", shares(0), shares(0), shares(100), shares(40), curve.SideYes},
		{"skewed yes buy", shares(5000), shares(20), shares(1000), shares(7), curve.SideYes},
		{"skewed no buy", shares(5000), shares(20), shares(1000), shares(7), curve.SideNo},
		{"dust amount", shares(123), shares(456), shares(1000), big.NewInt(7), curve.SideNo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := curve.SharesOut(tt.amountIn, tt.side, tt.yes, tt.no, tt.vl)

			yesAfter, noAfter := fixed.Clone(tt.yes), fixed.Clone(tt.no)
			if tt.side == curve.SideYes {
				yesAfter.Add(yesAfter, out)
			} else {
				noAfter.Add(noAfter, out)
			}

			back, err := curve.SellReturn(out, tt.side, yesAfter, noAfter, tt.vl)
			if err != nil {
				t.Fatalf("SellReturn: %v", err)
			}
			if back.Cmp(tt.amountIn) > 0 {
				t.Fatalf("round trip profits: in=%s out=%s", tt.amountIn, back)
			}
			// truncation loss stays tiny
			loss := new(big.Int).Sub(tt.amountIn, back)
			if loss.Cmp(big.NewInt(1_000_000)) > 0 && loss.Cmp(new(big.Int).Quo(tt.amountIn, big.NewInt(1000))) > 0 {
				t.Fatalf("round trip loss too large: in=%s back=%s", tt.amountIn, back)
			}
		})
	}
}

func TestSellReturnUsesPostTradeState(t *testing.T) {
	// Against pre-trade quantities the quote would be strictly larger,
	// which is exactly the arbitrage the post-trade form prevents.
	yes, no, vl := shares(100), shares(100), shares(1000)
	amountIn := shares(10)
	out := curve.SharesOut(amountIn, curve.SideYes, yes, no, vl)

	yesAfter := fixed.Add(yes, out)
	post, err := curve.SellReturn(out, curve.SideYes, yesAfter, no, vl)
	if err != nil {
		t.Fatalf("SellReturn: %v", err)
	}

	// pre-trade evaluation: price * shares
	pre := fixed.MulDiv(curve.Price(curve.SideYes, yesAfter, no, vl), out, fixed.Scale)
	if post.Cmp(pre) >= 0 {
		t.Fatalf("post-trade quote %s not below pre-trade value %s", post, pre)
	}
}

func TestSellReturnRejectsExcessiveShares(t *testing.T) {
	vl := shares(10)
	_, err := curve.SellReturn(shares(15), curve.SideYes, shares(5), shares(5), vl)
	if err == nil {
		t.Fatal("expected depth error for oversized sell")
	}
}

func TestSharesOutZeroAmount(t *testing.T) {
	out := curve.SharesOut(fixed.Zero, curve.SideYes, shares(10), shares(10), shares(100))
	if out.Sign() != 0 {
		t.Fatalf("zero in should quote zero shares, got %s", out)
	}
}
