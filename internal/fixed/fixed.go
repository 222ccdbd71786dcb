package fixed

import "math/big"

// Share quantities use an 18-decimal fractional scale; currency amounts are
// expressed in the smallest native unit. Both routinely exceed int64 range,
// so all quantities are *big.Int and intermediate products are computed at
// full precision.
var (
	// Scale is the share quantity scale (18 decimals).
	Scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	// UnitPrice is the currency cost of one full YES+NO share pair. The
	// constant-sum curve guarantees price(YES) + price(NO) == UnitPrice.
	UnitPrice = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	// BpsDenominator is the basis-point divisor for fee and share rates.
	BpsDenominator = big.NewInt(10_000)

	Zero = big.NewInt(0)
)

// MulDiv computes a * b / den with full-precision intermediates and
// truncation toward zero. Truncation on payout paths always favors the pool.
func MulDiv(a, b, den *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, den)
}

// Bps returns x * bps / 10_000, truncated.
func Bps(x *big.Int, bps int64) *big.Int {
	return MulDiv(x, big.NewInt(bps), BpsDenominator)
}

// Add returns a + b in a fresh value.
func Add(a, b *big.Int) *big.Int {
	return new(big.Int).Add(a, b)
}

// Sub returns a - b in a fresh value.
func Sub(a, b *big.Int) *big.Int {
	return new(big.Int).Sub(a, b)
}

// Max returns the larger of a and b (fresh value).
func Max(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// Clone returns a defensive copy. A nil input clones to zero.
func Clone(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(x)
}

// IsZero reports whether x is nil or exactly zero.
func IsZero(x *big.Int) bool {
	return x == nil || x.Sign() == 0
}

// IsPositive reports whether x is strictly greater than zero.
func IsPositive(x *big.Int) bool {
	return x != nil && x.Sign() > 0
}

// FromString parses a decimal string into a big.Int. Returns ok=false for
// malformed input or negative values (all wire amounts are non-negative).
func FromString(s string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

// String formats x as a decimal string; nil formats as "0".
func String(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return x.String()
}
