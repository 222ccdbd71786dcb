package market

import (
	"fmt"
	"math/big"

	"StreetBook/internal/fixed"
)

// HeatLevel selects the virtual liquidity preset at market creation. Hotter
// markets get deeper virtual books so early trades move the price less.
type HeatLevel int32

const (
	HeatLow HeatLevel = iota
	HeatMid
	HeatHigh
)

func (h HeatLevel) String() string {
	switch h {
	case HeatLow:
		return "low"
	case HeatMid:
		return "mid"
	case HeatHigh:
		return "high"
	default:
		return "unknown"
	}
}

// VirtualLiquidity returns the per-side virtual share depth (1e18 scale).
func (h HeatLevel) VirtualLiquidity() *big.Int {
	var units int64
	switch h {
	case HeatLow:
		units = 100
	case HeatMid:
		units = 1_000
	case HeatHigh:
		units = 10_000
	default:
		units = 1_000
	}
	return new(big.Int).Mul(big.NewInt(units), fixed.Scale)
}

// ParseHeatLevel maps a wire string to a preset.
func ParseHeatLevel(s string) (HeatLevel, error) {
	switch s {
	case "low":
		return HeatLow, nil
	case "mid", "":
		return HeatMid, nil
	case "high":
		return HeatHigh, nil
	default:
		return HeatMid, fmt.Errorf("unknown heat level %q", s)
	}
}
