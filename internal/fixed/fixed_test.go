package fixed_test

import (
	"math/big"
	"testing"

	"StreetBook/internal/fixed"
)

func TestMulDivTruncates(t *testing.T) {
	// 7 * 3 / 2 = 10.5, truncated to 10
	got := fixed.MulDiv(big.NewInt(7), big.NewInt(3), big.NewInt(2))
	if got.Int64() != 10 {
		t.Errorf("MulDiv(7,3,2) = %d, want 10", got.Int64())
	}
}

func TestMulDivLeavesInputs(t *testing.T) {
	a := big.NewInt(100)
	b := big.NewInt(200)
	fixed.MulDiv(a, b, big.NewInt(3))
	if a.Int64() != 100 || b.Int64() != 200 {
		t.Errorf("inputs mutated: a=%d b=%d", a.Int64(), b.Int64())
	}
}

func TestBps(t *testing.T) {
	// 250 bps of 10000 = 250
	got := fixed.Bps(big.NewInt(10_000), 250)
	if got.Int64() != 250 {
		t.Errorf("Bps(10000, 250) = %d, want 250", got.Int64())
	}
	// truncation: 1 bps of 9999 = 0.9999 -> 0
	got = fixed.Bps(big.NewInt(9_999), 1)
	if got.Int64() != 0 {
		t.Errorf("Bps(9999, 1) = %d, want 0", got.Int64())
	}
}

func TestMax(t *testing.T) {
	a, b := big.NewInt(5), big.NewInt(9)
	if fixed.Max(a, b).Int64() != 9 {
		t.Error("Max(5,9) != 9")
	}
	if fixed.Max(b, a).Int64() != 9 {
		t.Error("Max(9,5) != 9")
	}
}

func TestFromString(t *testing.T) {
	v, ok := fixed.FromString("123456789012345678901234567890")
	if !ok {
		t.Fatal("valid decimal rejected")
	}
	if v.String() != "123456789012345678901234567890" {
		t.Errorf("roundtrip = %s", v)
	}

	for _, bad := range []string{"", "abc", "1.5", "0x10", "-"} {
		if _, ok := fixed.FromString(bad); ok {
			t.Errorf("FromString(%q) accepted", bad)
		}
	}
}

func TestStringNil(t *testing.T) {
	if fixed.String(nil) != "0" {
		t.Errorf("String(nil) = %q, want 0", fixed.String(nil))
	}
}
