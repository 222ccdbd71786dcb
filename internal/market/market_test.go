package market_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"

	"StreetBook/internal/fixed"
	"StreetBook/internal/market"
)

func newTestMarket(t *testing.T, expiresAt time.Time) *market.Market {
	t.Helper()
	return market.NewMarket(uuid.New(), "will it rain tomorrow", "weather report", "resolves YES on any measurable rain",
		uuid.New(), expiresAt.Add(-24*time.Hour), expiresAt, market.HeatMid)
}

// =============================================================================
// Phase derivation
// =============================================================================

func TestPhaseDerivation(t *testing.T) {
	expiry := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := newTestMarket(t, expiry)

	if got := m.PhaseAt(expiry.Add(-time.Hour)); got != market.PhaseActive {
		t.Fatalf("before expiry: phase = %s, want active", got)
	}
	if got := m.PhaseAt(expiry); got != market.PhaseExpired {
		t.Fatalf("at expiry instant: phase = %s, want expired", got)
	}
	if got := m.PhaseAt(expiry.Add(time.Hour)); got != market.PhaseExpired {
		t.Fatalf("after expiry: phase = %s, want expired", got)
	}

	m.Proposer = uuid.New()
	m.ProposedAt = expiry.Add(time.Hour)
	if got := m.PhaseAt(expiry.Add(2 * time.Hour)); got != market.PhaseProposed {
		t.Fatalf("with open proposal: phase = %s, want proposed", got)
	}

	m.Disputer = uuid.New()
	if got := m.PhaseAt(expiry.Add(3 * time.Hour)); got != market.PhaseDisputed {
		t.Fatalf("with open dispute: phase = %s, want disputed", got)
	}

	m.Resolved = true
	if got := m.PhaseAt(expiry.Add(4 * time.Hour)); got != market.PhaseResolved {
		t.Fatalf("resolved: phase = %s, want resolved", got)
	}
}

func TestClearedProposerReopensExpiredPhase(t *testing.T) {
	expiry := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := newTestMarket(t, expiry)
	m.Proposer = uuid.New()
	m.Proposer = uuid.Nil

	if got := m.PhaseAt(expiry.Add(time.Hour)); got != market.PhaseExpired {
		t.Fatalf("after proposer cleared: phase = %s, want expired", got)
	}
}

// =============================================================================
// Bond sizing
// =============================================================================

func TestRequiredBondFloorDominatesSmallPool(t *testing.T) {
	p := market.DefaultParams()
	m := newTestMarket(t, time.Now().Add(time.Hour))
	m.PoolBalance = big.NewInt(1) // dynamic component truncates to zero

	if got := m.RequiredBond(p); got.Cmp(p.BondFloor) != 0 {
		t.Fatalf("bond = %s, want floor %s", got, p.BondFloor)
	}
}

func TestRequiredBondScalesWithPool(t *testing.T) {
	p := market.DefaultParams()
	m := newTestMarket(t, time.Now().Add(time.Hour))
	// pool large enough that dynamicBondBps of it exceeds the floor
	m.PoolBalance = new(big.Int).Mul(big.NewInt(100_000), fixed.UnitPrice)

	want := fixed.Bps(m.PoolBalance, p.DynamicBondBps)
	if want.Cmp(p.BondFloor) <= 0 {
		t.Fatal("test setup: dynamic component must exceed floor")
	}
	if got := m.RequiredBond(p); got.Cmp(want) != 0 {
		t.Fatalf("bond = %s, want %s", got, want)
	}
}

// =============================================================================
// Parameter validation
// =============================================================================

func TestDefaultParamsValid(t *testing.T) {
	if err := market.DefaultParams().Validate(); err != nil {
		t.Fatalf("default params invalid: %v", err)
	}
}

func TestParamsValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*market.ProtocolParams)
	}{
		{"majority share below band", func(p *market.ProtocolParams) { p.MajorityShareBps = 1999 }},
		{"majority share above band", func(p *market.ProtocolParams) { p.MajorityShareBps = 8001 }},
		{"proposer reward over max", func(p *market.ProtocolParams) { p.ProposerRewardBps = p.MaxProposerRewardBps + 1 }},
		{"negative fee", func(p *market.ProtocolParams) { p.TradeFeeBps = -1 }},
		{"zero bond floor", func(p *market.ProtocolParams) { p.BondFloor = new(big.Int) }},
		{"buffer too short", func(p *market.ProtocolParams) { p.ResolutionBuffer = p.DisputeWindow }},
		{"zero vote window", func(p *market.ProtocolParams) { p.VoteWindow = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := market.DefaultParams()
			tt.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

// =============================================================================
// Store ordering
// =============================================================================

func TestStoreAllIsDeterministic(t *testing.T) {
	s := market.NewStore()
	for i := 0; i < 8; i++ {
		s.Add(newTestMarket(t, time.Now().Add(time.Hour)))
	}
	first := s.All()
	second := s.All()
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatal("All() ordering not stable")
		}
	}
	for i := 1; i < len(first); i++ {
		prev, cur := first[i-1].ID, first[i].ID
		for k := 0; k < len(prev); k++ {
			if prev[k] != cur[k] {
				if prev[k] > cur[k] {
					t.Fatal("All() not sorted by ID bytes")
				}
				break
			}
		}
	}
}

func TestStoreRejectsDuplicateID(t *testing.T) {
	s := market.NewStore()
	m := newTestMarket(t, time.Now().Add(time.Hour))
	if !s.Add(m) {
		t.Fatal("first add failed")
	}
	if s.Add(m) {
		t.Fatal("duplicate add succeeded")
	}
}
