package command_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"

	"StreetBook/internal/command"
	"StreetBook/internal/curve"
)

func TestDecodeRestoresBuy(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	orig := &command.Buy{
		Base:         command.NewBase(now),
		Market:       uuid.New(),
		Account:      uuid.New(),
		Side:         curve.SideNo,
		AmountIn:     big.NewInt(1_000_000),
		MinSharesOut: big.NewInt(42),
	}

	payload, err := command.Encode(orig)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := command.Decode(command.TypeBuy, payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	buy, ok := decoded.(*command.Buy)
	if !ok {
		t.Fatalf("decoded type %T, want *command.Buy", decoded)
	}
	if buy.CommandID() != orig.CommandID() || buy.Market != orig.Market ||
		buy.Side != curve.SideNo || buy.AmountIn.Cmp(orig.AmountIn) != 0 {
		t.Fatalf("round trip mismatch: %+v", buy)
	}
	if !buy.OccurredAt().Equal(now) {
		t.Fatalf("timestamp drifted: %s", buy.OccurredAt())
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	if _, err := command.Decode(command.Type("liquidate"), []byte(`{}`)); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	if _, err := command.Decode(command.TypeVote, []byte(`{"market":`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
