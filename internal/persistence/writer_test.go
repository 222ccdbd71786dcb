package persistence

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"StreetBook/internal/engine"
)

func TestRowFromRecord(t *testing.T) {
	marketID := uuid.New()
	commandID := uuid.New()
	ts := time.Now().UTC()

	rec := engine.Record{
		Sequence:  42,
		CommandID: commandID,
		Kind:      "buy",
		Market:    marketID,
		Payload:   []byte(`{"amount_in":"100"}`),
		Result:    []byte(`{"shares_out":"99"}`),
		Timestamp: ts,
	}

	row := RowFromRecord(rec)
	if row.Sequence != 42 {
		t.Errorf("sequence = %d, want 42", row.Sequence)
	}
	if row.CommandID != commandID {
		t.Errorf("command id = %s, want %s", row.CommandID, commandID)
	}
	if row.MarketID == nil || *row.MarketID != marketID {
		t.Errorf("market id = %v, want %s", row.MarketID, marketID)
	}
	if !row.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", row.Timestamp, ts)
	}
}

func TestRowFromRecordNilMarket(t *testing.T) {
	rec := engine.Record{
		Sequence:  1,
		CommandID: uuid.New(),
		Kind:      "withdraw",
	}

	row := RowFromRecord(rec)
	if row.MarketID != nil {
		t.Errorf("market id = %v, want nil for account-level operation", row.MarketID)
	}
}

func TestExtractVersion(t *testing.T) {
	cases := map[string]string{
		"000001_operations.up.sql": "000001",
		"000002_payouts.down.sql":  "000002",
		"nounderscores.up.sql":     "nounderscores.up.sql",
	}
	for in, want := range cases {
		if got := extractVersion(in); got != want {
			t.Errorf("extractVersion(%q) = %q, want %q", in, got, want)
		}
	}
}
