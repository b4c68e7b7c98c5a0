package ethereum

import (
	"encoding/json"
	"testing"
)

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"0", 0},
		{"1000000000000000000", 1},
		{"2500000000000000000", 2.5},
	}
	for _, tt := range tests {
		got, err := formatUnits(json.RawMessage(tt.raw), 18)
		if err != nil {
			t.Fatalf("%s: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Errorf("formatUnits(%s) = %v, want %v", tt.raw, got, tt.want)
		}
	}
	if _, err := formatUnits(json.RawMessage(`"abc"`), 18); err == nil {
		t.Error("expected error for non-numeric amount")
	}
}

func TestDecodeIncentive_List(t *testing.T) {
	got, err := decodeIncentive(json.RawMessage(`[1000000000000000000, 500000000000000000]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 0.5 {
		t.Errorf("got %v", got)
	}
}

func TestDecodeDate(t *testing.T) {
	f := map[string]json.RawMessage{"dateOfCreation": json.RawMessage(`"2024-05-01"`)}
	if got, _ := decodeDate(f, "dateOfCreation", "creationDate"); got != "2024-05-01" {
		t.Errorf("string date = %q", got)
	}

	f = map[string]json.RawMessage{"creationDate": json.RawMessage(`0`)}
	if got, _ := decodeDate(f, "dateOfCreation", "creationDate"); got != "" {
		t.Errorf("zero timestamp = %q, want empty", got)
	}

	if got, _ := decodeDate(map[string]json.RawMessage{}, "dateOfCreation"); got != "" {
		t.Errorf("missing date = %q", got)
	}
}

func TestDecodeRecord_OwnerAddressAlias(t *testing.T) {
	f := map[string]json.RawMessage{
		"id":          json.RawMessage(`7`),
		"description": json.RawMessage(`"d"`),
		"owner":       json.RawMessage(`"0xabc"`),
	}
	rec, err := decodeRecord(3, f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Index() != 7 || rec.OwnerAddress() != "0xabc" {
		t.Errorf("unexpected record: index=%d owner=%q", rec.Index(), rec.OwnerAddress())
	}
}

func TestDecodeRecord_RequiresDescription(t *testing.T) {
	if _, err := decodeRecord(0, map[string]json.RawMessage{"name": json.RawMessage(`"n"`)}); err == nil {
		t.Fatal("expected error")
	}
}
