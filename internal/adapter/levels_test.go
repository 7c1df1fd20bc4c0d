package adapter

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseScalar(t *testing.T) {
	cases := []struct {
		raw    string
		format NumberFormat
		want   string
		ok     bool
	}{
		{`"100.5"`, StringOrNumber, "100.5", true},
		{`100.5`, StringOrNumber, "100.5", true},
		{`1e2`, StringOrNumber, "100", true},
		{`-3`, StringOrNumber, "-3", true},
		{`"100.5"`, NumberOnly, "", false},
		{`100.5`, NumberOnly, "100.5", true},
		{`"abc"`, StringOrNumber, "", false},
		{`""`, StringOrNumber, "", false},
		{`null`, StringOrNumber, "", false},
		{`true`, StringOrNumber, "", false},
		{`[1]`, StringOrNumber, "", false},
		{``, StringOrNumber, "", false},
	}
	for _, tc := range cases {
		got, ok := ParseScalar(json.RawMessage(tc.raw), tc.format)
		if ok != tc.ok {
			t.Errorf("ParseScalar(%s, %d) ok=%v, want %v", tc.raw, tc.format, ok, tc.ok)
			continue
		}
		if ok && !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("ParseScalar(%s) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestNewLevel(t *testing.T) {
	one := decimal.NewFromInt(1)
	if _, ok := NewLevel(decimal.Zero, one); ok {
		t.Error("zero price must be rejected")
	}
	if _, ok := NewLevel(one.Neg(), one); ok {
		t.Error("negative price must be rejected")
	}
	if _, ok := NewLevel(one, one.Neg()); ok {
		t.Error("negative quantity must be rejected")
	}
	if _, ok := NewLevel(one, decimal.Zero); !ok {
		t.Error("zero quantity is a valid removal")
	}
}

func TestDecodeLevels(t *testing.T) {
	raw := json.RawMessage(`[["100","1","0","4"], [101, 2], ["x","1"], ["102"], 7, ["103","-1"]]`)

	levels := DecodeLevels(raw, StringOrNumber)
	if len(levels) != 2 {
		t.Fatalf("expected 2 valid levels, got %+v", levels)
	}
	if !levels[0].Price.Equal(decimal.NewFromInt(100)) || !levels[1].Quantity.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("wrong levels: %+v", levels)
	}

	if got := DecodeLevels(json.RawMessage(`{"not":"an array"}`), StringOrNumber); len(got) != 0 {
		t.Fatalf("expected no levels from an object, got %+v", got)
	}
	if got := DecodeLevels(nil, StringOrNumber); len(got) != 0 {
		t.Fatalf("expected no levels from nil, got %+v", got)
	}
}
