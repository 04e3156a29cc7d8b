package market

import (
	"math"
	"testing"
)

var allUnits = []Unit{Coin, Gem, Token, Stock}

func TestConvertRoundTrip(t *testing.T) {
	amounts := []float64{1, 42, 99.5, 600000, 0.001}
	for _, a := range amounts {
		for _, from := range allUnits {
			for _, to := range allUnits {
				out, err := Convert(a, from, to)
				if err != nil {
					t.Fatalf("Convert(%v, %s, %s): %v", a, from, to, err)
				}
				back, err := Convert(out, to, from)
				if err != nil {
					t.Fatalf("Convert(%v, %s, %s): %v", out, to, from, err)
				}
				if math.Abs(back-a) > 1e-9*math.Max(1, a) {
					t.Errorf("round trip %s-%s of %v: got %v", from, to, a, back)
				}
			}
		}
	}
}

func TestConvertFixedRates(t *testing.T) {
	cases := []struct {
		amount   float64
		from, to Unit
		want     float64
	}{
		{1, Gem, Coin, 2000},
		{1, Token, Gem, 20},
		{1, Stock, Token, 15},
		{1, Stock, Gem, 300},
		{1, Stock, Coin, 600000},
		{4000, Coin, Gem, 2},
		{300, Gem, Stock, 1},
		{30, Token, Stock, 2},
	}
	for _, tc := range cases {
		got, err := Convert(tc.amount, tc.from, tc.to)
		if err != nil {
			t.Fatalf("Convert(%v, %s, %s): %v", tc.amount, tc.from, tc.to, err)
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Convert(%v, %s, %s) = %v, want %v", tc.amount, tc.from, tc.to, got, tc.want)
		}
	}
}

// The direct Coin-Stock rate must agree with the Coin-Gem-Token-Stock path;
// both appear at different call sites.
func TestCoinStockPathsAgree(t *testing.T) {
	direct, _ := Convert(600000, Coin, Stock)
	gems, _ := Convert(600000, Coin, Gem)
	tokens, _ := Convert(gems, Gem, Token)
	chained, _ := Convert(tokens, Token, Stock)
	if math.Abs(direct-chained) > 1e-9 {
		t.Errorf("direct %v != chained %v", direct, chained)
	}
	if math.Abs(direct-1) > 1e-9 {
		t.Errorf("600000 coins should be exactly 1 stock, got %v", direct)
	}
}

func TestParseUnit(t *testing.T) {
	if _, err := ParseUnit("bitcoin"); err == nil {
		t.Error("expected error for unknown unit")
	}
	for in, want := range map[string]Unit{"coin": Coin, "gems": Gem, "token": Token, "stocks": Stock} {
		got, err := ParseUnit(in)
		if err != nil || got != want {
			t.Errorf("ParseUnit(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}
