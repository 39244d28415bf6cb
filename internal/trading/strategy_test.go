package trading

import (
	"context"
	"math"
	"testing"

	"signalbot/internal/errors"
	"signalbot/internal/models"
)

func TestNewStrategy(t *testing.T) {
	for _, name := range StrategyNames() {
		s, err := NewStrategy(name)
		if err != nil {
			t.Fatalf("NewStrategy(%q): %v", name, err)
		}
		if s.Name() != name {
			t.Errorf("Name() = %q, want %q", s.Name(), name)
		}
	}

	if _, err := NewStrategy("meanrev"); !errors.Is(err, errors.ErrUnknownStrategy) {
		t.Errorf("expected ErrUnknownStrategy, got %v", err)
	}
}

func TestFixedStrategyIgnoresInput(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte("garbage"), []byte(`[{"pair":"X"}]`)} {
		signals, err := FixedStrategy{}.Analyze(context.Background(), raw, 99)
		if err != nil {
			t.Fatalf("Analyze: %v", err)
		}
		want := []models.TradeSignal{
			{Timestamp: 99, Pair: "ICP/USD", Action: models.ActionBuy, Confidence: 0.75, Price: 12.34},
			{Timestamp: 99, Pair: "BTC/USD", Action: models.ActionSell, Confidence: 0.62, Price: 42356.78},
		}
		if len(signals) != len(want) {
			t.Fatalf("got %d signals, want %d", len(signals), len(want))
		}
		for i := range want {
			if signals[i] != want[i] {
				t.Errorf("signal %d = %+v, want %+v", i, signals[i], want[i])
			}
		}
	}
}

func TestMomentumStrategy(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []models.TradeSignal
		wantErr  error
	}{
		{
			name:     "empty input",
			input:    "   ",
			expected: nil,
		},
		{
			name:  "rise and fall",
			input: `[{"pair":"ICP/USD","price":10.2,"prev_price":10},{"pair":"BTC/USD","price":95,"prev_price":100}]`,
			expected: []models.TradeSignal{
				{Timestamp: 7, Pair: "ICP/USD", Action: models.ActionBuy, Confidence: 0.7, Price: 10.2},
				{Timestamp: 7, Pair: "BTC/USD", Action: models.ActionSell, Confidence: 1, Price: 95},
			},
		},
		{
			name:     "unchanged is skipped",
			input:    `[{"pair":"ETH/USD","price":3000,"prev_price":3000}]`,
			expected: []models.TradeSignal{},
		},
		{
			name:    "not json",
			input:   "ICP up",
			wantErr: errors.ErrInputValidation,
		},
		{
			name:    "missing pair",
			input:   `[{"price":1,"prev_price":2}]`,
			wantErr: errors.ErrInputValidation,
		},
		{
			name:    "zero previous price",
			input:   `[{"pair":"X","price":1,"prev_price":0}]`,
			wantErr: errors.ErrInputValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MomentumStrategy{}.Analyze(context.Background(), []byte(tt.input), 7)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("got %d signals, want %d", len(got), len(tt.expected))
			}
			for i, want := range tt.expected {
				g := got[i]
				if g.Timestamp != want.Timestamp || g.Pair != want.Pair || g.Action != want.Action || g.Price != want.Price {
					t.Errorf("signal %d = %+v, want %+v", i, g, want)
				}
				if math.Abs(g.Confidence-want.Confidence) > 1e-9 {
					t.Errorf("signal %d confidence = %v, want %v", i, g.Confidence, want.Confidence)
				}
			}
		})
	}
}

func TestMomentumConfidenceIsCapped(t *testing.T) {
	if c := momentumConfidence(0.5); c != 1 {
		t.Errorf("confidence = %v, want 1", c)
	}
	if c := momentumConfidence(-0.01); math.Abs(c-0.6) > 1e-9 {
		t.Errorf("confidence = %v, want 0.6", c)
	}
}
