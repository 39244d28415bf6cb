package trading

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"signalbot/internal/errors"
	"signalbot/internal/models"
)

// Strategy names known to NewStrategy.
const (
	StrategyFixed    = "fixed"
	StrategyMomentum = "momentum"
)

// Strategy turns raw market input into trade signals. Every signal it
// returns must carry ts as its timestamp.
type Strategy interface {
	Name() string
	Analyze(ctx context.Context, raw []byte, ts uint64) ([]models.TradeSignal, error)
}

// NewStrategy returns the strategy registered under name.
func NewStrategy(name string) (Strategy, error) {
	switch name {
	case StrategyFixed:
		return FixedStrategy{}, nil
	case StrategyMomentum:
		return MomentumStrategy{}, nil
	default:
		return nil, errors.Wrapf(errors.ErrUnknownStrategy, "%q (available: %v)", name, StrategyNames())
	}
}

// StrategyNames lists the registered strategy names in sorted order.
func StrategyNames() []string {
	names := []string{StrategyFixed, StrategyMomentum}
	sort.Strings(names)
	return names
}

// FixedStrategy ignores its input and emits the illustrative pair of
// signals: an ICP/USD buy and a BTC/USD sell.
type FixedStrategy struct{}

// Name returns the registry name.
func (FixedStrategy) Name() string { return StrategyFixed }

// Analyze returns the two fixed signals stamped with ts.
func (FixedStrategy) Analyze(_ context.Context, _ []byte, ts uint64) ([]models.TradeSignal, error) {
	return []models.TradeSignal{
		{
			Timestamp:  ts,
			Pair:       "ICP/USD",
			Action:     models.ActionBuy,
			Confidence: 0.75,
			Price:      12.34,
		},
		{
			Timestamp:  ts,
			Pair:       "BTC/USD",
			Action:     models.ActionSell,
			Confidence: 0.62,
			Price:      42356.78,
		},
	}, nil
}

// Quote is one entry of momentum strategy input.
type Quote struct {
	Pair      string  `json:"pair"`
	Price     float64 `json:"price"`
	PrevPrice float64 `json:"prev_price"`
}

// MomentumStrategy emits a BUY for every quote whose price rose and a SELL
// for every quote whose price fell. Unchanged quotes are skipped.
//
// Confidence grows with the size of the move: 0.5 plus ten times the
// fractional change, capped at 1.
type MomentumStrategy struct{}

// Name returns the registry name.
func (MomentumStrategy) Name() string { return StrategyMomentum }

// Analyze parses raw as a JSON array of quotes.
func (MomentumStrategy) Analyze(_ context.Context, raw []byte, ts uint64) ([]models.TradeSignal, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	var quotes []Quote
	if err := json.Unmarshal(raw, &quotes); err != nil {
		return nil, errors.NewValidationError("input", truncate(string(raw), 64), fmt.Sprintf("expected a JSON array of quotes: %v", err))
	}

	signals := make([]models.TradeSignal, 0, len(quotes))
	for i, q := range quotes {
		if err := q.validate(); err != nil {
			return nil, fmt.Errorf("quote %d: %w", i, err)
		}

		change := (q.Price - q.PrevPrice) / q.PrevPrice
		if change == 0 {
			continue
		}

		action := models.ActionBuy
		if change < 0 {
			action = models.ActionSell
		}

		signals = append(signals, models.TradeSignal{
			Timestamp:  ts,
			Pair:       q.Pair,
			Action:     action,
			Confidence: momentumConfidence(change),
			Price:      q.Price,
		})
	}
	return signals, nil
}

func (q Quote) validate() error {
	if q.Pair == "" {
		return errors.NewValidationError("pair", q.Pair, "must not be empty")
	}
	if q.Price <= 0 || math.IsNaN(q.Price) || math.IsInf(q.Price, 0) {
		return errors.NewValidationError("price", q.Price, "must be a positive number")
	}
	if q.PrevPrice <= 0 || math.IsNaN(q.PrevPrice) || math.IsInf(q.PrevPrice, 0) {
		return errors.NewValidationError("prev_price", q.PrevPrice, "must be a positive number")
	}
	return nil
}

func momentumConfidence(change float64) float64 {
	return math.Min(1, 0.5+math.Abs(change)*10)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
