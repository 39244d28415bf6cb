package trading

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"signalbot/internal/logging"
	"signalbot/internal/models"
	"signalbot/internal/store"
)

// Generator runs the configured strategy over market input and records the
// resulting signals.
type Generator struct {
	store    *store.StateStore
	clock    Clock
	strategy Strategy
	logger   zerolog.Logger
}

// NewGenerator creates a signal generator.
func NewGenerator(st *store.StateStore, clock Clock, strategy Strategy, logger zerolog.Logger) *Generator {
	return &Generator{
		store:    st,
		clock:    clock,
		strategy: strategy,
		logger:   logging.WithOperation(logger, "analyze_market"),
	}
}

// Strategy returns the strategy in use.
func (g *Generator) Strategy() Strategy {
	return g.strategy
}

// AnalyzeMarket reads the clock once, runs the strategy over raw and appends
// the produced signals. All signals of one call share a timestamp, which also
// becomes the bot's last analysis time. On strategy error nothing is recorded.
func (g *Generator) AnalyzeMarket(ctx context.Context, raw []byte) ([]models.TradeSignal, error) {
	ts := g.clock.Now()

	signals, err := g.strategy.Analyze(ctx, raw, ts)
	if err != nil {
		return nil, fmt.Errorf("%s strategy: %w", g.strategy.Name(), err)
	}

	// Stamp here as well so a strategy cannot break batch timestamps.
	for i := range signals {
		signals[i].Timestamp = ts
	}

	g.store.RecordAnalysis(ts, signals)

	for _, s := range signals {
		logging.LogSignal(g.logger, s.Pair, string(s.Action), s.Confidence, s.Price)
	}
	g.logger.Info().
		Str("strategy", g.strategy.Name()).
		Int("signals", len(signals)).
		Uint64("timestamp", ts).
		Msg("Market analyzed")

	out := make([]models.TradeSignal, len(signals))
	copy(out, signals)
	return out, nil
}
