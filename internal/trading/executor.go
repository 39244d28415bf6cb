package trading

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"signalbot/internal/errors"
	"signalbot/internal/logging"
	"signalbot/internal/models"
	"signalbot/internal/store"
)

// ExecutionThreshold is the confidence a signal must strictly exceed to be
// executed.
const ExecutionThreshold = 0.6

// Qualifies reports whether a signal passes the execution threshold.
func Qualifies(s models.TradeSignal) bool {
	return s.Confidence > ExecutionThreshold
}

// Executor converts qualifying signals into trades while the bot is active.
type Executor struct {
	store  *store.StateStore
	clock  Clock
	logger zerolog.Logger

	mu     sync.Mutex
	lastID uint64
	issued bool // lastID is meaningful; a clock can legitimately read 0
}

// NewExecutor creates a trade executor.
func NewExecutor(st *store.StateStore, clock Clock, logger zerolog.Logger) *Executor {
	e := &Executor{
		store:  st,
		clock:  clock,
		logger: logging.WithOperation(logger, "execute_trades"),
	}
	e.SyncLastID()
	return e
}

// SyncLastID resets the id high-water mark from the trades already in the
// store. Call it after restoring a snapshot.
func (e *Executor) SyncLastID() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastID, e.issued = 0, false
	for _, t := range e.store.Trades() {
		if !e.issued || t.ID > e.lastID {
			e.lastID, e.issued = t.ID, true
		}
	}
}

// ExecuteTrades records a trade for every stored signal whose confidence is
// above ExecutionThreshold. It fails with ErrBotInactive, changing nothing,
// when the bot is not active.
//
// Execution is not idempotent: calling it again with the same signals
// records the same selection again.
//
// Trade ids are the invocation timestamp plus the ordinal of the trade in
// the batch. If that would not exceed the last id issued, which happens when
// two calls land on the same clock tick, numbering continues from the last
// id instead so ids stay unique.
func (e *Executor) ExecuteTrades(ctx context.Context) ([]models.Trade, error) {
	if !e.store.State().Active {
		e.logger.Debug().Msg("Execution refused, bot inactive")
		return nil, errors.ErrBotInactive
	}

	selected := make([]models.TradeSignal, 0)
	for _, s := range e.store.Signals() {
		if Qualifies(s) {
			selected = append(selected, s)
		}
	}

	e.mu.Lock()
	base := e.clock.Now()
	start := base
	if len(selected) > 0 && e.issued && start <= e.lastID {
		e.logger.Warn().
			Uint64("base", base).
			Uint64("last_id", e.lastID).
			Msg("Clock tick reused, continuing trade ids from last issued")
		start = e.lastID + 1
	}

	trades := make([]models.Trade, len(selected))
	for i, s := range selected {
		trades[i] = models.Trade{
			ID:        start + uint64(i),
			Signal:    s,
			Executed:  true,
			Timestamp: base,
		}
	}
	if len(trades) > 0 {
		e.lastID, e.issued = trades[len(trades)-1].ID, true
	}
	e.store.AppendTrades(trades)
	e.mu.Unlock()

	for _, t := range trades {
		logging.LogTrade(e.logger, t.ID, t.Signal.Pair, string(t.Signal.Action), t.Signal.Confidence, t.Signal.Price)
	}
	e.logger.Info().
		Int("trades", len(trades)).
		Uint64("timestamp", base).
		Msg("Trades executed")

	out := make([]models.Trade, len(trades))
	for i, t := range trades {
		out[i] = t.Clone()
	}
	return out, nil
}
