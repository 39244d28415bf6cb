// Package bot exposes the signal bot's operations: market analysis, trade
// execution, bot control, queries and the language-model passthrough.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"signalbot/internal/agents"
	"signalbot/internal/errors"
	"signalbot/internal/logging"
	"signalbot/internal/metrics"
	"signalbot/internal/models"
	"signalbot/internal/notify"
	"signalbot/internal/store"
	"signalbot/internal/trading"
)

const defaultNotifyTimeout = 5 * time.Second

// Deps are the collaborators of a Service. Store, Clock and Strategy are
// required; the rest may be left zero.
type Deps struct {
	Store    *store.StateStore
	Clock    trading.Clock
	Strategy trading.Strategy
	LLM      agents.LanguageModel
	Notifier notify.Notifier
	Metrics  *metrics.Recorder
	Logger   zerolog.Logger

	NotifyTimeout time.Duration
}

// Service implements every bot operation on top of a shared StateStore.
type Service struct {
	store     *store.StateStore
	generator *trading.Generator
	executor  *trading.Executor
	llm       agents.LanguageModel
	notifier  notify.Notifier
	metrics   *metrics.Recorder
	logger    zerolog.Logger

	notifyTimeout time.Duration
}

// NewService wires a Service from its dependencies.
func NewService(d Deps) *Service {
	if d.Notifier == nil {
		d.Notifier = notify.NewNoOpNotifier()
	}
	if d.NotifyTimeout <= 0 {
		d.NotifyTimeout = defaultNotifyTimeout
	}

	s := &Service{
		store:         d.Store,
		generator:     trading.NewGenerator(d.Store, d.Clock, d.Strategy, d.Logger),
		executor:      trading.NewExecutor(d.Store, d.Clock, d.Logger),
		llm:           d.LLM,
		notifier:      d.Notifier,
		metrics:       d.Metrics,
		logger:        d.Logger.With().Str("component", "bot").Logger(),
		notifyTimeout: d.NotifyTimeout,
	}
	st := s.store.State()
	s.metrics.SetBotState(st.Active, st.RiskLevel)
	return s
}

// Analyzer returns the name of the analysis strategy in use.
func (s *Service) Analyzer() string {
	return s.generator.Strategy().Name()
}

// Prompt forwards a single prompt to the language model.
func (s *Service) Prompt(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := s.prompt(ctx, prompt)
	s.metrics.RecordOperation("prompt", start, err)
	return out, err
}

func (s *Service) prompt(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.NewValidationError("prompt", prompt, "must not be empty")
	}
	if s.llm == nil {
		return "", errors.ErrLLMUnavailable
	}
	return s.llm.Complete(ctx, prompt)
}

// Chat forwards a conversation to the language model.
func (s *Service) Chat(ctx context.Context, messages []models.ChatMessage) (string, error) {
	start := time.Now()
	out, err := s.chat(ctx, messages)
	s.metrics.RecordOperation("chat", start, err)
	return out, err
}

func (s *Service) chat(ctx context.Context, messages []models.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", errors.NewValidationError("messages", 0, "at least one message is required")
	}
	for i, m := range messages {
		if !m.Role.Valid() {
			return "", errors.NewValidationError("role", m.Role, fmt.Sprintf("message %d must be system, user or assistant", i))
		}
	}
	if s.llm == nil {
		return "", errors.ErrLLMUnavailable
	}
	return s.llm.Chat(ctx, messages)
}

// AnalyzeMarket runs the analysis strategy over raw and records the signals.
func (s *Service) AnalyzeMarket(ctx context.Context, raw []byte) ([]models.TradeSignal, error) {
	start := time.Now()
	signals, err := s.generator.AnalyzeMarket(ctx, raw)
	s.metrics.RecordOperation("analyze_market", start, err)
	if err != nil {
		return nil, err
	}

	for _, sig := range signals {
		s.metrics.RecordSignal(string(sig.Action))
	}
	s.publish(ctx, notify.EventSignalsGenerated, func(ctx context.Context) error {
		return s.notifier.SignalsGenerated(ctx, signals)
	})
	return signals, nil
}

// ExecuteTrades turns qualifying signals into trades. It returns
// ErrBotInactive without side effects when the bot is inactive.
func (s *Service) ExecuteTrades(ctx context.Context) ([]models.Trade, error) {
	start := time.Now()
	trades, err := s.executor.ExecuteTrades(ctx)
	s.metrics.RecordOperation("execute_trades", start, err)
	if err != nil {
		return nil, err
	}

	for _, t := range trades {
		s.metrics.RecordTrade(string(t.Signal.Action))
	}
	if len(trades) > 0 {
		s.publish(ctx, notify.EventTradesExecuted, func(ctx context.Context) error {
			return s.notifier.TradesExecuted(ctx, trades)
		})
	}
	return trades, nil
}

// GetBotState returns a snapshot of the bot state.
func (s *Service) GetBotState() models.BotState {
	return s.store.State()
}

// GetTradeHistory returns every recorded trade in insertion order.
func (s *Service) GetTradeHistory() []models.Trade {
	return s.store.Trades()
}

// GetSignals returns every recorded signal in insertion order.
func (s *Service) GetSignals() []models.TradeSignal {
	return s.store.Signals()
}

// ToggleBot sets the activity flag and returns the resulting state.
func (s *Service) ToggleBot(ctx context.Context, active bool) models.BotState {
	var prev bool
	st := s.store.UpdateState(func(b *models.BotState) {
		prev = b.Active
		b.Active = active
	})

	logging.LogStateChange(s.logger, "active", prev, active)
	s.metrics.SetBotState(st.Active, st.RiskLevel)
	s.metrics.RecordOperation("toggle_bot", time.Now(), nil)
	s.publish(ctx, notify.EventBotToggled, func(ctx context.Context) error {
		return s.notifier.BotToggled(ctx, st)
	})
	return st
}

// UpdateStrategy overwrites the strategy label and risk level and returns
// the resulting state. Neither value is validated.
func (s *Service) UpdateStrategy(ctx context.Context, strategy string, riskLevel float64) models.BotState {
	var prevStrategy string
	var prevRisk float64
	st := s.store.UpdateState(func(b *models.BotState) {
		prevStrategy, prevRisk = b.Strategy, b.RiskLevel
		b.Strategy = strategy
		b.RiskLevel = riskLevel
	})

	logging.LogStateChange(s.logger, "strategy", prevStrategy, strategy)
	logging.LogStateChange(s.logger, "risk_level", prevRisk, riskLevel)
	s.metrics.SetBotState(st.Active, st.RiskLevel)
	s.metrics.RecordOperation("update_strategy", time.Now(), nil)
	s.publish(ctx, notify.EventStrategyUpdated, func(ctx context.Context) error {
		return s.notifier.StrategyUpdated(ctx, st)
	})
	return st
}

// Summary aggregates state, signals and trades for dashboards.
func (s *Service) Summary() models.Summary {
	snap := s.store.Snapshot()
	return models.Summarize(snap.State, snap.Signals, snap.Trades)
}

// Snapshot returns a consistent copy of everything the bot holds.
func (s *Service) Snapshot() store.Snapshot {
	return s.store.Snapshot()
}

// Restore replaces the bot's contents with a saved snapshot.
func (s *Service) Restore(snap store.Snapshot) {
	s.store.Restore(snap)
	s.executor.SyncLastID()
	st := s.store.State()
	s.metrics.SetBotState(st.Active, st.RiskLevel)
	s.logger.Info().
		Int("signals", len(snap.Signals)).
		Int("trades", len(snap.Trades)).
		Bool("active", st.Active).
		Msg("State restored from snapshot")
}

// publish hands an event to the notifier. Failures are logged and counted,
// never returned: the operation has already taken effect.
func (s *Service) publish(ctx context.Context, t notify.EventType, send func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	err := send(ctx)
	s.metrics.RecordEvent(string(t), err)
	if err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(t)).Msg("Failed to publish event")
	}
}
