// Package notify publishes bot events to external channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"signalbot/internal/config"
	"signalbot/internal/models"
	"signalbot/internal/resilience"
)

// Notifier defines the interface for publishing bot events.
type Notifier interface {
	Send(ctx context.Context, e Event) error
	SignalsGenerated(ctx context.Context, signals []models.TradeSignal) error
	TradesExecuted(ctx context.Context, trades []models.Trade) error
	BotToggled(ctx context.Context, state models.BotState) error
	StrategyUpdated(ctx context.Context, state models.BotState) error
	Close() error
}

// NotificationChannel defines the interface for a notification channel.
type NotificationChannel interface {
	Name() string
	Send(ctx context.Context, e Event) error
	IsEnabled() bool
}

// EventType identifies what happened.
type EventType string

const (
	EventSignalsGenerated EventType = "signals_generated"
	EventTradesExecuted   EventType = "trades_executed"
	EventBotToggled       EventType = "bot_toggled"
	EventStrategyUpdated  EventType = "strategy_updated"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventSignalsGenerated, EventTradesExecuted, EventBotToggled, EventStrategyUpdated:
		return true
	}
	return false
}

// Event is a single bot event as delivered to channels.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// MultiNotifier sends events to multiple channels.
type MultiNotifier struct {
	mu       sync.RWMutex
	channels []NotificationChannel
	closers  []func() error
	breakers []*resilience.Breaker
	types    map[EventType]bool // nil means every type
}

// NewMultiNotifier creates a MultiNotifier with the channels enabled in cfg.
func NewMultiNotifier(cfg config.EventsConfig, logger zerolog.Logger) (*MultiNotifier, error) {
	mn := &MultiNotifier{
		channels: make([]NotificationChannel, 0),
	}

	if len(cfg.Types) > 0 {
		mn.types = make(map[EventType]bool, len(cfg.Types))
		for _, t := range cfg.Types {
			mn.types[EventType(t)] = true
		}
	}

	if cfg.Log {
		mn.AddChannel(NewLogChannel(logger))
	}
	if cfg.Webhook.Enabled {
		mn.addGuarded(NewWebhookNotifier(cfg.Webhook), logger)
	}
	if cfg.Kafka.Enabled {
		kc, err := NewKafkaChannel(cfg.Kafka)
		if err != nil {
			return nil, fmt.Errorf("creating kafka channel: %w", err)
		}
		mn.addGuarded(kc, logger)
		mn.closers = append(mn.closers, kc.Close)
	}

	return mn, nil
}

// AddChannel adds a notification channel.
func (mn *MultiNotifier) AddChannel(ch NotificationChannel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// addGuarded adds an external channel behind its own circuit breaker.
func (mn *MultiNotifier) addGuarded(ch NotificationChannel, logger zerolog.Logger) {
	b := resilience.NewBreaker(ch.Name(), resilience.DefaultBreakerConfig(), logger)
	mn.AddChannel(&guardedChannel{NotificationChannel: ch, breaker: b})
	mn.breakers = append(mn.breakers, b)
}

// Breakers returns the breakers guarding external channels.
func (mn *MultiNotifier) Breakers() []*resilience.Breaker {
	mn.mu.RLock()
	defer mn.mu.RUnlock()
	return append([]*resilience.Breaker(nil), mn.breakers...)
}

func (mn *MultiNotifier) shouldSend(t EventType) bool {
	return mn.types == nil || mn.types[t]
}

// Send sends an event to all enabled channels. Every channel is attempted;
// failures are joined into one error.
func (mn *MultiNotifier) Send(ctx context.Context, e Event) error {
	if !mn.shouldSend(e.Type) {
		return nil
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	mn.mu.RLock()
	channels := mn.channels
	mn.mu.RUnlock()

	var errs []error
	for _, ch := range channels {
		if ch.IsEnabled() {
			if err := ch.Send(ctx, e); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %w", errors.Join(errs...))
	}
	return nil
}

// SignalsGenerated publishes the batch produced by one analysis.
func (mn *MultiNotifier) SignalsGenerated(ctx context.Context, signals []models.TradeSignal) error {
	var sb strings.Builder
	for _, s := range signals {
		sb.WriteString(fmt.Sprintf("%s %s @ %.2f (confidence %.2f)\n", s.Action, s.Pair, s.Price, s.Confidence))
	}

	return mn.Send(ctx, Event{
		Type:    EventSignalsGenerated,
		Title:   fmt.Sprintf("%d signal(s) generated", len(signals)),
		Message: strings.TrimSuffix(sb.String(), "\n"),
		Data: map[string]interface{}{
			"count":   len(signals),
			"signals": signals,
		},
	})
}

// TradesExecuted publishes the batch recorded by one execution.
func (mn *MultiNotifier) TradesExecuted(ctx context.Context, trades []models.Trade) error {
	var sb strings.Builder
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("#%d %s %s @ %.2f\n", t.ID, t.Signal.Action, t.Signal.Pair, t.Signal.Price))
	}

	return mn.Send(ctx, Event{
		Type:    EventTradesExecuted,
		Title:   fmt.Sprintf("%d trade(s) executed", len(trades)),
		Message: strings.TrimSuffix(sb.String(), "\n"),
		Data: map[string]interface{}{
			"count":  len(trades),
			"trades": trades,
		},
	})
}

// BotToggled publishes an activation change.
func (mn *MultiNotifier) BotToggled(ctx context.Context, state models.BotState) error {
	status := "deactivated"
	if state.Active {
		status = "activated"
	}
	return mn.Send(ctx, Event{
		Type:    EventBotToggled,
		Title:   "Bot " + status,
		Message: fmt.Sprintf("Trade execution is now %s", status),
		Data:    map[string]interface{}{"state": state},
	})
}

// StrategyUpdated publishes a strategy or risk change.
func (mn *MultiNotifier) StrategyUpdated(ctx context.Context, state models.BotState) error {
	return mn.Send(ctx, Event{
		Type:    EventStrategyUpdated,
		Title:   "Strategy updated",
		Message: fmt.Sprintf("Strategy %s, risk level %.2f", state.Strategy, state.RiskLevel),
		Data:    map[string]interface{}{"state": state},
	})
}

// Close releases channel resources.
func (mn *MultiNotifier) Close() error {
	var errs []string
	for _, c := range mn.closers {
		if err := c(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing notifiers: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LogChannel writes events to the application log.
type LogChannel struct {
	logger zerolog.Logger
}

// NewLogChannel creates a LogChannel.
func NewLogChannel(logger zerolog.Logger) *LogChannel {
	return &LogChannel{logger: logger.With().Str("component", "events").Logger()}
}

// Name returns the name of the channel.
func (l *LogChannel) Name() string { return "log" }

// IsEnabled returns whether the channel is enabled.
func (l *LogChannel) IsEnabled() bool { return true }

// Send logs the event.
func (l *LogChannel) Send(_ context.Context, e Event) error {
	l.logger.Info().
		Str("event_id", e.ID).
		Str("event_type", string(e.Type)).
		Str("message", e.Message).
		Msg(e.Title)
	return nil
}

// NoOpNotifier is a notifier that does nothing.
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// Send does nothing.
func (n *NoOpNotifier) Send(ctx context.Context, e Event) error { return nil }

// SignalsGenerated does nothing.
func (n *NoOpNotifier) SignalsGenerated(ctx context.Context, signals []models.TradeSignal) error {
	return nil
}

// TradesExecuted does nothing.
func (n *NoOpNotifier) TradesExecuted(ctx context.Context, trades []models.Trade) error { return nil }

// BotToggled does nothing.
func (n *NoOpNotifier) BotToggled(ctx context.Context, state models.BotState) error { return nil }

// StrategyUpdated does nothing.
func (n *NoOpNotifier) StrategyUpdated(ctx context.Context, state models.BotState) error { return nil }

// Close does nothing.
func (n *NoOpNotifier) Close() error { return nil }

type guardedChannel struct {
	NotificationChannel
	breaker *resilience.Breaker
}

func (g *guardedChannel) Send(ctx context.Context, e Event) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.NotificationChannel.Send(ctx, e)
	})
}
