// Package models provides domain models for the signal bot.
package models

import "fmt"

// Action represents the direction of a trade signal.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Valid reports whether the action is one of the known directions.
func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// ParseAction converts a string into an Action.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}

// Default bot configuration applied at process start.
const (
	DefaultStrategy  = "momentum"
	DefaultRiskLevel = 0.5
)

// TradeSignal is a derived trading recommendation. Signals are never
// mutated after creation.
type TradeSignal struct {
	Timestamp  uint64  `json:"timestamp"`
	Pair       string  `json:"pair"`
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
	Price      float64 `json:"price"`
}

// BotState is the mutable configuration and activity flag of the bot.
type BotState struct {
	Active       bool    `json:"active"`
	Balance      float64 `json:"balance"`
	LastAnalysis *uint64 `json:"last_analysis"`
	Strategy     string  `json:"strategy"`
	RiskLevel    float64 `json:"risk_level"`
}

// NewBotState returns the state the bot starts with.
func NewBotState() BotState {
	return BotState{
		Active:    false,
		Balance:   0.0,
		Strategy:  DefaultStrategy,
		RiskLevel: DefaultRiskLevel,
	}
}

// Clone returns a deep copy of the state.
func (s BotState) Clone() BotState {
	out := s
	if s.LastAnalysis != nil {
		v := *s.LastAnalysis
		out.LastAnalysis = &v
	}
	return out
}
