// Package store holds the bot state, the signal log and the trade log.
package store

import (
	"context"
	"sync"

	"signalbot/internal/models"
)

// StateStore owns the single BotState and the append-only signal and trade
// sequences. Every accessor copies data in and out, so callers never share
// memory with the store.
type StateStore struct {
	mu      sync.RWMutex
	state   models.BotState
	signals []models.TradeSignal
	trades  []models.Trade
}

// NewStateStore creates a store initialized with the default bot state.
func NewStateStore() *StateStore {
	return &StateStore{
		state:   models.NewBotState(),
		signals: make([]models.TradeSignal, 0),
		trades:  make([]models.Trade, 0),
	}
}

// State returns a snapshot of the bot state.
func (s *StateStore) State() models.BotState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// UpdateState applies fn to the bot state and returns the resulting snapshot.
func (s *StateStore) UpdateState(fn func(st *models.BotState)) models.BotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	return s.state.Clone()
}

// RecordAnalysis appends a batch of signals and stamps the analysis time in
// one step.
func (s *StateStore) RecordAnalysis(ts uint64, signals []models.TradeSignal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, signals...)
	s.state.LastAnalysis = &ts
}

// Signals returns a copy of all recorded signals in insertion order.
func (s *StateStore) Signals() []models.TradeSignal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TradeSignal, len(s.signals))
	copy(out, s.signals)
	return out
}

// SignalCount returns the number of recorded signals.
func (s *StateStore) SignalCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.signals)
}

// AppendTrades appends a batch of trades preserving their order.
func (s *StateStore) AppendTrades(trades []models.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range trades {
		s.trades = append(s.trades, t.Clone())
	}
}

// Trades returns a copy of all recorded trades in insertion order.
func (s *StateStore) Trades() []models.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Trade, len(s.trades))
	for i, t := range s.trades {
		out[i] = t.Clone()
	}
	return out
}

// TradeCount returns the number of recorded trades.
func (s *StateStore) TradeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trades)
}

// Snapshot is a point-in-time copy of everything the store holds.
type Snapshot struct {
	State   models.BotState      `json:"state"`
	Signals []models.TradeSignal `json:"signals"`
	Trades  []models.Trade       `json:"trades"`
}

// Snapshot returns a consistent copy of the whole store.
func (s *StateStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		State:   s.state.Clone(),
		Signals: make([]models.TradeSignal, len(s.signals)),
		Trades:  make([]models.Trade, len(s.trades)),
	}
	copy(snap.Signals, s.signals)
	for i, t := range s.trades {
		snap.Trades[i] = t.Clone()
	}
	return snap
}

// Restore replaces the store contents with a snapshot.
func (s *StateStore) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = snap.State.Clone()
	s.signals = make([]models.TradeSignal, len(snap.Signals))
	copy(s.signals, snap.Signals)
	s.trades = make([]models.Trade, len(snap.Trades))
	for i, t := range snap.Trades {
		s.trades[i] = t.Clone()
	}
}

// Snapshotter persists store snapshots outside the process.
type Snapshotter interface {
	// Save replaces any previously saved snapshot.
	Save(ctx context.Context, snap Snapshot) error
	// Load returns the last saved snapshot; ok is false when none exists.
	Load(ctx context.Context) (snap Snapshot, ok bool, err error)
	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error
	Close() error
}
