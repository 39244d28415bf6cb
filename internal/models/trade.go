package models

// Trade is a recorded execution of exactly one qualifying signal.
type Trade struct {
	ID         uint64      `json:"id"`
	Signal     TradeSignal `json:"signal"`
	Executed   bool        `json:"executed"`
	ProfitLoss *float64    `json:"profit_loss"`
	Timestamp  uint64      `json:"timestamp"`
}

// Clone returns a deep copy of the trade.
func (t Trade) Clone() Trade {
	out := t
	if t.ProfitLoss != nil {
		v := *t.ProfitLoss
		out.ProfitLoss = &v
	}
	return out
}

// Summary aggregates the query surface for dashboards.
type Summary struct {
	Active        bool    `json:"active"`
	Strategy      string  `json:"strategy"`
	RiskLevel     float64 `json:"risk_level"`
	LastAnalysis  *uint64 `json:"last_analysis"`
	SignalCount   int     `json:"signal_count"`
	TradeCount    int     `json:"trade_count"`
	BuyTrades     int     `json:"buy_trades"`
	SellTrades    int     `json:"sell_trades"`
	AvgConfidence float64 `json:"avg_confidence"`
	LastTradeAt   *uint64 `json:"last_trade_at"`
}

// Summarize builds a Summary from snapshots of the bot state, signals and trades.
func Summarize(state BotState, signals []TradeSignal, trades []Trade) Summary {
	s := Summary{
		Active:       state.Active,
		Strategy:     state.Strategy,
		RiskLevel:    state.RiskLevel,
		LastAnalysis: state.LastAnalysis,
		SignalCount:  len(signals),
		TradeCount:   len(trades),
	}

	var sum float64
	for _, t := range trades {
		switch t.Signal.Action {
		case ActionBuy:
			s.BuyTrades++
		case ActionSell:
			s.SellTrades++
		}
		sum += t.Signal.Confidence
	}
	if len(trades) > 0 {
		s.AvgConfidence = sum / float64(len(trades))
		last := trades[len(trades)-1].Timestamp
		s.LastTradeAt = &last
	}
	return s
}
