package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"signalbot/internal/models"
)

// SQLiteSnapshotter implements Snapshotter using SQLite.
type SQLiteSnapshotter struct {
	db *sql.DB
}

// NewSQLiteSnapshotter opens (or creates) the snapshot database at dbPath.
func NewSQLiteSnapshotter(dbPath string) (*SQLiteSnapshotter, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteSnapshotter{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteSnapshotter) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS bot_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		active INTEGER NOT NULL,
		balance REAL NOT NULL,
		last_analysis INTEGER,
		strategy TEXT NOT NULL,
		risk_level REAL NOT NULL,
		saved_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS signals (
		seq INTEGER PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		pair TEXT NOT NULL,
		action TEXT NOT NULL,
		confidence REAL NOT NULL,
		price REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trades (
		seq INTEGER PRIMARY KEY,
		id INTEGER NOT NULL,
		signal_timestamp INTEGER NOT NULL,
		pair TEXT NOT NULL,
		action TEXT NOT NULL,
		confidence REAL NOT NULL,
		price REAL NOT NULL,
		executed INTEGER NOT NULL,
		profit_loss REAL,
		timestamp INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_id ON trades(id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Ping verifies the database connection.
func (s *SQLiteSnapshotter) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteSnapshotter) Close() error {
	return s.db.Close()
}

// Save writes the snapshot in a single transaction, replacing the previous one.
func (s *SQLiteSnapshotter) Save(ctx context.Context, snap Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"bot_state", "signals", "trades"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	var lastAnalysis sql.NullInt64
	if snap.State.LastAnalysis != nil {
		lastAnalysis = sql.NullInt64{Int64: int64(*snap.State.LastAnalysis), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO bot_state (id, active, balance, last_analysis, strategy, risk_level)
		VALUES (1, ?, ?, ?, ?, ?)
	`, boolToInt(snap.State.Active), snap.State.Balance, lastAnalysis, snap.State.Strategy, snap.State.RiskLevel)
	if err != nil {
		return fmt.Errorf("failed to save bot state: %w", err)
	}

	sigStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO signals (seq, timestamp, pair, action, confidence, price)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer sigStmt.Close()

	for i, sig := range snap.Signals {
		if _, err := sigStmt.ExecContext(ctx, i, int64(sig.Timestamp), sig.Pair, string(sig.Action), sig.Confidence, sig.Price); err != nil {
			return fmt.Errorf("failed to insert signal: %w", err)
		}
	}

	tradeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (seq, id, signal_timestamp, pair, action, confidence, price, executed, profit_loss, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer tradeStmt.Close()

	for i, t := range snap.Trades {
		var pnl sql.NullFloat64
		if t.ProfitLoss != nil {
			pnl = sql.NullFloat64{Float64: *t.ProfitLoss, Valid: true}
		}
		_, err := tradeStmt.ExecContext(ctx, i, int64(t.ID), int64(t.Signal.Timestamp), t.Signal.Pair, string(t.Signal.Action),
			t.Signal.Confidence, t.Signal.Price, boolToInt(t.Executed), pnl, int64(t.Timestamp))
		if err != nil {
			return fmt.Errorf("failed to insert trade: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Load reads the last saved snapshot.
func (s *SQLiteSnapshotter) Load(ctx context.Context) (Snapshot, bool, error) {
	var (
		snap         Snapshot
		active       int
		lastAnalysis sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT active, balance, last_analysis, strategy, risk_level FROM bot_state WHERE id = 1
	`).Scan(&active, &snap.State.Balance, &lastAnalysis, &snap.State.Strategy, &snap.State.RiskLevel)
	if err == sql.ErrNoRows {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to query bot state: %w", err)
	}
	snap.State.Active = active == 1
	if lastAnalysis.Valid {
		v := uint64(lastAnalysis.Int64)
		snap.State.LastAnalysis = &v
	}

	if snap.Signals, err = s.loadSignals(ctx); err != nil {
		return Snapshot{}, false, err
	}
	if snap.Trades, err = s.loadTrades(ctx); err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

func (s *SQLiteSnapshotter) loadSignals(ctx context.Context) ([]models.TradeSignal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, pair, action, confidence, price FROM signals ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	signals := make([]models.TradeSignal, 0)
	for rows.Next() {
		var (
			sig    models.TradeSignal
			ts     int64
			action string
		)
		if err := rows.Scan(&ts, &sig.Pair, &action, &sig.Confidence, &sig.Price); err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		sig.Timestamp = uint64(ts)
		sig.Action = models.Action(action)
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

func (s *SQLiteSnapshotter) loadTrades(ctx context.Context) ([]models.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, signal_timestamp, pair, action, confidence, price, executed, profit_loss, timestamp
		FROM trades ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := make([]models.Trade, 0)
	for rows.Next() {
		var (
			t             models.Trade
			id, sigTs, ts int64
			action        string
			executed      int
			pnl           sql.NullFloat64
		)
		if err := rows.Scan(&id, &sigTs, &t.Signal.Pair, &action, &t.Signal.Confidence, &t.Signal.Price, &executed, &pnl, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.ID = uint64(id)
		t.Signal.Timestamp = uint64(sigTs)
		t.Signal.Action = models.Action(action)
		t.Executed = executed == 1
		if pnl.Valid {
			v := pnl.Float64
			t.ProfitLoss = &v
		}
		t.Timestamp = uint64(ts)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
