package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dexflow/dexbot/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			pair TEXT NOT NULL,
			signal TEXT NOT NULL,
			size REAL NOT NULL,
			price REAL NOT NULL,
			venue TEXT NOT NULL,
			tx_ref TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_pair ON trades(pair);`,
		`CREATE TABLE IF NOT EXISTS position_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			position_id TEXT NOT NULL,
			pair TEXT NOT NULL,
			is_long BOOLEAN NOT NULL,
			size REAL NOT NULL,
			entry_price REAL NOT NULL,
			exit_price REAL NOT NULL,
			realized_pnl REAL NOT NULL,
			reason TEXT NOT NULL,
			opened_at DATETIME NOT NULL,
			closed_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_position_history_pair ON position_history(pair);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// TradeRepository implementation

func (s *SQLiteStore) SaveTrade(ctx context.Context, trade *domain.Trade) error {
	query := `INSERT INTO trades (id, pair, signal, size, price, venue, tx_ref, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		trade.ID, trade.Pair, string(trade.Signal), trade.Size, trade.Price,
		trade.Venue, trade.TxRef, trade.Timestamp)
	return err
}

func (s *SQLiteStore) ListTrades(ctx context.Context, limit int) ([]*domain.Trade, error) {
	query := `SELECT id, pair, signal, size, price, venue, tx_ref, created_at
			  FROM trades ORDER BY created_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		var t domain.Trade
		var signal string
		var ts time.Time
		if err := rows.Scan(&t.ID, &t.Pair, &signal, &t.Size, &t.Price, &t.Venue, &t.TxRef, &ts); err != nil {
			return nil, err
		}
		t.Signal = domain.Signal(signal)
		t.Timestamp = ts
		trades = append(trades, &t)
	}
	return trades, rows.Err()
}

func (s *SQLiteStore) SaveClosedPosition(ctx context.Context, closed *domain.ClosedPosition) error {
	query := `INSERT INTO position_history (position_id, pair, is_long, size, entry_price, exit_price, realized_pnl, reason, opened_at, closed_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		closed.PositionID, closed.Pair, closed.IsLong, closed.Size,
		closed.EntryPrice, closed.ExitPrice, closed.RealizedPnL, closed.Reason,
		closed.OpenedAt, closed.ClosedAt)
	return err
}

func (s *SQLiteStore) ListClosedPositions(ctx context.Context, limit int) ([]*domain.ClosedPosition, error) {
	query := `SELECT id, position_id, pair, is_long, size, entry_price, exit_price, realized_pnl, reason, opened_at, closed_at
			  FROM position_history ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var closed []*domain.ClosedPosition
	for rows.Next() {
		var c domain.ClosedPosition
		if err := rows.Scan(&c.ID, &c.PositionID, &c.Pair, &c.IsLong, &c.Size,
			&c.EntryPrice, &c.ExitPrice, &c.RealizedPnL, &c.Reason, &c.OpenedAt, &c.ClosedAt); err != nil {
			return nil, err
		}
		closed = append(closed, &c)
	}
	return closed, rows.Err()
}
