package domain

import (
	"context"
	"time"
)

type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// MinSeriesLen is the minimum number of candles the signal engine needs
// before it produces anything other than HOLD.
const MinSeriesLen = 20

// MarketData supplies OHLCV candles and current prices for a pair.
// Implementations may fail or return short series; callers must tolerate
// both and treat them as "no trade this cycle".
type MarketData interface {
	GetCandles(ctx context.Context, pair, interval string, limit int) ([]Candle, error)
	GetCurrentPrice(ctx context.Context, pair string) (float64, error)
}

// Signer turns a prepared transaction payload into a transaction reference.
// The engine treats it as an opaque capability.
type Signer interface {
	Sign(ctx context.Context, payload []byte) (string, error)
}

// Venue is one liquidity source capable of quoting and executing a swap.
type Venue interface {
	ID() string
	Name() string
	FeeRate() float64
	Quote(ctx context.Context, tokenIn, tokenOut string, amountIn float64) (*Quote, error)
	Execute(ctx context.Context, quote *Quote, signer Signer, minOut float64, deadline time.Time) (*ExecutionResult, error)
}

// TradeRepository defines storage operations for executed trades and closed
// positions. Persistence is best-effort: the engine keeps its own in-memory
// history and only mirrors it here.
type TradeRepository interface {
	SaveTrade(ctx context.Context, trade *Trade) error
	ListTrades(ctx context.Context, limit int) ([]*Trade, error)

	SaveClosedPosition(ctx context.Context, closed *ClosedPosition) error
	ListClosedPositions(ctx context.Context, limit int) ([]*ClosedPosition, error)
}
