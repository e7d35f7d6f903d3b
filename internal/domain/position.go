package domain

import "time"

type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// Position is an open exposure to a pair with fixed entry, stop-loss and
// take-profit levels. Stop/take prices are set at creation and never
// recomputed; configuration changes only affect new positions.
type Position struct {
	ID            string    `json:"id"`
	Pair          string    `json:"pair"`
	Size          float64   `json:"size"`
	EntryPrice    float64   `json:"entry_price"`
	IsLong        bool      `json:"is_long"`
	EntryTime     time.Time `json:"entry_time"`
	StopLossPrice float64   `json:"stop_loss_price"`
	TakeProfitAt  float64   `json:"take_profit_price"`
	// The fractions the exit prices were derived from, frozen at entry so a
	// later configuration change cannot move an existing stop.
	StopLossFrac   float64        `json:"stop_loss_frac"`
	TakeProfitFrac float64        `json:"take_profit_frac"`
	CurrentPrice   float64        `json:"current_price"`
	UnrealizedPnL  float64        `json:"unrealized_pnl"`
	Status         PositionStatus `json:"status"`

	ExitPrice   float64   `json:"exit_price,omitempty"`
	ExitTime    time.Time `json:"exit_time,omitempty"`
	RealizedPnL float64   `json:"realized_pnl,omitempty"`
}

// PnLAt returns the profit of the position if marked at price.
func (p *Position) PnLAt(price float64) float64 {
	if p.IsLong {
		return (price - p.EntryPrice) * p.Size
	}
	return (p.EntryPrice - price) * p.Size
}

// Trade is an append-only history record of one executed order.
type Trade struct {
	ID        string    `json:"id"`
	Pair      string    `json:"pair"`
	Signal    Signal    `json:"signal"`
	Size      float64   `json:"size"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	Venue     string    `json:"venue"`
	TxRef     string    `json:"tx_ref"`
}

// ClosedPosition is the persistence record written when a position closes.
type ClosedPosition struct {
	ID          int64     `json:"id"`
	PositionID  string    `json:"position_id"`
	Pair        string    `json:"pair"`
	IsLong      bool      `json:"is_long"`
	Size        float64   `json:"size"`
	EntryPrice  float64   `json:"entry_price"`
	ExitPrice   float64   `json:"exit_price"`
	RealizedPnL float64   `json:"realized_pnl"`
	Reason      string    `json:"reason"` // "signal", "stop_loss", "take_profit"
	OpenedAt    time.Time `json:"opened_at"`
	ClosedAt    time.Time `json:"closed_at"`
}
