package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dexflow/dexbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockMarketData struct {
	mu         sync.Mutex
	candles    []domain.Candle
	candlesErr error
	price      float64
	priceErr   error
}

func (m *mockMarketData) GetCandles(ctx context.Context, pair, interval string, limit int) ([]domain.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.candlesErr != nil {
		return nil, m.candlesErr
	}
	return append([]domain.Candle(nil), m.candles...), nil
}

func (m *mockMarketData) GetCurrentPrice(ctx context.Context, pair string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.priceErr != nil {
		return 0, m.priceErr
	}
	return m.price, nil
}

func (m *mockMarketData) set(candles []domain.Candle, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles = candles
	m.price = price
	m.candlesErr = nil
	m.priceErr = nil
}

type mockRepo struct {
	mu     sync.Mutex
	trades []domain.Trade
	closed []domain.ClosedPosition
}

func (m *mockRepo) SaveTrade(ctx context.Context, trade *domain.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, *trade)
	return nil
}

func (m *mockRepo) ListTrades(ctx context.Context, limit int) ([]*domain.Trade, error) {
	return nil, nil
}

func (m *mockRepo) SaveClosedPosition(ctx context.Context, closed *domain.ClosedPosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, *closed)
	return nil
}

func (m *mockRepo) ListClosedPositions(ctx context.Context, limit int) ([]*domain.ClosedPosition, error) {
	return nil, nil
}

func (m *mockRepo) closedPositions() []domain.ClosedPosition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ClosedPosition(nil), m.closed...)
}

func risingCandles(n int, start float64) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		c := start + float64(i)
		out[i] = domain.Candle{Time: int64(i), Open: c - 0.5, High: c + 1, Low: c - 1, Close: c, Volume: 100}
	}
	return out
}

func fallingCandles(n int, start float64) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		c := start - float64(i)
		out[i] = domain.Candle{Time: int64(i), Open: c + 0.5, High: c + 1, Low: c - 1, Close: c, Volume: 100}
	}
	return out
}

func flatCandles(n int, price float64) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		out[i] = domain.Candle{Time: int64(i), Open: price, High: price, Low: price, Close: price, Volume: 100}
	}
	return out
}

func testConfig() domain.BotConfig {
	return domain.BotConfig{
		Strategy:        domain.StrategyTrend,
		RiskLevel:       domain.RiskMedium,
		MaxPositionSize: 0.1,
		StopLoss:        0.05,
		TakeProfit:      0.1,
		TradingPairs:    []string{"ETH/USDC"},
		CycleInterval:   domain.IntervalHigh,
		Slippage:        0.005,
	}
}

func newTestEngine(t *testing.T, cfg domain.BotConfig, md *mockMarketData, repo domain.TradeRepository, venues ...domain.Venue) *TradingEngine {
	t.Helper()
	if len(venues) == 0 {
		venues = []domain.Venue{&mockVenue{id: "uniswap", name: "Uniswap", rate: 0.97, gas: 150000}}
	}
	agg := NewDEXAggregator(venues, zap.NewNop())
	return NewTradingEngine(cfg, 10000, md, agg, mockSigner{}, repo, zap.NewNop())
}

func TestRunCycle_OpensLongPosition(t *testing.T) {
	md := &mockMarketData{}
	md.set(risingCandles(25, 100), 124) // last close 124
	repo := &mockRepo{}
	e := newTestEngine(t, testConfig(), md, repo)

	e.runCycle(context.Background())

	positions := e.OpenPositions()
	require.Len(t, positions, 1)
	pos := positions[0]
	assert.Equal(t, "ETH/USDC", pos.Pair)
	assert.True(t, pos.IsLong)
	assert.InDelta(t, 124.0, pos.EntryPrice, 1e-9)
	// Risk sizing caps at 10% of equity: 10000*0.1/124 units.
	assert.InDelta(t, 1000.0/124.0, pos.Size, 0.0001)
	assert.InDelta(t, 124*0.95, pos.StopLossPrice, 0.0001)
	assert.InDelta(t, 124*1.1, pos.TakeProfitAt, 0.0001)
	assert.Equal(t, domain.PositionOpen, pos.Status)

	status := e.Status()
	assert.InDelta(t, 9000.0, status.Account.Balance, 0.0001)
	assert.Equal(t, 1, status.Account.Trades)
	require.NotNil(t, status.LastCycle)
	assert.Equal(t, 1, status.LastCycle.Analyzed)
	assert.Equal(t, 0, status.LastCycle.Skipped)

	trades := e.TradeHistory()
	require.Len(t, trades, 1)
	assert.Equal(t, domain.SignalBuy, trades[0].Signal)
	assert.Equal(t, "Uniswap", trades[0].Venue)

	repo.mu.Lock()
	assert.Len(t, repo.trades, 1)
	repo.mu.Unlock()
}

func TestRunCycle_SameDirectionSignalSkips(t *testing.T) {
	md := &mockMarketData{}
	md.set(risingCandles(25, 100), 124)
	e := newTestEngine(t, testConfig(), md, nil)

	e.runCycle(context.Background())
	balanceAfterOpen := e.Status().Account.Balance

	e.runCycle(context.Background())

	assert.Len(t, e.OpenPositions(), 1)
	assert.Len(t, e.TradeHistory(), 1)
	assert.InDelta(t, balanceAfterOpen, e.Status().Account.Balance, 1e-9)
}

func TestRunCycle_OppositeSignalFlipsPosition(t *testing.T) {
	md := &mockMarketData{}
	md.set(risingCandles(25, 100), 124)
	repo := &mockRepo{}
	e := newTestEngine(t, testConfig(), md, repo)

	e.runCycle(context.Background())
	require.Len(t, e.OpenPositions(), 1)

	// Reversal: SELL closes the long, then a short opens at the new price.
	md.set(fallingCandles(25, 130), 106)

	e.runCycle(context.Background())

	positions := e.OpenPositions()
	require.Len(t, positions, 1)
	assert.False(t, positions[0].IsLong)
	assert.InDelta(t, 106.0, positions[0].EntryPrice, 1e-9)

	// open long + close long + open short
	assert.Len(t, e.TradeHistory(), 3)

	closed := repo.closedPositions()
	require.Len(t, closed, 1)
	assert.Equal(t, "signal", closed[0].Reason)
	assert.True(t, closed[0].IsLong)
	assert.InDelta(t, 106.0, closed[0].ExitPrice, 1e-9)
	// Long from 124 to 106: realized loss of (106-124)*size.
	assert.Less(t, closed[0].RealizedPnL, 0.0)
}

func TestRunCycle_StopLossSweep(t *testing.T) {
	md := &mockMarketData{}
	md.set(risingCandles(25, 100), 124)
	repo := &mockRepo{}
	e := newTestEngine(t, testConfig(), md, repo)

	e.runCycle(context.Background())
	require.Len(t, e.OpenPositions(), 1)

	// Flat candles keep the strategy on HOLD while the price breaks the
	// 5% stop from the 124 entry.
	md.set(flatCandles(25, 117.8), 117.8)

	e.runCycle(context.Background())

	assert.Empty(t, e.OpenPositions())
	closed := repo.closedPositions()
	require.Len(t, closed, 1)
	assert.Equal(t, "stop_loss", closed[0].Reason)
	assert.InDelta(t, 117.8, closed[0].ExitPrice, 1e-9)
}

func TestRunCycle_TakeProfitSweep(t *testing.T) {
	md := &mockMarketData{}
	md.set(risingCandles(25, 100), 124)
	repo := &mockRepo{}
	e := newTestEngine(t, testConfig(), md, repo)

	e.runCycle(context.Background())
	require.Len(t, e.OpenPositions(), 1)

	md.set(flatCandles(25, 136.5), 136.5) // above 124*1.1

	e.runCycle(context.Background())

	assert.Empty(t, e.OpenPositions())
	closed := repo.closedPositions()
	require.Len(t, closed, 1)
	assert.Equal(t, "take_profit", closed[0].Reason)
	assert.Greater(t, closed[0].RealizedPnL, 0.0)
}

func TestRunCycle_InsufficientDataSkipsPair(t *testing.T) {
	md := &mockMarketData{}
	md.set(risingCandles(10, 100), 109)
	e := newTestEngine(t, testConfig(), md, nil)

	e.runCycle(context.Background())

	status := e.Status()
	require.NotNil(t, status.LastCycle)
	assert.Equal(t, 0, status.LastCycle.Analyzed)
	assert.Equal(t, 1, status.LastCycle.Skipped)
	require.Len(t, status.LastCycle.Errors, 1)
	assert.Contains(t, status.LastCycle.Errors[0], "insufficient market data")
	assert.Empty(t, e.OpenPositions())
}

func TestRunCycle_DegradedAfterRepeatedFailures(t *testing.T) {
	md := &mockMarketData{candlesErr: errors.New("exchange unreachable")}
	e := newTestEngine(t, testConfig(), md, nil)

	for i := 0; i < degradedStreak-1; i++ {
		e.runCycle(context.Background())
		assert.False(t, e.Status().Degraded)
	}
	e.runCycle(context.Background())
	assert.True(t, e.Status().Degraded)

	// One good cycle clears the streak.
	md.set(flatCandles(25, 100), 100)
	e.runCycle(context.Background())
	assert.False(t, e.Status().Degraded)
}

func TestRunCycle_ExecutionFailureLeavesAccountUntouched(t *testing.T) {
	md := &mockMarketData{}
	md.set(risingCandles(25, 100), 124)
	venue := &mockVenue{id: "v", name: "V", rate: 0.97, gas: 150000, execErr: errors.New("reverted")}
	e := newTestEngine(t, testConfig(), md, nil, venue)

	e.runCycle(context.Background())

	status := e.Status()
	assert.Empty(t, e.OpenPositions())
	assert.Empty(t, e.TradeHistory())
	assert.InDelta(t, 10000.0, status.Account.Balance, 1e-9)
	assert.Equal(t, 1, status.LastCycle.Skipped)
}

func TestRunCycle_FailedCloseKeepsPositionOpen(t *testing.T) {
	md := &mockMarketData{}
	md.set(risingCandles(25, 100), 124)
	venue := &mockVenue{id: "v", name: "V", rate: 0.97, gas: 150000}
	e := newTestEngine(t, testConfig(), md, nil, venue)

	e.runCycle(context.Background())
	require.Len(t, e.OpenPositions(), 1)

	// Close attempt fails: the long must survive for the next cycle.
	venue.execErr = errors.New("reverted")
	md.set(fallingCandles(25, 130), 106)

	e.runCycle(context.Background())

	positions := e.OpenPositions()
	require.Len(t, positions, 1)
	assert.True(t, positions[0].IsLong)
	assert.Equal(t, domain.PositionOpen, positions[0].Status)
	assert.Len(t, e.TradeHistory(), 1)
}

func TestStartStop_Idempotent(t *testing.T) {
	md := &mockMarketData{}
	md.set(flatCandles(25, 100), 100)
	e := newTestEngine(t, testConfig(), md, nil)

	tickChan := make(chan time.Time)
	e.newTicker = func(d time.Duration) (<-chan time.Time, func()) {
		return tickChan, func() {}
	}

	require.NoError(t, e.Start())
	require.NoError(t, e.Start()) // no-op

	require.Eventually(t, func() bool {
		return e.Status().LastCycle != nil
	}, time.Second, 10*time.Millisecond)
	assert.True(t, e.Status().Running)

	require.NoError(t, e.Stop())
	require.NoError(t, e.Stop()) // no-op
	assert.False(t, e.Status().Running)

	// A stopped engine restarts cleanly.
	require.NoError(t, e.Start())
	assert.True(t, e.Status().Running)
	require.NoError(t, e.Stop())
}

func TestTickerDrivesCycles(t *testing.T) {
	md := &mockMarketData{}
	md.set(flatCandles(25, 100), 100)
	e := newTestEngine(t, testConfig(), md, nil)

	tickChan := make(chan time.Time)
	e.newTicker = func(d time.Duration) (<-chan time.Time, func()) {
		return tickChan, func() {}
	}

	require.NoError(t, e.Start())
	require.Eventually(t, func() bool {
		return e.Status().LastCycle != nil
	}, time.Second, 10*time.Millisecond)

	first := e.Status().LastCycle.Time

	tickChan <- time.Now()
	require.Eventually(t, func() bool {
		lc := e.Status().LastCycle
		return lc != nil && lc.Time.After(first)
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, e.Stop())
}

func TestUpdateConfiguration(t *testing.T) {
	md := &mockMarketData{}
	e := newTestEngine(t, testConfig(), md, nil)

	risk := domain.RiskHigh
	require.NoError(t, e.UpdateConfiguration(domain.ConfigUpdate{RiskLevel: &risk}))
	assert.Equal(t, domain.RiskHigh, e.Status().Configuration.RiskLevel)

	bad := domain.RiskLevel("reckless")
	err := e.UpdateConfiguration(domain.ConfigUpdate{RiskLevel: &bad})
	require.Error(t, err)
	// Rejected update leaves the previous configuration intact.
	assert.Equal(t, domain.RiskHigh, e.Status().Configuration.RiskLevel)

	badStop := -0.1
	require.Error(t, e.UpdateConfiguration(domain.ConfigUpdate{StopLoss: &badStop}))
}
