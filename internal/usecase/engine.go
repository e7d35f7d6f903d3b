package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dexflow/dexbot/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	candleInterval    = "1h"
	candleLimit       = 50
	marketDataTimeout = 10 * time.Second
	persistTimeout    = 5 * time.Second

	// Consecutive failed cycles for a pair before status reports degraded.
	degradedStreak = 3
)

type account struct {
	balance   float64
	positions map[string]*domain.Position // pair -> open position
	trades    []domain.Trade
}

// CycleReport is the outcome of the most recent trading cycle.
type CycleReport struct {
	Time     time.Time     `json:"time"`
	Duration time.Duration `json:"duration"`
	Pairs    int           `json:"pairs"`
	Analyzed int           `json:"analyzed"`
	Skipped  int           `json:"skipped"`
	Errors   []string      `json:"errors,omitempty"`
}

type AccountSummary struct {
	Balance       float64 `json:"balance"`
	OpenPositions int     `json:"open_positions"`
	Trades        int     `json:"trades"`
}

type EngineStatus struct {
	Running       bool             `json:"running"`
	Configuration domain.BotConfig `json:"configuration"`
	Account       AccountSummary   `json:"account"`
	LastCycle     *CycleReport     `json:"last_cycle,omitempty"`
	Degraded      bool             `json:"degraded"`
	Timestamp     time.Time        `json:"timestamp"`
}

// TradingEngine owns the bot configuration and the open-position set and
// drives the recurring analyze/trade/exit cycle. All account mutations go
// through its mutex; pair analyses run concurrently but never touch the
// account without it.
type TradingEngine struct {
	marketData domain.MarketData
	aggregator *DEXAggregator
	signer     domain.Signer
	repo       domain.TradeRepository // optional, best-effort mirror
	logger     *zap.Logger

	mu         sync.Mutex
	cfg        domain.BotConfig
	acct       account
	running    bool
	stopChan   chan struct{}
	lastCycle  *CycleReport
	failStreak map[string]int

	timeNow   func() time.Time                                 // for testing
	newTicker func(d time.Duration) (<-chan time.Time, func()) // for testing
}

func NewTradingEngine(
	cfg domain.BotConfig,
	initialBalance float64,
	marketData domain.MarketData,
	aggregator *DEXAggregator,
	signer domain.Signer,
	repo domain.TradeRepository,
	logger *zap.Logger,
) *TradingEngine {
	return &TradingEngine{
		marketData: marketData,
		aggregator: aggregator,
		signer:     signer,
		repo:       repo,
		logger:     logger,
		cfg:        cfg,
		acct: account{
			balance:   initialBalance,
			positions: make(map[string]*domain.Position),
		},
		failStreak: make(map[string]int),
		timeNow:    time.Now,
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// Start schedules the cycle loop at the interval fixed by the current
// configuration. Starting an already-running engine is a no-op. The cadence
// is locked in at start; configuration changes apply to trading decisions
// immediately but require a restart to reschedule.
func (e *TradingEngine) Start() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		e.logger.Info("Trading engine already running")
		return nil
	}
	e.running = true
	stopChan := make(chan struct{})
	e.stopChan = stopChan
	interval := e.cfg.CycleInterval.Duration()
	e.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	go e.run(ctx, cancel, stopChan, interval)

	e.logger.Info("Trading engine started", zap.Duration("interval", interval))
	return nil
}

// Stop cancels the next scheduled tick. A cycle already in progress is
// allowed to finish; in-flight venue calls run to completion or time out.
// Stopping a stopped engine is a no-op.
func (e *TradingEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		e.logger.Info("Trading engine not running")
		return nil
	}
	e.running = false
	close(e.stopChan)

	e.logger.Info("Trading engine stopped")
	return nil
}

func (e *TradingEngine) run(ctx context.Context, cancel context.CancelFunc, stopChan chan struct{}, interval time.Duration) {
	defer cancel()

	tick, stopTick := e.newTicker(interval)
	defer stopTick()

	// Immediate first cycle, then the fixed cadence.
	e.runCycle(ctx)

	for {
		select {
		case <-tick:
			e.runCycle(ctx)
		case <-stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runCycle analyzes every configured pair, concurrently, then sweeps open
// positions for exit conditions once all analyses have settled.
func (e *TradingEngine) runCycle(ctx context.Context) {
	start := e.timeNow()

	e.mu.Lock()
	cfg := e.cfg
	e.mu.Unlock()

	report := &CycleReport{Time: start, Pairs: len(cfg.TradingPairs)}
	var reportMu sync.Mutex

	var wg sync.WaitGroup
	for _, pair := range cfg.TradingPairs {
		wg.Add(1)
		go func(pair string) {
			defer wg.Done()

			if err := e.analyzePair(ctx, pair, cfg); err != nil {
				e.logger.Warn("Pair skipped this cycle", zap.String("pair", pair), zap.Error(err))
				e.notePairFailure(pair)
				reportMu.Lock()
				report.Skipped++
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", pair, err))
				reportMu.Unlock()
				return
			}

			e.notePairSuccess(pair)
			reportMu.Lock()
			report.Analyzed++
			reportMu.Unlock()
		}(pair)
	}
	wg.Wait()

	e.sweepExits(ctx)

	report.Duration = e.timeNow().Sub(start)

	e.mu.Lock()
	e.lastCycle = report
	e.mu.Unlock()

	e.logger.Info("Trading cycle completed",
		zap.Int("analyzed", report.Analyzed),
		zap.Int("skipped", report.Skipped),
		zap.Duration("duration", report.Duration))
}

// analyzePair fetches market data, computes the signal and opens or flips a
// position when risk checks allow. Any returned error means the pair was
// skipped for this cycle; the cycle itself never fails.
func (e *TradingEngine) analyzePair(ctx context.Context, pair string, cfg domain.BotConfig) error {
	fetchCtx, cancel := context.WithTimeout(ctx, marketDataTimeout)
	candles, err := e.marketData.GetCandles(fetchCtx, pair, candleInterval, candleLimit)
	cancel()
	if err != nil {
		return fmt.Errorf("market data: %w", err)
	}
	if len(candles) < domain.MinSeriesLen {
		return fmt.Errorf("insufficient market data: %d candles", len(candles))
	}

	signal := SignalFor(candles, cfg.Strategy)
	if signal == domain.SignalHold {
		return nil
	}
	price := candles[len(candles)-1].Close

	e.logger.Info("Signal",
		zap.String("pair", pair),
		zap.String("signal", string(signal)),
		zap.Float64("price", price))

	wantLong := signal == domain.SignalBuy

	e.mu.Lock()
	var toFlip *domain.Position
	if pos := e.acct.positions[pair]; pos != nil {
		if pos.IsLong == wantLong {
			// No averaging-in: same-direction signal on an open position.
			e.mu.Unlock()
			e.logger.Debug("Position already open, skipping", zap.String("pair", pair))
			return nil
		}
		toFlip = pos
	}
	equity := e.acct.balance
	e.mu.Unlock()

	if toFlip != nil {
		if err := e.closePosition(ctx, toFlip, price, "signal", cfg.Slippage); err != nil {
			return fmt.Errorf("closing on opposite signal: %w", err)
		}
		e.mu.Lock()
		equity = e.acct.balance
		e.mu.Unlock()
	}

	size, err := PositionSize(equity, cfg.RiskLevel, cfg.MaxPositionSize, price, cfg.StopLoss)
	if err != nil {
		// Configuration error: no trade this cycle, not a failure.
		e.logger.Error("Position sizing rejected", zap.String("pair", pair), zap.Error(err))
		return nil
	}
	if size <= 0 {
		return nil
	}

	return e.openPosition(ctx, pair, signal, size, price, cfg)
}

func (e *TradingEngine) openPosition(ctx context.Context, pair string, signal domain.Signal, size, price float64, cfg domain.BotConfig) error {
	base, quote, err := domain.SplitPair(pair)
	if err != nil {
		return err
	}

	// Buying spends the quote token, selling spends the base token.
	var tokenIn, tokenOut string
	var amountIn float64
	if signal == domain.SignalBuy {
		tokenIn, tokenOut = quote, base
		amountIn = size * price
	} else {
		tokenIn, tokenOut = base, quote
		amountIn = size
	}

	best, err := e.aggregator.BestQuote(ctx, tokenIn, tokenOut, amountIn)
	if err != nil {
		return fmt.Errorf("quoting %s: %w", pair, err)
	}

	result := e.aggregator.Execute(ctx, best, e.signer, cfg.Slippage)
	if !result.Success {
		return fmt.Errorf("execution on %s failed: %s", result.Venue, result.Error)
	}

	now := e.timeNow()
	isLong := signal == domain.SignalBuy

	pos := &domain.Position{
		ID:             uuid.NewString(),
		Pair:           pair,
		Size:           size,
		EntryPrice:     price,
		IsLong:         isLong,
		EntryTime:      now,
		StopLossFrac:   cfg.StopLoss,
		TakeProfitFrac: cfg.TakeProfit,
		CurrentPrice:   price,
		Status:         domain.PositionOpen,
	}
	if isLong {
		pos.StopLossPrice = price * (1 - cfg.StopLoss)
		pos.TakeProfitAt = price * (1 + cfg.TakeProfit)
	} else {
		pos.StopLossPrice = price * (1 + cfg.StopLoss)
		pos.TakeProfitAt = price * (1 - cfg.TakeProfit)
	}

	e.mu.Lock()
	e.acct.positions[pair] = pos
	trade := e.recordTradeLocked(pair, signal, size, price, result)
	e.mu.Unlock()

	e.logger.Info("Position opened",
		zap.String("pair", pair),
		zap.Bool("long", isLong),
		zap.Float64("size", size),
		zap.Float64("entry", price),
		zap.String("venue", result.Venue))

	e.persistTrade(trade)
	return nil
}

// closePosition executes the opposite-side trade for the position and, on
// success, records realized P&L and removes it from the open set. On
// execution failure the position stays open; the next cycle retries
// naturally.
func (e *TradingEngine) closePosition(ctx context.Context, pos *domain.Position, exitPrice float64, reason string, slippage float64) error {
	base, quote, err := domain.SplitPair(pos.Pair)
	if err != nil {
		return err
	}

	signal := domain.SignalSell
	tokenIn, tokenOut := base, quote
	amountIn := pos.Size
	if !pos.IsLong {
		// Closing a short buys the base back with the quote token.
		signal = domain.SignalBuy
		tokenIn, tokenOut = quote, base
		amountIn = pos.Size * exitPrice
	}

	best, err := e.aggregator.BestQuote(ctx, tokenIn, tokenOut, amountIn)
	if err != nil {
		return fmt.Errorf("quoting close of %s: %w", pos.Pair, err)
	}

	result := e.aggregator.Execute(ctx, best, e.signer, slippage)
	if !result.Success {
		return fmt.Errorf("close execution on %s failed: %s", result.Venue, result.Error)
	}

	now := e.timeNow()

	e.mu.Lock()
	pos.CurrentPrice = exitPrice
	pos.ExitPrice = exitPrice
	pos.ExitTime = now
	pos.RealizedPnL = pos.PnLAt(exitPrice)
	pos.UnrealizedPnL = 0
	pos.Status = domain.PositionClosed
	delete(e.acct.positions, pos.Pair)
	trade := e.recordTradeLocked(pos.Pair, signal, pos.Size, exitPrice, result)
	e.mu.Unlock()

	e.logger.Info("Position closed",
		zap.String("pair", pos.Pair),
		zap.Bool("long", pos.IsLong),
		zap.String("reason", reason),
		zap.Float64("exit", exitPrice),
		zap.Float64("realized_pnl", pos.RealizedPnL))

	e.persistTrade(trade)
	e.persistClosed(&domain.ClosedPosition{
		PositionID:  pos.ID,
		Pair:        pos.Pair,
		IsLong:      pos.IsLong,
		Size:        pos.Size,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exitPrice,
		RealizedPnL: pos.RealizedPnL,
		Reason:      reason,
		OpenedAt:    pos.EntryTime,
		ClosedAt:    now,
	})
	return nil
}

// sweepExits refreshes prices of all open positions and closes any that hit
// their stop-loss or take-profit. Runs after pair analysis so it sees a
// settled account snapshot.
func (e *TradingEngine) sweepExits(ctx context.Context) {
	e.mu.Lock()
	open := make([]*domain.Position, 0, len(e.acct.positions))
	for _, p := range e.acct.positions {
		open = append(open, p)
	}
	slippage := e.cfg.Slippage
	e.mu.Unlock()

	for _, pos := range open {
		priceCtx, cancel := context.WithTimeout(ctx, marketDataTimeout)
		price, err := e.marketData.GetCurrentPrice(priceCtx, pos.Pair)
		cancel()
		if err != nil {
			e.logger.Warn("Price refresh failed", zap.String("pair", pos.Pair), zap.Error(err))
			continue
		}

		e.mu.Lock()
		pos.CurrentPrice = price
		pos.UnrealizedPnL = pos.PnLAt(price)
		e.mu.Unlock()

		stopHit := ShouldStopLoss(price, pos.EntryPrice, pos.StopLossFrac, pos.IsLong)
		takeHit := ShouldTakeProfit(price, pos.EntryPrice, pos.TakeProfitFrac, pos.IsLong)
		if !stopHit && !takeHit {
			continue
		}

		reason := "take_profit"
		if stopHit {
			reason = "stop_loss"
		}
		if err := e.closePosition(ctx, pos, price, reason, slippage); err != nil {
			e.logger.Error("Exit close failed", zap.String("pair", pos.Pair), zap.Error(err))
		}
	}
}

// recordTradeLocked appends a trade record and applies the single-asset
// balance approximation: buys spend the quote balance, sells credit it.
// Caller holds e.mu.
func (e *TradingEngine) recordTradeLocked(pair string, signal domain.Signal, size, price float64, result *domain.ExecutionResult) *domain.Trade {
	trade := domain.Trade{
		ID:        uuid.NewString(),
		Pair:      pair,
		Signal:    signal,
		Size:      size,
		Price:     price,
		Timestamp: e.timeNow(),
		Venue:     result.Venue,
		TxRef:     result.TxRef,
	}
	e.acct.trades = append(e.acct.trades, trade)

	if signal == domain.SignalBuy {
		e.acct.balance -= size * price
	} else {
		e.acct.balance += size * price
	}
	return &trade
}

func (e *TradingEngine) notePairFailure(pair string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failStreak[pair]++
}

func (e *TradingEngine) notePairSuccess(pair string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failStreak[pair] = 0
}

func (e *TradingEngine) persistTrade(trade *domain.Trade) {
	if e.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := e.repo.SaveTrade(ctx, trade); err != nil {
		e.logger.Warn("Trade persistence failed", zap.String("trade_id", trade.ID), zap.Error(err))
	}
}

func (e *TradingEngine) persistClosed(closed *domain.ClosedPosition) {
	if e.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := e.repo.SaveClosedPosition(ctx, closed); err != nil {
		e.logger.Warn("Closed position persistence failed", zap.String("position_id", closed.PositionID), zap.Error(err))
	}
}

// UpdateConfiguration merges a partial update after validation. A changed
// cycle interval does not reschedule a running loop; restart to apply it.
func (e *TradingEngine) UpdateConfiguration(update domain.ConfigUpdate) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	merged, err := e.cfg.Apply(update)
	if err != nil {
		return err
	}

	if e.running && update.CycleInterval != nil && *update.CycleInterval != e.cfg.CycleInterval {
		e.logger.Warn("Cycle interval change takes effect after restart",
			zap.String("interval", string(*update.CycleInterval)))
	}

	e.cfg = merged
	e.logger.Info("Configuration updated")
	return nil
}

// Status reflects the last cycle outcome. It never fails.
func (e *TradingEngine) Status() EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	degraded := false
	for _, streak := range e.failStreak {
		if streak >= degradedStreak {
			degraded = true
			break
		}
	}

	return EngineStatus{
		Running:       e.running,
		Configuration: e.cfg,
		Account: AccountSummary{
			Balance:       e.acct.balance,
			OpenPositions: len(e.acct.positions),
			Trades:        len(e.acct.trades),
		},
		LastCycle: e.lastCycle,
		Degraded:  degraded,
		Timestamp: e.timeNow(),
	}
}

// TradeHistory returns the append-only trade log, oldest first.
func (e *TradingEngine) TradeHistory() []domain.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Trade(nil), e.acct.trades...)
}

// OpenPositions returns copies of all open positions, ordered by pair.
func (e *TradingEngine) OpenPositions() []domain.Position {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]domain.Position, 0, len(e.acct.positions))
	for _, p := range e.acct.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pair < out[j].Pair })
	return out
}
