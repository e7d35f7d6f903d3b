package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dexflow/dexbot/internal/domain"
	"go.uber.org/zap"
)

// ErrNoLiquidity is returned when no configured venue produced a valid
// quote for a trade.
var ErrNoLiquidity = errors.New("no valid quote from any venue")

const (
	defaultQuoteTimeout  = 5 * time.Second
	executionDeadlineWin = 20 * time.Minute
)

// DEXAggregator fans a quote request out to every configured venue and
// routes execution to the one with the best net output.
type DEXAggregator struct {
	venues       []domain.Venue
	logger       *zap.Logger
	quoteTimeout time.Duration
	timeNow      func() time.Time // for testing
}

// BestVenueQuote pairs the selected venue with its winning quote.
type BestVenueQuote struct {
	Venue domain.Venue
	Quote *domain.Quote
}

func NewDEXAggregator(venues []domain.Venue, logger *zap.Logger) *DEXAggregator {
	return &DEXAggregator{
		venues:       venues,
		logger:       logger,
		quoteTimeout: defaultQuoteTimeout,
		timeNow:      time.Now,
	}
}

// BestQuote requests quotes from all venues concurrently and selects the one
// with the maximum amount out, ties broken by the lowest gas estimate.
// Venues that fail or time out are logged and skipped; the whole operation
// only fails when every venue does.
func (a *DEXAggregator) BestQuote(ctx context.Context, tokenIn, tokenOut string, amountIn float64) (*BestVenueQuote, error) {
	if amountIn <= 0 {
		return nil, fmt.Errorf("invalid amount in: %f", amountIn)
	}

	type result struct {
		venue domain.Venue
		quote *domain.Quote
	}

	results := make(chan result, len(a.venues))
	var wg sync.WaitGroup

	for _, v := range a.venues {
		wg.Add(1)
		go func(v domain.Venue) {
			defer wg.Done()

			// A slow venue must not hold up the rest of the cycle.
			quoteCtx, cancel := context.WithTimeout(ctx, a.quoteTimeout)
			defer cancel()

			quote, err := v.Quote(quoteCtx, tokenIn, tokenOut, amountIn)
			if err != nil {
				a.logger.Warn("Venue quote failed",
					zap.String("venue", v.ID()),
					zap.String("token_in", tokenIn),
					zap.String("token_out", tokenOut),
					zap.Error(err))
				return
			}
			results <- result{venue: v, quote: quote}
		}(v)
	}

	wg.Wait()
	close(results)

	var best *BestVenueQuote
	for r := range results {
		if best == nil || betterQuote(r.quote, best.Quote) {
			best = &BestVenueQuote{Venue: r.venue, Quote: r.quote}
		}
	}

	if best == nil {
		return nil, ErrNoLiquidity
	}

	a.logger.Debug("Best quote selected",
		zap.String("venue", best.Venue.ID()),
		zap.Float64("amount_in", best.Quote.AmountIn),
		zap.Float64("amount_out", best.Quote.AmountOut))
	return best, nil
}

// betterQuote reports whether a beats b: higher amount out wins, equal
// amounts fall back to the cheaper gas estimate.
func betterQuote(a, b *domain.Quote) bool {
	if a.AmountOut != b.AmountOut {
		return a.AmountOut > b.AmountOut
	}
	return a.GasEstimate < b.GasEstimate
}

// Execute dispatches the selected quote to its venue with the slippage floor
// and a fixed deadline window applied. Failures are reported in the result,
// not retried; retry policy belongs to the caller's next cycle.
func (a *DEXAggregator) Execute(ctx context.Context, best *BestVenueQuote, signer domain.Signer, slippage float64) *domain.ExecutionResult {
	minOut := best.Quote.AmountOut * (1 - slippage)
	deadline := a.timeNow().Add(executionDeadlineWin)

	result, err := best.Venue.Execute(ctx, best.Quote, signer, minOut, deadline)
	if err != nil {
		a.logger.Error("Trade execution failed",
			zap.String("venue", best.Venue.ID()),
			zap.Error(err))
		return &domain.ExecutionResult{
			Success:  false,
			Venue:    best.Venue.Name(),
			AmountIn: best.Quote.AmountIn,
			Error:    err.Error(),
		}
	}
	return result
}

// Venues lists the configured venues for the status surface.
func (a *DEXAggregator) Venues() []domain.VenueInfo {
	infos := make([]domain.VenueInfo, 0, len(a.venues))
	for _, v := range a.venues {
		infos = append(infos, domain.VenueInfo{
			ID:      v.ID(),
			Name:    v.Name(),
			FeeRate: v.FeeRate(),
		})
	}
	return infos
}
