package usecase

import (
	"github.com/dexflow/dexbot/internal/domain"
)

// SignalFor maps a price series to a trading decision under the configured
// strategy. Series shorter than domain.MinSeriesLen always yield HOLD.
func SignalFor(candles []domain.Candle, strategy domain.Strategy) domain.Signal {
	if len(candles) < domain.MinSeriesLen {
		return domain.SignalHold
	}

	ind := ComputeIndicators(candles)
	lastClose := candles[len(candles)-1].Close

	switch strategy {
	case domain.StrategyMeanReversion:
		return MeanReversionSignal(lastClose, ind)
	case domain.StrategyMomentum:
		return MomentumSignal(ind)
	case domain.StrategyTrend:
		return TrendSignal(Closes(candles))
	default:
		return CombinedSignal(lastClose, ind)
	}
}

// MeanReversionSignal buys when price drops below the lower Bollinger band
// while still above the mean, sells in the mirrored case. Missing band data
// is not an error, just HOLD.
func MeanReversionSignal(lastClose float64, ind IndicatorSet) domain.Signal {
	if len(ind.Bollinger) == 0 || len(ind.SMA) == 0 {
		return domain.SignalHold
	}

	bb := ind.Bollinger[len(ind.Bollinger)-1]
	ma := ind.SMA[len(ind.SMA)-1]

	if lastClose < bb.Lower && lastClose > ma {
		return domain.SignalBuy
	}
	if lastClose > bb.Upper && lastClose < ma {
		return domain.SignalSell
	}
	return domain.SignalHold
}

// MomentumSignal buys oversold RSI with a bullish MACD crossover, sells
// overbought RSI with a bearish one.
func MomentumSignal(ind IndicatorSet) domain.Signal {
	if len(ind.RSI) == 0 || len(ind.MACD) == 0 {
		return domain.SignalHold
	}

	rsi := ind.RSI[len(ind.RSI)-1]
	macd := ind.MACD[len(ind.MACD)-1]

	if rsi < 30 && macd.MACD > macd.Signal {
		return domain.SignalBuy
	}
	if rsi > 70 && macd.MACD < macd.Signal {
		return domain.SignalSell
	}
	return domain.SignalHold
}

// TrendSignal is the "neural_network" strategy surrogate: a majority vote of
// up vs down ticks over the last five closes. It is a placeholder heuristic,
// not a forecaster.
func TrendSignal(closes []float64) domain.Signal {
	if len(closes) < 2 {
		return domain.SignalHold
	}

	recent := closes
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}

	var up, down int
	for i := 1; i < len(recent); i++ {
		switch {
		case recent[i] > recent[i-1]:
			up++
		case recent[i] < recent[i-1]:
			down++
		}
	}

	if up > down {
		return domain.SignalBuy
	}
	if down > up {
		return domain.SignalSell
	}
	return domain.SignalHold
}

// CombinedSignal runs mean reversion and momentum together. Agreement wins
// outright; otherwise a non-HOLD mean reversion signal takes priority, then
// momentum.
func CombinedSignal(lastClose float64, ind IndicatorSet) domain.Signal {
	mr := MeanReversionSignal(lastClose, ind)
	mom := MomentumSignal(ind)

	if mr == mom {
		return mr
	}
	if mr != domain.SignalHold {
		return mr
	}
	return mom
}
