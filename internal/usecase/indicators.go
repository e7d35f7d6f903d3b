package usecase

import (
	"math"

	"github.com/dexflow/dexbot/internal/domain"
)

// Indicator functions never fail on short input; they return empty results
// and the strategy layer treats that as HOLD.

type MACDPoint struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

type Band struct {
	Middle float64
	Upper  float64
	Lower  float64
}

type IndicatorSet struct {
	SMA       []float64
	RSI       []float64
	MACD      []MACDPoint
	Bollinger []Band
	StochK    float64
	StochD    float64
	HasStoch  bool
}

func Closes(candles []domain.Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}

// ComputeIndicators calculates the standard indicator set over the series:
// SMA(20), RSI(14), MACD(12,26,9), Bollinger(20, 2σ) and the simplified
// Stochastic %K over the last 14 candles.
func ComputeIndicators(candles []domain.Candle) IndicatorSet {
	closes := Closes(candles)

	set := IndicatorSet{
		SMA:       SMA(closes, 20),
		RSI:       RSI(closes, 14),
		MACD:      MACD(closes, 12, 26, 9),
		Bollinger: BollingerBands(closes, 20, 2),
	}
	set.StochK, set.StochD, set.HasStoch = Stochastic(candles, 14)
	return set
}

// SMA returns the simple moving average series. The first value covers
// values[0:period]; an input shorter than period yields an empty result.
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	out := make([]float64, 0, len(values)-period+1)
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}

// EMA returns the exponential moving average series, seeded with the SMA of
// the first period values.
func EMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	alpha := 2.0 / float64(period+1)

	var seed float64
	for _, v := range values[:period] {
		seed += v
	}
	seed /= float64(period)

	out := make([]float64, 0, len(values)-period+1)
	out = append(out, seed)
	prev := seed
	for _, v := range values[period:] {
		prev = v*alpha + prev*(1-alpha)
		out = append(out, prev)
	}
	return out
}

// RSI returns the relative strength index using Wilder smoothing. The first
// value covers the first period+1 closes.
func RSI(values []float64, period int) []float64 {
	if period <= 0 || len(values) <= period {
		return nil
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		diff := values[i] - values[i-1]
		if diff > 0 {
			avgGain += diff
		} else {
			avgLoss -= diff
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	out := make([]float64, 0, len(values)-period)
	out = append(out, rsiValue(avgGain, avgLoss))

	for i := period + 1; i < len(values); i++ {
		diff := values[i] - values[i-1]
		var gain, loss float64
		if diff > 0 {
			gain = diff
		} else {
			loss = -diff
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out = append(out, rsiValue(avgGain, avgLoss))
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns the MACD line, signal line and histogram. Points are emitted
// only once both lines are defined, so the result needs at least
// slow+signal-1 closes.
func MACD(values []float64, fast, slow, signal int) []MACDPoint {
	if len(values) < slow+signal-1 {
		return nil
	}

	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)

	// Align the fast series to the slow one; the line starts at index slow-1.
	offset := slow - fast
	line := make([]float64, len(slowEMA))
	for i := range slowEMA {
		line[i] = fastEMA[i+offset] - slowEMA[i]
	}

	signalLine := EMA(line, signal)
	out := make([]MACDPoint, len(signalLine))
	lineOffset := len(line) - len(signalLine)
	for i := range signalLine {
		m := line[i+lineOffset]
		out[i] = MACDPoint{
			MACD:      m,
			Signal:    signalLine[i],
			Histogram: m - signalLine[i],
		}
	}
	return out
}

// BollingerBands returns middle/upper/lower bands using a population
// standard deviation over each period window.
func BollingerBands(values []float64, period int, stdDev float64) []Band {
	if period <= 0 || len(values) < period {
		return nil
	}

	out := make([]Band, 0, len(values)-period+1)
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]

		var mean float64
		for _, v := range window {
			mean += v
		}
		mean /= float64(period)

		var variance float64
		for _, v := range window {
			variance += (v - mean) * (v - mean)
		}
		sd := math.Sqrt(variance / float64(period))

		out = append(out, Band{
			Middle: mean,
			Upper:  mean + stdDev*sd,
			Lower:  mean - stdDev*sd,
		})
	}
	return out
}

// Stochastic returns the %K of the last kPeriod candles. %D is reported
// equal to %K: a real implementation would smooth %K with a short moving
// average, this one deliberately does not.
func Stochastic(candles []domain.Candle, kPeriod int) (k, d float64, ok bool) {
	if kPeriod <= 0 || len(candles) < kPeriod {
		return 0, 0, false
	}

	window := candles[len(candles)-kPeriod:]
	highest := window[0].High
	lowest := window[0].Low
	for _, c := range window[1:] {
		if c.High > highest {
			highest = c.High
		}
		if c.Low < lowest {
			lowest = c.Low
		}
	}

	if highest == lowest {
		return 0, 0, false
	}

	k = (candles[len(candles)-1].Close - lowest) / (highest - lowest) * 100
	return k, k, true
}
