package domain

import "time"

type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Opposite returns the closing signal for a position opened with s.
func (s Signal) Opposite() Signal {
	switch s {
	case SignalBuy:
		return SignalSell
	case SignalSell:
		return SignalBuy
	}
	return SignalHold
}

type Strategy string

const (
	StrategyMeanReversion Strategy = "mean_reversion"
	StrategyMomentum      Strategy = "momentum"
	// StrategyTrend is the "neural_network" option of the configuration
	// surface. It is NOT a trained model: it counts up/down ticks over the
	// last five closes and follows the majority. Placeholder heuristic only.
	StrategyTrend    Strategy = "neural_network"
	StrategyCombined Strategy = "combined"
)

func (s Strategy) Valid() bool {
	switch s {
	case StrategyMeanReversion, StrategyMomentum, StrategyTrend, StrategyCombined:
		return true
	}
	return false
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Fraction returns the risk-per-trade fraction of equity for the level.
func (r RiskLevel) Fraction() float64 {
	switch r {
	case RiskLow:
		return 0.01
	case RiskHigh:
		return 0.05
	default:
		return 0.02
	}
}

func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// CycleInterval names how often the trading cycle runs.
type CycleInterval string

const (
	IntervalLow    CycleInterval = "low"    // every 30 minutes
	IntervalMedium CycleInterval = "medium" // every 10 minutes
	IntervalHigh   CycleInterval = "high"   // every 5 minutes
)

func (c CycleInterval) Duration() time.Duration {
	switch c {
	case IntervalLow:
		return 30 * time.Minute
	case IntervalHigh:
		return 5 * time.Minute
	default:
		return 10 * time.Minute
	}
}

func (c CycleInterval) Valid() bool {
	switch c {
	case IntervalLow, IntervalMedium, IntervalHigh:
		return true
	}
	return false
}
