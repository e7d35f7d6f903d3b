package usecase

import (
	"fmt"

	"github.com/dexflow/dexbot/internal/domain"
)

// PositionSize converts equity, configured risk and stop-loss distance into
// a bounded position size in base units. A non-positive stop-loss distance
// is a configuration error: size resolves to zero and the cycle skips the
// trade instead of crashing.
func PositionSize(equity float64, level domain.RiskLevel, maxPositionSize, currentPrice, stopLoss float64) (float64, error) {
	if currentPrice <= 0 {
		return 0, fmt.Errorf("invalid current price: %f", currentPrice)
	}

	stopLossDistance := currentPrice * stopLoss
	if stopLossDistance <= 0 {
		return 0, fmt.Errorf("invalid stop loss distance: %f", stopLossDistance)
	}

	riskAmount := equity * maxPositionSize * level.Fraction()
	size := riskAmount / stopLossDistance * currentPrice

	maxSize := equity * maxPositionSize / currentPrice
	if size > maxSize {
		size = maxSize
	}
	return size, nil
}

// ShouldStopLoss reports whether the position has hit its stop-loss distance
// from entry. Short positions use the mirrored inequality.
func ShouldStopLoss(currentPrice, entryPrice, stopLoss float64, isLong bool) bool {
	if isLong {
		return currentPrice <= entryPrice*(1-stopLoss)
	}
	return currentPrice >= entryPrice*(1+stopLoss)
}

// ShouldTakeProfit reports whether the position has reached its take-profit
// target.
func ShouldTakeProfit(currentPrice, entryPrice, takeProfit float64, isLong bool) bool {
	if isLong {
		return currentPrice >= entryPrice*(1+takeProfit)
	}
	return currentPrice <= entryPrice*(1-takeProfit)
}
