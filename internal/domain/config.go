package domain

import (
	"fmt"
	"strings"
)

// BotConfig is the runtime configuration of the trading engine.
// Changing CycleInterval while the bot is running does not reschedule an
// already started cycle loop; a restart is required.
type BotConfig struct {
	Strategy        Strategy      `json:"strategy" yaml:"strategy"`
	RiskLevel       RiskLevel     `json:"risk_level" yaml:"risk_level"`
	MaxPositionSize float64       `json:"max_position_size" yaml:"max_position_size"` // fraction of equity, (0,1]
	StopLoss        float64       `json:"stop_loss" yaml:"stop_loss"`                 // fractional distance from entry
	TakeProfit      float64       `json:"take_profit" yaml:"take_profit"`             // fractional distance from entry
	TradingPairs    []string      `json:"trading_pairs" yaml:"trading_pairs"`
	CycleInterval   CycleInterval `json:"cycle_interval" yaml:"cycle_interval"`
	Slippage        float64       `json:"slippage" yaml:"slippage"` // fractional tolerance, e.g. 0.005
}

// DefaultBotConfig mirrors the defaults the bot ships with.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		Strategy:        StrategyCombined,
		RiskLevel:       RiskMedium,
		MaxPositionSize: 0.1,
		StopLoss:        0.05,
		TakeProfit:      0.1,
		TradingPairs:    []string{"ETH/USDC", "BTC/USDC"},
		CycleInterval:   IntervalHigh,
		Slippage:        0.005,
	}
}

func (c BotConfig) Validate() error {
	if !c.Strategy.Valid() {
		return fmt.Errorf("invalid strategy: %q", c.Strategy)
	}
	if !c.RiskLevel.Valid() {
		return fmt.Errorf("invalid risk level: %q", c.RiskLevel)
	}
	if !c.CycleInterval.Valid() {
		return fmt.Errorf("invalid cycle interval: %q", c.CycleInterval)
	}
	if c.MaxPositionSize <= 0 || c.MaxPositionSize > 1 {
		return fmt.Errorf("max position size must be in (0,1], got %f", c.MaxPositionSize)
	}
	if c.StopLoss <= 0 || c.StopLoss >= 1 {
		return fmt.Errorf("stop loss must be in (0,1), got %f", c.StopLoss)
	}
	if c.TakeProfit <= 0 || c.TakeProfit >= 1 {
		return fmt.Errorf("take profit must be in (0,1), got %f", c.TakeProfit)
	}
	if c.Slippage < 0 || c.Slippage >= 1 {
		return fmt.Errorf("slippage must be in [0,1), got %f", c.Slippage)
	}
	if len(c.TradingPairs) == 0 {
		return fmt.Errorf("at least one trading pair is required")
	}
	for _, p := range c.TradingPairs {
		if _, _, err := SplitPair(p); err != nil {
			return err
		}
	}
	return nil
}

// ConfigUpdate is a typed partial update. Nil fields are left untouched.
type ConfigUpdate struct {
	Strategy        *Strategy      `json:"strategy,omitempty"`
	RiskLevel       *RiskLevel     `json:"risk_level,omitempty"`
	MaxPositionSize *float64       `json:"max_position_size,omitempty"`
	StopLoss        *float64       `json:"stop_loss,omitempty"`
	TakeProfit      *float64       `json:"take_profit,omitempty"`
	TradingPairs    []string       `json:"trading_pairs,omitempty"`
	CycleInterval   *CycleInterval `json:"cycle_interval,omitempty"`
	Slippage        *float64       `json:"slippage,omitempty"`
}

// Apply merges the update into c and validates the result. The receiver is
// untouched on validation failure.
func (c BotConfig) Apply(u ConfigUpdate) (BotConfig, error) {
	merged := c
	if u.Strategy != nil {
		merged.Strategy = *u.Strategy
	}
	if u.RiskLevel != nil {
		merged.RiskLevel = *u.RiskLevel
	}
	if u.MaxPositionSize != nil {
		merged.MaxPositionSize = *u.MaxPositionSize
	}
	if u.StopLoss != nil {
		merged.StopLoss = *u.StopLoss
	}
	if u.TakeProfit != nil {
		merged.TakeProfit = *u.TakeProfit
	}
	if u.TradingPairs != nil {
		merged.TradingPairs = append([]string(nil), u.TradingPairs...)
	}
	if u.CycleInterval != nil {
		merged.CycleInterval = *u.CycleInterval
	}
	if u.Slippage != nil {
		merged.Slippage = *u.Slippage
	}
	if err := merged.Validate(); err != nil {
		return c, err
	}
	return merged, nil
}

// SplitPair splits "ETH/USDC" into base and quote symbols.
func SplitPair(pair string) (base, quote string, err error) {
	parts := strings.Split(pair, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid trading pair: %q", pair)
	}
	return parts[0], parts[1], nil
}
