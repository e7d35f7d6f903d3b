package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dexflow/dexbot/internal/domain"
)

// Config describes one venue's static cost model. Fee and impact are
// placeholders for live liquidity data; a production deployment would quote
// the venue's router contract instead.
type Config struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Router      string  `yaml:"router"`
	Fee         float64 `yaml:"fee"`    // e.g. 0.003 for 0.30%
	Impact      float64 `yaml:"impact"` // modeled price impact fraction
	GasEstimate int64   `yaml:"gas_estimate"`
}

// DefaultConfigs mirrors the venues the bot ships with.
func DefaultConfigs() []Config {
	return []Config{
		{ID: "uniswap", Name: "Uniswap V3", Router: "0xE592427A0AEce92De3Edee1F18E0157C05861564", Fee: 0.003, Impact: 0.002, GasEstimate: 150000},
		{ID: "sushiswap", Name: "SushiSwap", Router: "0xd9e1cE17f2641f24aE83637ab66a2cca9C227d23", Fee: 0.003, Impact: 0.0025, GasEstimate: 140000},
		{ID: "pancakeswap", Name: "PancakeSwap", Router: "0x13f4EA83D0bd40E75C8222255bc855a974A60A27", Fee: 0.0025, Impact: 0.0015, GasEstimate: 130000},
		{ID: "curve", Name: "Curve Finance", Router: "0x8038C01A0390a8c547446a0b2c18990c55b3c59d", Fee: 0.0004, Impact: 0.0005, GasEstimate: 120000},
	}
}

// StaticVenue quotes swaps from a static fee and price-impact model and
// executes them through an injected signer.
type StaticVenue struct {
	cfg Config
}

func NewStaticVenue(cfg Config) *StaticVenue {
	return &StaticVenue{cfg: cfg}
}

// FromConfigs builds the venue set, falling back to the defaults when none
// are configured.
func FromConfigs(configs []Config) []domain.Venue {
	if len(configs) == 0 {
		configs = DefaultConfigs()
	}
	venues := make([]domain.Venue, 0, len(configs))
	for _, c := range configs {
		venues = append(venues, NewStaticVenue(c))
	}
	return venues
}

func (v *StaticVenue) ID() string       { return v.cfg.ID }
func (v *StaticVenue) Name() string     { return v.cfg.Name }
func (v *StaticVenue) FeeRate() float64 { return v.cfg.Fee }

func (v *StaticVenue) Quote(ctx context.Context, tokenIn, tokenOut string, amountIn float64) (*domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if amountIn <= 0 {
		return nil, fmt.Errorf("%s: invalid amount in: %f", v.cfg.ID, amountIn)
	}

	fee := amountIn * v.cfg.Fee
	amountOut := (amountIn - fee) * (1 - v.cfg.Impact)

	return &domain.Quote{
		VenueID:     v.cfg.ID,
		AmountIn:    amountIn,
		AmountOut:   amountOut,
		Price:       amountOut / amountIn,
		FeeAmount:   fee,
		Impact:      v.cfg.Impact,
		GasEstimate: v.cfg.GasEstimate,
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
	}, nil
}

// preparedTx is the payload handed to the signer. Field order is fixed so
// signing is deterministic for a given trade.
type preparedTx struct {
	Router    string  `json:"router"`
	TokenIn   string  `json:"token_in"`
	TokenOut  string  `json:"token_out"`
	AmountIn  float64 `json:"amount_in"`
	MinOut    float64 `json:"min_out"`
	Deadline  int64   `json:"deadline"`
	VenueID   string  `json:"venue_id"`
}

func (v *StaticVenue) Execute(ctx context.Context, quote *domain.Quote, signer domain.Signer, minOut float64, deadline time.Time) (*domain.ExecutionResult, error) {
	if quote.AmountOut < minOut {
		return nil, fmt.Errorf("%s: quote %f below min out %f", v.cfg.ID, quote.AmountOut, minOut)
	}

	payload, err := json.Marshal(preparedTx{
		Router:   v.cfg.Router,
		TokenIn:  quote.TokenIn,
		TokenOut: quote.TokenOut,
		AmountIn: quote.AmountIn,
		MinOut:   minOut,
		Deadline: deadline.Unix(),
		VenueID:  v.cfg.ID,
	})
	if err != nil {
		return nil, err
	}

	txRef, err := signer.Sign(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: signing: %w", v.cfg.ID, err)
	}

	return &domain.ExecutionResult{
		Success:   true,
		TxRef:     txRef,
		AmountIn:  quote.AmountIn,
		AmountOut: quote.AmountOut,
		Venue:     v.cfg.Name,
		GasUsed:   quote.GasEstimate,
	}, nil
}
