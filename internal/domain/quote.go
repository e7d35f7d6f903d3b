package domain

// Quote is one venue's answer for a proposed swap. Quotes are ephemeral and
// never persisted.
type Quote struct {
	VenueID     string  `json:"venue_id"`
	AmountIn    float64 `json:"amount_in"`
	AmountOut   float64 `json:"amount_out"` // net of fee and modeled price impact
	Price       float64 `json:"price"`      // AmountOut / AmountIn
	FeeAmount   float64 `json:"fee_amount"`
	Impact      float64 `json:"impact"` // modeled price impact fraction
	GasEstimate int64   `json:"gas_estimate"`
	TokenIn     string  `json:"token_in"`
	TokenOut    string  `json:"token_out"`
}

// ExecutionResult reports a single execution attempt. Failed executions are
// surfaced, never retried by the aggregator.
type ExecutionResult struct {
	Success   bool    `json:"success"`
	TxRef     string  `json:"tx_ref,omitempty"`
	AmountIn  float64 `json:"amount_in"`
	AmountOut float64 `json:"amount_out"`
	Venue     string  `json:"venue"`
	GasUsed   int64   `json:"gas_used"`
	Error     string  `json:"error,omitempty"`
}

// VenueInfo describes a configured venue for the status surface.
type VenueInfo struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	FeeRate float64 `json:"fee_rate"`
}
