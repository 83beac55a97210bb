package domain

// Holding is one investment position.
type Holding struct {
	Symbol             string  `json:"symbol"`
	Company            string  `json:"company"`
	Shares             float64 `json:"shares"`
	CostBasis          float64 `json:"total_cost"`
	MarketValue        float64 `json:"market_value"`
	CurrentPrice       float64 `json:"current_price"`
	UnrealizedGainLoss float64 `json:"unrealized_gain_loss"`
	PercentageChange   float64 `json:"percentage_change"`
}

// Recompute derives gain/loss and percentage change from market value and cost basis.
func (h *Holding) Recompute() {
	h.UnrealizedGainLoss = h.MarketValue - h.CostBasis
	if h.CostBasis != 0 {
		h.PercentageChange = h.UnrealizedGainLoss / h.CostBasis * 100
	} else {
		h.PercentageChange = 0
	}
}

// TotalMarketValue sums market value across holdings.
func TotalMarketValue(holdings []Holding) float64 {
	var total float64
	for _, h := range holdings {
		total += h.MarketValue
	}
	return total
}

// TotalCostBasis sums cost basis across holdings.
func TotalCostBasis(holdings []Holding) float64 {
	var total float64
	for _, h := range holdings {
		total += h.CostBasis
	}
	return total
}
