package scoring

import "math"

// Weights sets the influence of each criterion in the combined score
type Weights struct {
	Price       float64 `json:"price"`
	Duration    float64 `json:"duration"`
	Connections float64 `json:"connections"`
	Baggage     float64 `json:"baggage"`
	Carrier     float64 `json:"carrier"`
}

// DefaultWeights favours price, then duration, then connections
func DefaultWeights() Weights {
	return Weights{Price: 0.4, Duration: 0.3, Connections: 0.2, Baggage: 0.05, Carrier: 0.05}
}

// TimeCostWeights maps the request's time/cost split onto duration and price
func TimeCostWeights(timeWeight, costWeight float64) Weights {
	return Weights{Duration: timeWeight, Price: costWeight}
}

// Sum returns the total of all weights
func (w Weights) Sum() float64 {
	return w.Price + w.Duration + w.Connections + w.Baggage + w.Carrier
}

// Normalized scales the weights to sum to 1
func (w Weights) Normalized() (Weights, error) {
	for name, v := range map[string]float64{
		"price":       w.Price,
		"duration":    w.Duration,
		"connections": w.Connections,
		"baggage":     w.Baggage,
		"carrier":     w.Carrier,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return Weights{}, &ParamError{Param: "weights." + name, Reason: "must be a non-negative number"}
		}
	}

	total := w.Sum()
	if total <= 0 {
		return Weights{}, &ParamError{Param: "weights", Reason: "at least one weight must be positive"}
	}

	return Weights{
		Price:       w.Price / total,
		Duration:    w.Duration / total,
		Connections: w.Connections / total,
		Baggage:     w.Baggage / total,
		Carrier:     w.Carrier / total,
	}, nil
}
