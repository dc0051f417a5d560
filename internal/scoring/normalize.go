package scoring

import "math"

// Range is the {min, max} window a raw criterion is normalized against
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Normalize maps v linearly onto [0,1], clamping values outside the range
// to the nearest boundary. A degenerate range normalizes everything to 0.
func (r Range) Normalize(v float64) float64 {
	if r.Max <= r.Min || math.IsNaN(v) {
		return 0
	}
	clamped := math.Max(r.Min, math.Min(r.Max, v))
	return (clamped - r.Min) / (r.Max - r.Min)
}

// Ranges holds the normalization window of every numeric criterion
type Ranges struct {
	Price       Range `json:"price_eur"`
	Duration    Range `json:"total_hours"`
	Connections Range `json:"connections"`
}

// DefaultRanges returns the standard normalization windows
func DefaultRanges() Ranges {
	return Ranges{
		Price:       Range{Min: 50, Max: 2000},
		Duration:    Range{Min: 1, Max: 48},
		Connections: Range{Min: 0, Max: 5},
	}
}

const (
	fullBagCount  = 3.0
	fullBagWeight = 30.0
)

// BaggageAdequacy rates an allowance in [0,1]: three bags of 30 kg or more
// is fully adequate
func BaggageAdequacy(bags int, perBagKG float64) float64 {
	bagScore := math.Min(float64(bags)/fullBagCount, 1)
	weightScore := math.Min(perBagKG/fullBagWeight, 1)
	return (math.Max(bagScore, 0) + math.Max(weightScore, 0)) / 2
}

// CarrierPreference rates carrier against an ordered preference list.
// The first preferred carrier scores 1, later ones less, others 0.
func CarrierPreference(carrier string, preferred []string) float64 {
	c := normalizeCarrier(carrier)
	if c == "" {
		return 0
	}
	for i, p := range preferred {
		if normalizeCarrier(p) == c {
			return 1 - float64(i)/float64(len(preferred))
		}
	}
	return 0
}
