package domain

// Belief tracks the observed success rate of a thought or rule.
// The score is Laplace-smoothed so it always lies strictly between 0 and 1.
type Belief struct {
	Pos float64 `json:"pos"`
	Neg float64 `json:"neg"`
}

// Score returns (pos+1)/(pos+neg+2).
func (b Belief) Score() float64 {
	return (b.Pos + 1) / (b.Pos + b.Neg + 2)
}

// Update returns the belief after one more observed outcome.
func (b Belief) Update(success bool) Belief {
	if success {
		b.Pos++
	} else {
		b.Neg++
	}
	return b
}
