package model

import "math"

// WeightEpsilon is the tolerance for the rubric weight-sum invariant.
const WeightEpsilon = 1e-6

// Dimension is one axis a report is scored on.
type Dimension struct {
	Name        string `json:"name"`        // Normalized: lowercase, underscores
	Description string `json:"description"` // What this dimension measures
}

// Criterion is one concrete check inside a dimension.
type Criterion struct {
	Text        string `json:"text"`                   // The criterion itself
	ScoreAnchor string `json:"score_anchor,omitempty"` // What a high vs low score looks like
}

// Rubric is the full scoring rubric derived for one task: ordered dimensions,
// criteria per dimension, and weights summing to 1.
type Rubric struct {
	TaskID     string                 `json:"task_id"`
	Dimensions []Dimension            `json:"dimensions"`
	Criteria   map[string][]Criterion `json:"criteria"`
	Weights    map[string]float64     `json:"weights"`
}

// WeightSum returns the total of all dimension weights.
func (r *Rubric) WeightSum() float64 {
	sum := 0.0
	for _, w := range r.Weights {
		sum += w
	}
	return sum
}

// WeightsNormalized reports whether the weight sum is within epsilon of 1.
func (r *Rubric) WeightsNormalized() bool {
	return math.Abs(r.WeightSum()-1.0) <= WeightEpsilon
}

// Dimension returns the dimension with the given name, if present.
func (r *Rubric) Dimension(name string) (Dimension, bool) {
	for _, d := range r.Dimensions {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}
