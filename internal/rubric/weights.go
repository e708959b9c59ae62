package rubric

import (
	"fmt"
	"math"
	"sort"
)

// NormalizeWeights scales raw positive weight signals so they sum to exactly
// 1.0 at two-decimal granularity, using largest-remainder rounding so the
// rounded parts never drift off the sum. Every dimension keeps a weight of
// at least 0.01. Ties in remainder break by name so the result is
// deterministic.
func NormalizeWeights(raw map[string]float64) (map[string]float64, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("no weights to normalize")
	}

	total := 0.0
	for name, w := range raw {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("weight for %q is not a number", name)
		}
		if w < 0 {
			return nil, fmt.Errorf("weight for %q is negative", name)
		}
		total += w
	}
	if total <= 0 {
		return nil, fmt.Errorf("weights sum to zero")
	}
	if len(raw) > 100 {
		return nil, fmt.Errorf("too many dimensions (%d) for two-decimal weights", len(raw))
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	// Work in integer units of 0.01.
	type share struct {
		name      string
		units     int
		remainder float64
	}
	shares := make([]share, len(names))
	used := 0
	for i, name := range names {
		exact := raw[name] / total * 100
		units := int(math.Floor(exact))
		shares[i] = share{name: name, units: units, remainder: exact - float64(units)}
		used += units
	}

	// Hand the leftover units to the largest remainders.
	leftover := 100 - used
	order := make([]int, len(shares))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if shares[order[a]].remainder != shares[order[b]].remainder {
			return shares[order[a]].remainder > shares[order[b]].remainder
		}
		return shares[order[a]].name < shares[order[b]].name
	})
	for i := 0; i < leftover; i++ {
		shares[order[i%len(order)]].units++
	}

	// No dimension may drop to zero; borrow from the largest.
	for i := range shares {
		for shares[i].units == 0 {
			maxIdx := 0
			for j := range shares {
				if shares[j].units > shares[maxIdx].units {
					maxIdx = j
				}
			}
			if shares[maxIdx].units <= 1 {
				return nil, fmt.Errorf("cannot keep all weights positive")
			}
			shares[maxIdx].units--
			shares[i].units++
		}
	}

	result := make(map[string]float64, len(shares))
	for _, s := range shares {
		result[s.name] = float64(s.units) / 100
	}
	return result, nil
}
