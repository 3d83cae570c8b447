package metrics

import (
	"math"

	"github.com/SarahQiong/conformal-classification/errors"
)

// Softmax converts logits to probabilities after dividing by the temperature.
// A temperature of 1 is the plain softmax; temperatures above 1 flatten the
// distribution, which is how a temperature-scaled classifier is calibrated.
// Non-positive temperatures are rejected.
func Softmax(logits [][]float32, temperature float64) ([][]float32, error) {
	if temperature <= 0 {
		return nil, errors.Errorf("temperature must be positive, got %g", temperature)
	}

	out := make([][]float32, len(logits))
	for i, row := range logits {
		scaled := make([]float64, len(row))
		maxVal := math.Inf(-1)
		for j, v := range row {
			scaled[j] = float64(v) / temperature
			if scaled[j] > maxVal {
				maxVal = scaled[j]
			}
		}

		// subtract the max for numerical stability
		var sum float64
		exps := make([]float64, len(row))
		for j, v := range scaled {
			exps[j] = math.Exp(v - maxVal)
			sum += exps[j]
		}

		probs := make([]float32, len(row))
		for j, e := range exps {
			probs[j] = float32(e / sum)
		}
		out[i] = probs
	}
	return out, nil
}

// ThresholdSets builds one prediction set per row by taking classes in
// descending score order until their cumulative score reaches tau. Every set
// contains at least the top-scoring class.
func ThresholdSets(scores [][]float32, tau float64) [][]bool {
	indices, _, cumsum := SortSum(scores)

	sets := make([][]bool, len(scores))
	for i := range scores {
		set := make([]bool, len(scores[i]))
		for j, class := range indices[i] {
			set[class] = true
			if float64(cumsum[i][j]) >= tau {
				break
			}
		}
		sets[i] = set
	}
	return sets
}
