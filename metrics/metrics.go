package metrics

import (
	"sort"

	"github.com/SarahQiong/conformal-classification/errors"
	"github.com/montanaflynn/stats"
)

// SortSum returns, per row of scores, the class indices sorted by descending
// score, the scores in that order, and their running cumulative sum. Ties are
// broken toward the lower class index. This is the building block for
// threshold-based prediction-set construction.
func SortSum(scores [][]float32) (indices [][]int, ordered [][]float32, cumsum [][]float32) {
	indices = make([][]int, len(scores))
	ordered = make([][]float32, len(scores))
	cumsum = make([][]float32, len(scores))

	for i, row := range scores {
		ix := make([]int, len(row))
		for j := range ix {
			ix[j] = j
		}
		// stable over ascending indices, so equal scores keep index order
		sort.SliceStable(ix, func(a, b int) bool {
			return row[ix[a]] > row[ix[b]]
		})

		ord := make([]float32, len(row))
		cs := make([]float32, len(row))
		var sum float32
		for j, k := range ix {
			ord[j] = row[k]
			sum += row[k]
			cs[j] = sum
		}

		indices[i] = ix
		ordered[i] = ord
		cumsum[i] = cs
	}
	return indices, ordered, cumsum
}

// Accuracy computes, for each k in topk, the fraction of examples whose true
// label is among the k highest-scoring classes, as a percentage in [0, 100].
func Accuracy(output [][]float32, targets []int64, topk ...int) ([]float64, error) {
	if len(output) != len(targets) {
		return nil, errors.Errorf("output/targets length mismatch: %d != %d", len(output), len(targets))
	}
	if len(output) == 0 {
		return nil, errors.New("no examples")
	}
	if len(topk) == 0 {
		topk = []int{1}
	}

	maxk := 0
	for _, k := range topk {
		if k <= 0 {
			return nil, errors.Errorf("invalid k: %d", k)
		}
		if k > maxk {
			maxk = k
		}
	}
	if maxk > len(output[0]) {
		return nil, errors.Errorf("k %d exceeds %d classes", maxk, len(output[0]))
	}

	indices, _, _ := SortSum(output)

	// rank of the true label among the top maxk predictions, or -1
	ranks := make([]int, len(targets))
	for i, ix := range indices {
		ranks[i] = -1
		for r := 0; r < maxk; r++ {
			if int64(ix[r]) == targets[i] {
				ranks[i] = r
				break
			}
		}
	}

	res := make([]float64, len(topk))
	for ki, k := range topk {
		var correct int
		for _, r := range ranks {
			if r >= 0 && r < k {
				correct++
			}
		}
		res[ki] = 100.0 * float64(correct) / float64(len(targets))
	}
	return res, nil
}

// Distribution summarizes the per-class coverage or size values observed on a
// validation set.
type Distribution struct {
	Min    float64
	Max    float64
	Median float64
}

// Summary is the output of CoverageSize.
type Summary struct {
	Coverage float64
	AvgSize  float64

	// per-class distributions, over observed classes only
	ClassCoverage Distribution
	ClassSize     Distribution
}

// CoverageSize scores prediction sets against true labels: overall coverage
// (fraction of examples whose set contains the true label), average set
// cardinality, and min/max/median of per-class coverage and size. Per-class
// statistics are computed over observed classes only — a class with no
// examples in targets contributes nothing, so they are never NaN.
func CoverageSize(sets [][]bool, targets []int64) (Summary, error) {
	if len(sets) != len(targets) {
		return Summary{}, errors.Errorf("sets/targets length mismatch: %d != %d", len(sets), len(targets))
	}
	if len(sets) == 0 {
		return Summary{}, errors.New("no examples")
	}

	numClasses := len(sets[0])
	var covered, totalSize int
	classCovered := make(map[int64]int)
	classSize := make(map[int64]int)
	classCount := make(map[int64]int)

	for i, set := range sets {
		if len(set) != numClasses {
			return Summary{}, errors.Errorf("row %d has %d classes, expected %d", i, len(set), numClasses)
		}
		target := targets[i]
		if target < 0 || target >= int64(numClasses) {
			return Summary{}, errors.Errorf("label %d at row %d outside [0, %d)", target, i, numClasses)
		}

		size := 0
		for _, in := range set {
			if in {
				size++
			}
		}
		totalSize += size

		classCount[target]++
		classSize[target] += size
		if set[target] {
			covered++
			classCovered[target]++
		}
	}

	n := float64(len(sets))
	var cvgs, szs []float64
	for class, count := range classCount {
		cvgs = append(cvgs, float64(classCovered[class])/float64(count))
		szs = append(szs, float64(classSize[class])/float64(count))
	}

	classCvg, err := distribution(cvgs)
	if err != nil {
		return Summary{}, err
	}
	classSz, err := distribution(szs)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		Coverage:      float64(covered) / n,
		AvgSize:       float64(totalSize) / n,
		ClassCoverage: classCvg,
		ClassSize:     classSz,
	}, nil
}

func distribution(values []float64) (Distribution, error) {
	min, err := stats.Min(values)
	if err != nil {
		return Distribution{}, errors.Wrapf(err, "error computing min")
	}
	max, err := stats.Max(values)
	if err != nil {
		return Distribution{}, errors.Wrapf(err, "error computing max")
	}
	median, err := stats.Median(values)
	if err != nil {
		return Distribution{}, errors.Wrapf(err, "error computing median")
	}
	return Distribution{Min: min, Max: max, Median: median}, nil
}
