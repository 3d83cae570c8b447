package metrics

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomScores(t *testing.T, rows, cols int) [][]float32 {
	rng := rand.New(rand.NewSource(42))
	scores := make([][]float32, rows)
	for i := range scores {
		scores[i] = make([]float32, cols)
		for j := range scores[i] {
			scores[i][j] = rng.Float32()
		}
	}
	return scores
}

func TestSortSumProperties(t *testing.T) {
	scores := randomScores(t, 20, 10)
	indices, ordered, cumsum := SortSum(scores)

	for i := range scores {
		// indices are a permutation of the column indices
		seen := append([]int(nil), indices[i]...)
		sort.Ints(seen)
		for j, v := range seen {
			assert.Equal(t, j, v)
		}

		var rowSum float32
		for j := range scores[i] {
			rowSum += scores[i][j]

			// sorted values are non-increasing
			if j > 0 {
				assert.LessOrEqual(t, ordered[i][j], ordered[i][j-1])
				assert.GreaterOrEqual(t, cumsum[i][j], cumsum[i][j-1])
			}

			// order matches the indices
			assert.Equal(t, scores[i][indices[i][j]], ordered[i][j])
		}

		assert.InDelta(t, float64(rowSum), float64(cumsum[i][len(scores[i])-1]), 1e-4)
	}
}

func TestSortSumTieBreak(t *testing.T) {
	// equal scores resolve toward the lower class index
	indices, _, _ := SortSum([][]float32{{0.5, 0.5, 0.1, 0.5}})
	assert.Equal(t, []int{0, 1, 3, 2}, indices[0])
}

func TestAccuracyTop1IsArgmax(t *testing.T) {
	scores := randomScores(t, 50, 7)
	targets := make([]int64, len(scores))
	for i := range targets {
		targets[i] = int64(i % 7)
	}

	var matches int
	for i, row := range scores {
		argmax := 0
		for j, v := range row {
			if v > row[argmax] {
				argmax = j
			}
		}
		if int64(argmax) == targets[i] {
			matches++
		}
	}

	accs, err := Accuracy(scores, targets, 1)
	require.NoError(t, err)
	assert.InDelta(t, 100.0*float64(matches)/float64(len(scores)), accs[0], 1e-9)
}

func TestAccuracyTopK(t *testing.T) {
	scores := [][]float32{
		{0.1, 0.5, 0.4}, // true label 2 is rank 1
		{0.7, 0.2, 0.1}, // true label 0 is rank 0
		{0.3, 0.4, 0.3}, // true label 2 is rank 2 (tie with class 0 resolves to 0 first)
	}
	targets := []int64{2, 0, 2}

	accs, err := Accuracy(scores, targets, 1, 2, 3)
	require.NoError(t, err)
	assert.InDelta(t, 100.0/3.0, accs[0], 1e-9)
	assert.InDelta(t, 200.0/3.0, accs[1], 1e-9)
	assert.InDelta(t, 100.0, accs[2], 1e-9)
}

func TestAccuracyErrors(t *testing.T) {
	_, err := Accuracy(nil, nil, 1)
	assert.Error(t, err)

	_, err = Accuracy([][]float32{{0.1, 0.9}}, []int64{0}, 3)
	assert.Error(t, err)

	_, err = Accuracy([][]float32{{0.1, 0.9}}, []int64{0, 1}, 1)
	assert.Error(t, err)
}

func identitySets(targets []int64, numClasses int) [][]bool {
	sets := make([][]bool, len(targets))
	for i, target := range targets {
		sets[i] = make([]bool, numClasses)
		sets[i][target] = true
	}
	return sets
}

func constantSets(n, numClasses int, fill bool) [][]bool {
	sets := make([][]bool, n)
	for i := range sets {
		sets[i] = make([]bool, numClasses)
		for j := range sets[i] {
			sets[i][j] = fill
		}
	}
	return sets
}

func TestCoverageSizeIdentity(t *testing.T) {
	targets := []int64{0, 1, 2, 1, 0, 3}
	sum, err := CoverageSize(identitySets(targets, 4), targets)
	require.NoError(t, err)

	assert.Equal(t, 1.0, sum.Coverage)
	assert.Equal(t, 1.0, sum.AvgSize)
	assert.Equal(t, 1.0, sum.ClassCoverage.Min)
	assert.Equal(t, 1.0, sum.ClassCoverage.Max)
	assert.Equal(t, 1.0, sum.ClassSize.Median)
}

func TestCoverageSizeAllTrue(t *testing.T) {
	targets := []int64{0, 1, 2, 1}
	sum, err := CoverageSize(constantSets(len(targets), 5, true), targets)
	require.NoError(t, err)

	assert.Equal(t, 1.0, sum.Coverage)
	assert.Equal(t, 5.0, sum.AvgSize)
	assert.Equal(t, 5.0, sum.ClassSize.Min)
	assert.Equal(t, 5.0, sum.ClassSize.Max)
}

func TestCoverageSizeEmptySets(t *testing.T) {
	targets := []int64{0, 1, 2}
	sum, err := CoverageSize(constantSets(len(targets), 4, false), targets)
	require.NoError(t, err)

	assert.Equal(t, 0.0, sum.Coverage)
	assert.Equal(t, 0.0, sum.AvgSize)
	assert.Equal(t, 0.0, sum.ClassCoverage.Max)
}

func TestCoverageSizeOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	n, numClasses := 200, 10
	targets := make([]int64, n)
	sets := make([][]bool, n)
	for i := range sets {
		targets[i] = int64(rng.Intn(numClasses))
		sets[i] = make([]bool, numClasses)
		for j := range sets[i] {
			sets[i][j] = rng.Float64() < 0.5
		}
	}

	sum, err := CoverageSize(sets, targets)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, sum.Coverage, 0.0)
	assert.LessOrEqual(t, sum.Coverage, 1.0)
	assert.GreaterOrEqual(t, sum.AvgSize, 0.0)
	assert.LessOrEqual(t, sum.AvgSize, float64(numClasses))

	assert.LessOrEqual(t, sum.ClassCoverage.Min, sum.ClassCoverage.Median)
	assert.LessOrEqual(t, sum.ClassCoverage.Median, sum.ClassCoverage.Max)
	assert.LessOrEqual(t, sum.ClassSize.Min, sum.ClassSize.Median)
	assert.LessOrEqual(t, sum.ClassSize.Median, sum.ClassSize.Max)
}

func TestCoverageSizeUnobservedClassSkipped(t *testing.T) {
	// class 3 never appears in targets: per-class stats cover classes 0-2 only
	targets := []int64{0, 1, 2, 0}
	sets := identitySets(targets, 4)
	// class 0 sets also include class 3, inflating class 0's size to 2
	sets[0][3] = true
	sets[3][3] = true

	sum, err := CoverageSize(sets, targets)
	require.NoError(t, err)
	assert.Equal(t, 1.0, sum.Coverage)
	assert.Equal(t, 1.0, sum.ClassSize.Min)
	assert.Equal(t, 2.0, sum.ClassSize.Max)
	assert.Equal(t, 1.0, sum.ClassSize.Median)
}

func TestCoverageSizeErrors(t *testing.T) {
	_, err := CoverageSize(nil, nil)
	assert.Error(t, err)

	_, err = CoverageSize([][]bool{{true}}, []int64{0, 1})
	assert.Error(t, err)

	_, err = CoverageSize([][]bool{{true, false}}, []int64{5})
	assert.Error(t, err)
}
