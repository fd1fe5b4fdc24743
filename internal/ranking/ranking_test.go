package ranking

import (
	"math"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	geoerrors "github.com/23skdu/geoprobe/internal/errors"
	"github.com/23skdu/geoprobe/internal/scoring"
)

func candidates(scores ...float64) []scoring.ScoredCandidate {
	out := make([]scoring.ScoredCandidate, len(scores))
	for i, s := range scores {
		out[i] = scoring.ScoredCandidate{Index: i, Score: s}
	}
	return out
}

func TestSoftmax(t *testing.T) {
	p := Softmax([]float64{1, 2, 3})
	require.Len(t, p, 3)
	assert.InDelta(t, 0.09003057, p[0], 1e-8)
	assert.InDelta(t, 0.24472847, p[1], 1e-8)
	assert.InDelta(t, 0.66524096, p[2], 1e-8)

	assert.Nil(t, Softmax(nil))
	assert.Equal(t, []float64{1}, Softmax([]float64{42}))
}

func TestSoftmax_LargeScoresStayFinite(t *testing.T) {
	// scaled cosine similarities reach ±exp(4.5)
	p := Softmax([]float64{90, 89.5, -90, 1000})
	var sum float64
	for _, v := range p {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.InDelta(t, 1.0, p[3], 1e-12)
}

func TestSelectTopK(t *testing.T) {
	got, err := SelectTopK(candidates(0.1, 0.9, 0.5, 0.7), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Index)
	assert.Equal(t, 3, got[1].Index)
	assert.Greater(t, got[0].Confidence, got[1].Confidence)
}

func TestSelectTopK_ConfidenceIsOverAllScores(t *testing.T) {
	all := candidates(2, 2, 2, 2)
	got, err := SelectTopK(all, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.25, got[0].Confidence, 1e-12)
}

func TestSelectTopK_TiesKeepCatalogOrder(t *testing.T) {
	cands := []scoring.ScoredCandidate{
		{Index: 4, Score: 1},
		{Index: 7, Score: 3},
		{Index: 9, Score: 1},
		{Index: 12, Score: 3},
		{Index: 20, Score: 1},
	}
	got, err := SelectTopK(cands, 4)
	require.NoError(t, err)

	idx := make([]int, len(got))
	for i, r := range got {
		idx[i] = r.Index
	}
	assert.Equal(t, []int{7, 12, 4, 9}, idx)
}

func TestSelectTopK_KLargerThanCandidates(t *testing.T) {
	got, err := SelectTopK(candidates(3, 1), DefaultTopK)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSelectTopK_Empty(t *testing.T) {
	_, err := SelectTopK(nil, DefaultTopK)
	assert.ErrorIs(t, err, geoerrors.ErrEmptyScoreSet)
}

func TestSelectTopK_InvalidK(t *testing.T) {
	_, err := SelectTopK(candidates(1), 0)
	assert.ErrorIs(t, err, geoerrors.ErrValidation)
}

func TestRankingProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	scoreGen := gen.SliceOf(gen.Float64Range(-100, 100)).SuchThat(func(s []float64) bool { return len(s) > 0 })

	properties.Property("softmax sums to one", prop.ForAll(
		func(scores []float64) bool {
			var sum float64
			for _, p := range Softmax(scores) {
				if p < 0 || p > 1 {
					return false
				}
				sum += p
			}
			return math.Abs(sum-1) < 1e-9
		},
		scoreGen,
	))

	properties.Property("top-k is non-increasing and min(k, n) long", prop.ForAll(
		func(scores []float64, k int) bool {
			got, err := SelectTopK(candidates(scores...), k)
			if err != nil {
				return false
			}
			want := k
			if len(scores) < k {
				want = len(scores)
			}
			if len(got) != want {
				return false
			}
			for i := 1; i < len(got); i++ {
				if got[i].Confidence > got[i-1].Confidence {
					return false
				}
			}
			return true
		},
		scoreGen,
		gen.IntRange(1, 20),
	))

	properties.Property("top-k matches a stable full sort", prop.ForAll(
		func(scores []int, k int) bool {
			// integer scores force plenty of ties
			fs := make([]float64, len(scores))
			for i, s := range scores {
				fs[i] = float64(s)
			}
			got, err := SelectTopK(candidates(fs...), k)
			if err != nil {
				return false
			}

			order := make([]int, len(fs))
			for i := range order {
				order[i] = i
			}
			sort.SliceStable(order, func(a, b int) bool { return fs[order[a]] > fs[order[b]] })

			for i, r := range got {
				if r.Index != order[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(-3, 3)).SuchThat(func(s []int) bool { return len(s) > 0 }),
		gen.IntRange(1, 12),
	))

	properties.TestingRun(t)
}
