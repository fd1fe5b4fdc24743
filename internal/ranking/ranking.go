// Package ranking turns raw similarity scores into confidences and picks the
// best candidates.
package ranking

import (
	"container/heap"
	"math"

	geoerrors "github.com/23skdu/geoprobe/internal/errors"
	"github.com/23skdu/geoprobe/internal/scoring"
)

// DefaultTopK is the aggregation window
const DefaultTopK = 10

// Ranked is a catalog index with its softmax confidence
type Ranked struct {
	Index      int
	Confidence float64
}

// Softmax returns exp(s_i - max) / Σ exp(s_j - max) for every score, so the
// result sums to one. Returns nil for empty input.
func Softmax(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	maxScore := math.Inf(-1)
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}

	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		e := math.Exp(s - maxScore)
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// rankedHeap is a min-heap whose root is the weakest of the kept candidates.
type rankedHeap []Ranked

func (h rankedHeap) Len() int           { return len(h) }
func (h rankedHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h rankedHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *rankedHeap) Push(x any) {
	*h = append(*h, x.(Ranked))
}

func (h *rankedHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// worse reports whether a ranks after b: lower confidence, or equal confidence
// and a later catalog index.
func worse(a, b Ranked) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence < b.Confidence
	}
	return a.Index > b.Index
}

// SelectTopK normalizes all candidates with Softmax and returns the k most
// confident, highest first. Ties keep catalog order.
func SelectTopK(candidates []scoring.ScoredCandidate, k int) ([]Ranked, error) {
	if len(candidates) == 0 {
		return nil, geoerrors.NewEmptyScoreSet("select_top_k", "no candidates were scored")
	}
	if k <= 0 {
		return nil, geoerrors.NewValidationError("select_top_k", "k must be positive").
			WithContext("k", k)
	}

	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = c.Score
	}
	probs := Softmax(scores)

	if k > len(candidates) {
		k = len(candidates)
	}
	h := make(rankedHeap, 0, k+1)
	for i, c := range candidates {
		r := Ranked{Index: c.Index, Confidence: probs[i]}
		if h.Len() < k {
			heap.Push(&h, r)
			continue
		}
		if worse(h[0], r) {
			h[0] = r
			heap.Fix(&h, 0)
		}
	}

	out := make([]Ranked, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(Ranked)
	}
	return out, nil
}
