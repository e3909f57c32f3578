package vectorindex

import (
	"container/heap"
	"fmt"
	"math"
	"sort"

	"github.com/custodia-labs/sibila/internal/core/domain"
)

// Cosine returns the cosine similarity of a and b. Vectors of different
// length or with zero norm score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Better reports whether a ranks before b: higher score first, then the
// smaller chunk id.
func Better(a, b domain.SearchHit) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Entry.ChunkID < b.Entry.ChunkID
}

// SortHits orders hits best first.
func SortHits(hits []domain.SearchHit) {
	sort.Slice(hits, func(i, j int) bool { return Better(hits[i], hits[j]) })
}

// CheckSearch validates the arguments every backend's Search receives.
func CheckSearch(vector []float32, topK int) error {
	if topK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidArgument, topK)
	}
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty query vector", domain.ErrInvalidArgument)
	}
	return nil
}

// TopK keeps the k best hits seen so far in a min-heap whose root is the
// worst retained hit.
type TopK struct {
	k    int
	hits hitHeap
}

// NewTopK creates a selector for the k best hits.
func NewTopK(k int) *TopK {
	return &TopK{k: k, hits: make(hitHeap, 0, k)}
}

// Push offers a hit. It reports whether the hit was retained.
func (t *TopK) Push(hit domain.SearchHit) bool {
	if t.k <= 0 {
		return false
	}
	if len(t.hits) < t.k {
		heap.Push(&t.hits, hit)
		return true
	}
	if !Better(hit, t.hits[0]) {
		return false
	}
	t.hits[0] = hit
	heap.Fix(&t.hits, 0)
	return true
}

// Len returns the number of retained hits.
func (t *TopK) Len() int {
	return len(t.hits)
}

// Results returns the retained hits best first.
func (t *TopK) Results() []domain.SearchHit {
	out := make([]domain.SearchHit, len(t.hits))
	copy(out, t.hits)
	SortHits(out)
	return out
}

// hitHeap is a min-heap by rank: the root is the worst hit.
type hitHeap []domain.SearchHit

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return Better(h[j], h[i]) }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *hitHeap) Push(x any) {
	*h = append(*h, x.(domain.SearchHit))
}

func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
