// Package indextest is a behavioural test suite run against every
// exact VectorIndex backend.
package indextest

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sibila/internal/core/domain"
	"github.com/custodia-labs/sibila/internal/core/ports/driven"
)

// Factory opens a fresh, empty index for one subtest.
type Factory func(t *testing.T) driven.VectorIndex

// Model is the embedder name used by entries created with Entry.
const Model = "test-model"

// Entry builds an index entry for doc with the given vector and metadata.
func Entry(id, doc string, vec []float32, meta domain.Metadata) domain.IndexEntry {
	if meta == nil {
		meta = domain.Metadata{}
	}
	return domain.IndexEntry{
		ChunkID:    id,
		DocumentID: doc,
		Vector:     vec,
		Model:      Model,
		Metadata:   meta,
		Text:       "text of " + id,
	}
}

// Run executes the suite.
func Run(t *testing.T, open Factory) {
	ctx := context.Background()

	t.Run("empty index", func(t *testing.T) {
		idx := open(t)
		n, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		id, err := idx.Identity(ctx)
		require.NoError(t, err)
		assert.True(t, id.IsZero())

		hits, err := idx.Search(ctx, []float32{1, 0, 0}, nil, 5)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("upsert then search returns entry", func(t *testing.T) {
		idx := open(t)
		meta := domain.Metadata{"tribunal": "TS", "year": int64(2021), "materia": []string{"civil", "penal"}}
		require.NoError(t, idx.Upsert(ctx, Entry("c1", "d1", []float32{1, 0, 0}, meta)))

		hits, err := idx.Search(ctx, []float32{1, 0, 0}, nil, 3)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "c1", hits[0].Entry.ChunkID)
		assert.Equal(t, "d1", hits[0].Entry.DocumentID)
		assert.Equal(t, "text of c1", hits[0].Entry.Text)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
		assert.Equal(t, "TS", hits[0].Entry.Metadata["tribunal"])
		assert.Equal(t, int64(2021), hits[0].Entry.Metadata["year"])
		assert.Equal(t, []string{"civil", "penal"}, hits[0].Entry.Metadata["materia"])

		id, err := idx.Identity(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.ModelIdentity{Dimension: 3, Model: Model}, id)
	})

	t.Run("upsert replaces entry", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.Upsert(ctx, Entry("c1", "d1", []float32{1, 0, 0}, domain.Metadata{"v": "old"})))
		require.NoError(t, idx.Upsert(ctx, Entry("c1", "d1", []float32{0, 1, 0}, domain.Metadata{"v": "new"})))

		n, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		hits, err := idx.Search(ctx, []float32{0, 1, 0}, nil, 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "new", hits[0].Entry.Metadata["v"])
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	})

	t.Run("ranking and tie-break", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.Upsert(ctx, Entry("b", "d", []float32{1, 0}, nil)))
		require.NoError(t, idx.Upsert(ctx, Entry("a", "d", []float32{1, 0}, nil)))
		require.NoError(t, idx.Upsert(ctx, Entry("c", "d", []float32{1, 1}, nil)))
		require.NoError(t, idx.Upsert(ctx, Entry("d", "d", []float32{0, 1}, nil)))

		hits, err := idx.Search(ctx, []float32{1, 0}, nil, 3)
		require.NoError(t, err)
		require.Len(t, hits, 3)
		assert.Equal(t, []string{"a", "b", "c"}, ids(hits))
		assert.GreaterOrEqual(t, hits[1].Score, hits[2].Score)
	})

	t.Run("filter applied before limit", func(t *testing.T) {
		idx := open(t)
		for i := 0; i < 10; i++ {
			cat := "other"
			if i == 9 {
				cat = "lease"
			}
			vec := []float32{1, float32(i) / 10}
			require.NoError(t, idx.Upsert(ctx, Entry(fmt.Sprintf("c%02d", i), "d", vec, domain.Metadata{"category": cat})))
		}

		hits, err := idx.Search(ctx, []float32{1, 0}, domain.QueryFilter{"category": {"lease"}}, 2)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "c09", hits[0].Entry.ChunkID)
	})

	t.Run("filter semantics", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.Upsert(ctx, Entry("x", "d", []float32{1, 0}, domain.Metadata{"sala": "civil", "year": int64(2020), "tags": []string{"a", "b"}})))
		require.NoError(t, idx.Upsert(ctx, Entry("y", "d", []float32{1, 0}, domain.Metadata{"sala": "penal", "year": int64(2021)})))
		require.NoError(t, idx.Upsert(ctx, Entry("z", "d", []float32{1, 0}, domain.Metadata{"year": int64(2021)})))

		cases := []struct {
			filter domain.QueryFilter
			want   []string
		}{
			{domain.QueryFilter{"sala": {"civil"}}, []string{"x"}},
			{domain.QueryFilter{"sala": {"civil", "penal"}}, []string{"x", "y"}},
			{domain.QueryFilter{"year": {"2021"}}, []string{"y", "z"}},
			{domain.QueryFilter{"year": {"2021"}, "sala": {"penal"}}, []string{"y"}},
			{domain.QueryFilter{"tags": {"b"}}, []string{"x"}},
			{domain.QueryFilter{"missing": {"v"}}, nil},
			{domain.QueryFilter{"sala": {"laboral"}}, nil},
		}
		for _, tc := range cases {
			hits, err := idx.Search(ctx, []float32{1, 0}, tc.filter, 10)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(hits), "filter %v", tc.filter)
		}
	})

	t.Run("delete", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.Upsert(ctx, Entry("c1", "d1", []float32{1, 0}, nil)))
		require.NoError(t, idx.Delete(ctx, "c1"))
		require.NoError(t, idx.Delete(ctx, "never-existed"))

		n, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		hits, err := idx.Search(ctx, []float32{1, 0}, nil, 5)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("delete document", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.Upsert(ctx, Entry("a1", "docA", []float32{1, 0}, nil)))
		require.NoError(t, idx.Upsert(ctx, Entry("a2", "docA", []float32{0, 1}, nil)))
		require.NoError(t, idx.Upsert(ctx, Entry("b1", "docB", []float32{1, 1}, nil)))

		removed, err := idx.DeleteDocument(ctx, "docA")
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		removed, err = idx.DeleteDocument(ctx, "docA")
		require.NoError(t, err)
		assert.Zero(t, removed)

		hits, err := idx.Search(ctx, []float32{1, 0}, nil, 5)
		require.NoError(t, err)
		assert.Equal(t, []string{"b1"}, ids(hits))
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.Upsert(ctx, Entry("c1", "d", []float32{1, 0, 0}, nil)))

		err := idx.Upsert(ctx, Entry("c2", "d", []float32{1, 0}, nil))
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

		other := Entry("c3", "d", []float32{1, 0, 0}, nil)
		other.Model = "another-model"
		assert.ErrorIs(t, idx.Upsert(ctx, other), domain.ErrDimensionMismatch)

		_, err = idx.Search(ctx, []float32{1, 0}, nil, 1)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

		n, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		idx := open(t)
		assert.ErrorIs(t, idx.Upsert(ctx, Entry("", "d", []float32{1}, nil)), domain.ErrInvalidArgument)
		assert.ErrorIs(t, idx.Upsert(ctx, Entry("c", "d", nil, nil)), domain.ErrInvalidArgument)

		_, err := idx.Search(ctx, []float32{1}, nil, 0)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("concurrent upserts and searches", func(t *testing.T) {
		idx := open(t)
		require.NoError(t, idx.Upsert(ctx, Entry("seed", "d", []float32{1, 0}, nil)))

		var wg sync.WaitGroup
		errs := make(chan error, 100)
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				errs <- idx.Upsert(ctx, Entry(fmt.Sprintf("c%d", i%5), "d", []float32{1, float32(i)}, nil))
			}(i)
			go func() {
				defer wg.Done()
				_, err := idx.Search(ctx, []float32{1, 0}, nil, 3)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		n, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 6, n)
	})

	t.Run("concurrent upserts of one chunk never mix writes", func(t *testing.T) {
		idx := open(t)
		const writers, rounds = 8, 25

		// Writer w stores vector (1, w+1), so its cosine against the
		// query (1, 0) identifies it as surely as its text and metadata.
		version := func(w int) domain.IndexEntry {
			e := Entry("shared", "d", []float32{1, float32(w + 1)}, domain.Metadata{"writer": fmt.Sprintf("w%d", w)})
			e.Text = fmt.Sprintf("written by w%d", w)
			return e
		}
		expectedScore := func(w int) float64 {
			return 1 / math.Sqrt(1+float64((w+1)*(w+1)))
		}
		checkHit := func(hit domain.SearchHit) error {
			var w int
			if _, err := fmt.Sscanf(hit.Entry.Text, "written by w%d", &w); err != nil {
				return fmt.Errorf("unexpected text %q", hit.Entry.Text)
			}
			if got := hit.Entry.Metadata.String("writer"); got != fmt.Sprintf("w%d", w) {
				return fmt.Errorf("text of w%d with metadata of %q", w, got)
			}
			if math.Abs(hit.Score-expectedScore(w)) > 1e-4 {
				return fmt.Errorf("text of w%d with score %f, want %f", w, hit.Score, expectedScore(w))
			}
			if hit.Entry.DocumentID != "d" {
				return fmt.Errorf("text of w%d with document %q", w, hit.Entry.DocumentID)
			}
			return nil
		}

		require.NoError(t, idx.Upsert(ctx, version(0)))

		var wg sync.WaitGroup
		errs := make(chan error, writers*rounds*2)
		for w := 0; w < writers; w++ {
			wg.Add(2)
			go func(w int) {
				defer wg.Done()
				for r := 0; r < rounds; r++ {
					errs <- idx.Upsert(ctx, version(w))
				}
			}(w)
			go func() {
				defer wg.Done()
				for r := 0; r < rounds; r++ {
					hits, err := idx.Search(ctx, []float32{1, 0}, nil, 5)
					if err != nil {
						errs <- err
						continue
					}
					if len(hits) > 1 {
						errs <- fmt.Errorf("%d hits for one chunk id", len(hits))
						continue
					}
					for _, hit := range hits {
						errs <- checkHit(hit)
					}
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		hits, err := idx.Search(ctx, []float32{1, 0}, domain.QueryFilter{"writer": {"w0", "w1", "w2", "w3", "w4", "w5", "w6", "w7"}}, 5)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		require.NoError(t, checkHit(hits[0]))

		n, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func ids(hits []domain.SearchHit) []string {
	if len(hits) == 0 {
		return nil
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Entry.ChunkID
	}
	return out
}
