package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/echocog/persona-core/internal/vecmath"
)

// FakeIndex is an in-memory VectorIndex for tests, avoiding a live Milvus
// dependency — grounded on the teacher's SimpleFallbackProvider idiom
// (core/llm/simple_fallback_provider.go): a trivial in-process stand-in
// satisfying the same interface as the real collaborator.
type FakeIndex struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewFakeIndex returns an empty in-memory index.
func NewFakeIndex() *FakeIndex {
	return &FakeIndex{records: make(map[string]Record)}
}

func (f *FakeIndex) Upsert(ctx context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.ID] = rec
	return nil
}

func (f *FakeIndex) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Record, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	type scored struct {
		rec Record
		sim float64
	}
	scoredRecs := make([]scored, 0, len(f.records))
	for _, rec := range f.records {
		scoredRecs = append(scoredRecs, scored{rec: rec, sim: vecmath.CosineSimilarity(queryEmbedding, rec.Embedding)})
	}
	sort.Slice(scoredRecs, func(i, j int) bool { return scoredRecs[i].sim > scoredRecs[j].sim })

	if topK > len(scoredRecs) {
		topK = len(scoredRecs)
	}
	out := make([]Record, topK)
	for i := 0; i < topK; i++ {
		out[i] = scoredRecs[i].rec
	}
	return out, nil
}

func (f *FakeIndex) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, id)
	return nil
}

// FakeEmbedder produces a deterministic, content-derived embedding
// without any external model, for use in tests. Each character adds
// (r%97)/97 to the slot at its byte offset modulo dim, and the vector is
// then normalized to unit length, which is enough to give similar strings
// similar embeddings for recall-ranking tests.
type FakeEmbedder struct {
	dim int
}

// NewFakeEmbedder returns an embedder producing vectors of size dim.
func NewFakeEmbedder(dim int) *FakeEmbedder { return &FakeEmbedder{dim: dim} }

func (f *FakeEmbedder) Dimension() int { return f.dim }

func (f *FakeEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, f.dim)
	for i, r := range text {
		vec[i%f.dim] += float32(r%97) / 97.0
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	n := float32(1.0 / sqrt(norm))
	for i := range vec {
		vec[i] *= n
	}
	return vec, nil
}

func (f *FakeEmbedder) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.CreateEmbedding(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func sqrt(v float64) float64 {
	// Newton's method avoids pulling in math just for this one call site
	// used only by the test embedder.
	if v == 0 {
		return 0
	}
	x := v
	for i := 0; i < 20; i++ {
		x = 0.5 * (x + v/x)
	}
	return x
}
