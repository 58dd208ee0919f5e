package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeIndexUpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	idx := NewFakeIndex()
	embedder := NewFakeEmbedder(16)

	catVec, err := embedder.CreateEmbedding(ctx, "the cat sat on the mat")
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, Record{ID: "1", Content: "the cat sat on the mat", Embedding: catVec}))

	dogVec, err := embedder.CreateEmbedding(ctx, "a completely unrelated topic about rockets")
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, Record{ID: "2", Content: "a completely unrelated topic about rockets", Embedding: dogVec}))

	queryVec, err := embedder.CreateEmbedding(ctx, "the cat sat")
	require.NoError(t, err)

	results, err := idx.Search(ctx, queryVec, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].ID)
}

func TestFakeIndexDelete(t *testing.T) {
	ctx := context.Background()
	idx := NewFakeIndex()
	require.NoError(t, idx.Upsert(ctx, Record{ID: "1", Embedding: []float32{1, 0, 0}}))
	require.NoError(t, idx.Delete(ctx, "1"))

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFakeEmbedderDeterministic(t *testing.T) {
	e := NewFakeEmbedder(8)
	v1, err := e.CreateEmbedding(context.Background(), "hello world")
	require.NoError(t, err)
	v2, err := e.CreateEmbedding(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 8)
}
