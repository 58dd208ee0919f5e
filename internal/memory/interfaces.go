// Package memory provides the vector-search substrate shared by episodic
// recall (C2) and semantic query (C3): an embedding provider contract and
// a Milvus-backed vector index. Grounded on core/memory/memory.go's
// CognitiveMemory/EmbeddingProvider interfaces, generalized from
// "Thought" (the teacher's one memory kind) to the spec's two distinct
// stores — episodic memories and semantic items — each with its own
// Milvus collection but sharing the same record shape.
package memory

import "context"

// EmbeddingProvider converts text to a fixed-dimension vector embedding
// (spec §6 "Embedder.embed(text) -> vector<float>[dim]").
type EmbeddingProvider interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Record is one vector-indexed row: an episodic memory or a semantic
// item, reduced to the fields the vector index needs to search and
// rehydrate (the full entity lives in Dgraph; the index stores just
// enough to recover matching IDs quickly).
type Record struct {
	ID         string
	Content    string
	Importance float64
	OccurredAt int64 // unix seconds; episodic recency or semantic updated_at
	Embedding  []float32
}

// VectorIndex is a similarity search index over Records, implemented by
// MilvusIndex (production) and an in-memory fake (tests).
type VectorIndex interface {
	Upsert(ctx context.Context, rec Record) error
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Record, error)
	Delete(ctx context.Context, id string) error
}
