package memory

import (
	"context"
	"fmt"
	"os"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"

	"github.com/echocog/persona-core/internal/errs"
)

// LlamaCppEmbedder implements EmbeddingProvider over a local GGUF
// embedding model, grounded on core/memory/embeddings/llamacpp_embedder.go
// and the go-llama.cpp usage in core/llm/local_gguf_provider.go. Local
// embedding keeps recall() (C2/C3) available with no network dependency,
// matching spec §6's Embedder collaborator contract.
type LlamaCppEmbedder struct {
	mu        sync.Mutex
	model     *llama.LLama
	dimension int
}

// NewLlamaCppEmbedder loads modelPath as an embedding model.
func NewLlamaCppEmbedder(modelPath string, dimension int) (*LlamaCppEmbedder, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("embedding model path cannot be empty")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, errs.Storage("stat embedding model", err)
	}

	model, err := llama.New(modelPath, llama.SetContext(512), llama.EnableEmbeddings)
	if err != nil {
		return nil, errs.Storage("load embedding model", err)
	}

	return &LlamaCppEmbedder{model: model, dimension: dimension}, nil
}

// CreateEmbedding embeds a single text.
func (e *LlamaCppEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	vec, err := e.model.Embeddings(text)
	if err != nil {
		return nil, errs.Transient("generate embedding", err)
	}
	if len(vec) != e.dimension {
		return nil, errs.Storage("embedding dimension mismatch", fmt.Errorf("got %d, expected %d", len(vec), e.dimension))
	}
	return vec, nil
}

// CreateEmbeddings embeds texts sequentially; the underlying model has no
// batch API, matching the teacher's llamacpp_embedder.go loop.
func (e *LlamaCppEmbedder) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.CreateEmbedding(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Dimension reports the configured embedding size.
func (e *LlamaCppEmbedder) Dimension() int { return e.dimension }

// Close releases the loaded model.
func (e *LlamaCppEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model != nil {
		e.model.Free()
		e.model = nil
	}
	return nil
}
