// Package semantic implements C3, Semantic Memory: concepts, values, and
// Creator teachings, with Creator-teaching precedence enforced as
// invariant S1. Grounded on the same CognitiveMemory/EmbeddingProvider
// shape as core/memory/memory.go, narrowed to the spec's SemanticItem
// entity (§3) and teach/query/propose_thought operations (§4.3).
package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/dgo/v230/protos/api"
	"github.com/google/uuid"

	"github.com/echocog/persona-core/internal/errs"
	"github.com/echocog/persona-core/internal/memory"
	"github.com/echocog/persona-core/internal/persistence"
	"github.com/echocog/persona-core/internal/types"
	"github.com/echocog/persona-core/internal/vecmath"
)

// ProposeSimilarityFloor is the minimum best-match similarity for
// propose_thought to emit an "I know that..." thought (spec §4.3).
const ProposeSimilarityFloor = 0.6

// Store implements C3 against Dgraph plus a VectorIndex.
type Store struct {
	client   *persistence.DgraphClient
	index    memory.VectorIndex
	embedder memory.EmbeddingProvider
}

// NewStore wires the durable store, vector index, and embedder together.
func NewStore(client *persistence.DgraphClient, index memory.VectorIndex, embedder memory.EmbeddingProvider) *Store {
	return &Store{client: client, index: index, embedder: embedder}
}

type semanticNode struct {
	UID               string   `json:"uid,omitempty"`
	DType             []string `json:"dgraph.type,omitempty"`
	ConceptID         string   `json:"concept_id,omitempty"`
	ConceptName       string   `json:"concept_name,omitempty"`
	ConceptType       string   `json:"concept_type,omitempty"`
	Definition        string   `json:"definition,omitempty"`
	LearnedFrom       string   `json:"learned_from,omitempty"`
	Confidence        float64  `json:"confidence"`
	IsCreatorTeaching bool     `json:"is_creator_teaching"`
	CreatorExactWords string   `json:"creator_exact_words,omitempty"`
	Importance        float64  `json:"importance"`
}

// Teach writes or merges a concept. If isCreatorTeaching, importance is
// forced to >= 0.9, exactWords is required, and confidence only grows
// (invariant S1: never overwritten downward by a non-Creator source —
// enforced by Teach itself only ever raising confidence for existing
// Creator-taught items; a separate non-Creator write path must not call
// Teach with isCreatorTeaching=false against an existing Creator item).
func (s *Store) Teach(ctx context.Context, name, definition, source string, isCreatorTeaching bool, exactWords string) (string, error) {
	if isCreatorTeaching && exactWords == "" {
		return "", errs.Invariant("creator teaching requires exact_words")
	}

	existing, err := s.findByName(ctx, name)
	if err != nil {
		return "", err
	}

	importance := 0.5
	confidence := 0.6
	if existing != nil {
		importance = existing.Importance
		confidence = existing.Confidence
	}
	if isCreatorTeaching {
		if importance < 0.9 {
			importance = 0.9
		}
		if confidence < 0.9 {
			confidence = 0.9
		}
	}

	conceptID := name
	if existing != nil {
		conceptID = existing.ConceptID
	} else {
		conceptID = uuid.NewString()
	}

	embedding, err := s.embedder.CreateEmbedding(ctx, definition)
	if err != nil {
		return "", errs.Transient("embed semantic item", err)
	}

	node := semanticNode{
		DType:             []string{"SemanticItem"},
		ConceptID:         conceptID,
		ConceptName:       name,
		ConceptType:       string(types.SemanticValue),
		Definition:        definition,
		LearnedFrom:       source,
		Confidence:        confidence,
		IsCreatorTeaching: isCreatorTeaching || (existing != nil && existing.IsCreatorTeaching),
		CreatorExactWords: exactWords,
		Importance:        importance,
	}
	if existing != nil {
		node.UID = existing.UID
		if existing.CreatorExactWords != "" && exactWords == "" {
			node.CreatorExactWords = existing.CreatorExactWords
		}
	}

	payload, err := json.Marshal(node)
	if err != nil {
		return "", errs.Storage("marshal semantic item", err)
	}
	if _, err := s.client.Mutate(ctx, &api.Mutation{SetJson: payload, CommitNow: true}); err != nil {
		return "", errs.Storage("persist semantic item", err)
	}

	if err := s.index.Upsert(ctx, memory.Record{
		ID:         conceptID,
		Content:    definition,
		Importance: importance,
		OccurredAt: time.Now().Unix(),
		Embedding:  embedding,
	}); err != nil {
		return "", errs.Storage("index semantic item", err)
	}

	return conceptID, nil
}

func (s *Store) findByName(ctx context.Context, name string) (*semanticNode, error) {
	q := fmt.Sprintf(`{
		c(func: eq(concept_name, %q)) {
			uid
			concept_id
			concept_name
			definition
			confidence
			is_creator_teaching
			creator_exact_words
			importance
		}
	}`, name)

	resp, err := s.client.Query(ctx, q, nil)
	if err != nil {
		return nil, errs.Storage("query semantic item", err)
	}
	var decoded struct {
		C []semanticNode `json:"c"`
	}
	if err := json.Unmarshal(resp.GetJson(), &decoded); err != nil {
		return nil, errs.Storage("decode semantic item", err)
	}
	if len(decoded.C) == 0 {
		return nil, nil
	}
	return &decoded.C[0], nil
}

// Query returns up to k items by embedding similarity weighted by
// importance x (1 + 0.8 x is_creator_teaching), per spec §4.3.
func (s *Store) Query(ctx context.Context, text string, k int) ([]*types.SemanticItem, error) {
	queryEmbedding, err := s.embedder.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, errs.Transient("embed semantic query", err)
	}

	candidates, err := s.index.Search(ctx, queryEmbedding, k*4+8)
	if err != nil {
		return nil, errs.Transient("search semantic index", err)
	}

	type scored struct {
		item  *types.SemanticItem
		score float64
	}
	out := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		node, err := s.findByConceptID(ctx, c.ID)
		if err != nil || node == nil {
			continue
		}
		sim := vecmath.CosineSimilarity(queryEmbedding, c.Embedding)
		weight := 1.0
		if node.IsCreatorTeaching {
			weight = 1.8
		}
		score := sim * node.Importance * weight
		item := toSemanticItem(node)
		item.Embedding = c.Embedding
		out = append(out, scored{item: item, score: score})
	}

	sortScoredSemantic(out)
	if k > len(out) {
		k = len(out)
	}
	results := make([]*types.SemanticItem, k)
	for i := 0; i < k; i++ {
		results[i] = out[i].item
	}
	return results, nil
}

func sortScoredSemantic(items []struct {
	item  *types.SemanticItem
	score float64
}) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].score > items[j-1].score; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

func (s *Store) findByConceptID(ctx context.Context, conceptID string) (*semanticNode, error) {
	q := fmt.Sprintf(`{
		c(func: eq(concept_id, %q)) {
			uid
			concept_id
			concept_name
			definition
			learned_from
			confidence
			is_creator_teaching
			creator_exact_words
			importance
		}
	}`, conceptID)

	resp, err := s.client.Query(ctx, q, nil)
	if err != nil {
		return nil, errs.Storage("query semantic item by id", err)
	}
	var decoded struct {
		C []semanticNode `json:"c"`
	}
	if err := json.Unmarshal(resp.GetJson(), &decoded); err != nil {
		return nil, errs.Storage("decode semantic item", err)
	}
	if len(decoded.C) == 0 {
		return nil, nil
	}
	return &decoded.C[0], nil
}

func toSemanticItem(n *semanticNode) *types.SemanticItem {
	return &types.SemanticItem{
		ConceptID:         n.ConceptID,
		Name:              n.ConceptName,
		Definition:        n.Definition,
		LearnedFrom:       n.LearnedFrom,
		Confidence:        n.Confidence,
		IsCreatorTeaching: n.IsCreatorTeaching,
		CreatorExactWords: n.CreatorExactWords,
		Importance:        n.Importance,
	}
}

// ProposeThought implements the semantic propose_thought handler (spec
// §4.3): if the best match similarity >= ProposeSimilarityFloor, emits
// "I know that..." with salience proportional to importance and
// similarity.
func (s *Store) ProposeThought(ctx context.Context, input string) (*types.Thought, error) {
	matches, err := s.Query(ctx, input, 1)
	if err != nil || len(matches) == 0 {
		return nil, err
	}

	queryEmbedding, err := s.embedder.CreateEmbedding(ctx, input)
	if err != nil {
		return nil, errs.Transient("embed propose_thought query", err)
	}
	best := matches[0]
	sim := vecmath.CosineSimilarity(queryEmbedding, best.Embedding)
	if sim < ProposeSimilarityFloor {
		return nil, nil
	}

	return &types.Thought{
		SourceModule: types.SourceSemantic,
		Content:      "I know that " + best.Name + ": " + best.Definition,
		Salience:     vecmath.Clamp01(best.Importance * sim),
		Confidence:   best.Confidence,
		CreatedAt:    time.Now(),
	}, nil
}
