// Package episodic implements C2, Episodic Memory: an append-only,
// content-addressable store of lived events with vector recall,
// consolidation, and thought proposals. Grounded on the
// CognitiveMemory/EmbeddingProvider interface shape of core/memory/memory.go,
// generalized from the teacher's single "Thought" store to the spec's
// EpisodicMemory entity (§3) and its store/recall/consolidate/
// propose_thought operation set (§4.2). Invariants E1, E2 (§3) are
// enforced in Store.
package episodic

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/dgo/v230/protos/api"
	"github.com/google/uuid"

	"github.com/echocog/persona-core/internal/errs"
	"github.com/echocog/persona-core/internal/memory"
	"github.com/echocog/persona-core/internal/persistence"
	"github.com/echocog/persona-core/internal/types"
	"github.com/echocog/persona-core/internal/vecmath"
)

const recallTopK = 3

// ProposeSimilarityFloor is the minimum top-1 similarity for
// propose_thought to emit a "this reminds me of..." thought (spec §4.2).
const ProposeSimilarityFloor = 0.7

// Store implements C2 against Dgraph (durable fields) plus a VectorIndex
// (similarity search over embeddings).
type Store struct {
	mu         sync.Mutex
	client     *persistence.DgraphClient
	index      memory.VectorIndex
	embedder   memory.EmbeddingProvider
	halflife   time.Duration
	creatorName string
}

// NewStore wires the durable store, vector index, and embedder together.
func NewStore(client *persistence.DgraphClient, index memory.VectorIndex, embedder memory.EmbeddingProvider, halflife time.Duration, creatorName string) *Store {
	return &Store{client: client, index: index, embedder: embedder, halflife: halflife, creatorName: creatorName}
}

// Event is the raw input to Store before importance/embedding are derived.
type Event struct {
	Content          string
	Summary          string
	Participants     []string
	ContextType      string
	Emotions         map[string]float64
	SignificanceTags []string
	LearnedConcepts  []string
	OccurredAt       time.Time
	Genesis          bool
}

type episodicNode struct {
	UID              string   `json:"uid,omitempty"`
	DType            []string `json:"dgraph.type,omitempty"`
	MemoryID         string   `json:"memory_id,omitempty"`
	OccurredAt       string   `json:"occurred_at,omitempty"`
	Content          string   `json:"content,omitempty"`
	Summary          string   `json:"summary,omitempty"`
	Participant      []string `json:"participant,omitempty"`
	ContextType      string   `json:"context_type,omitempty"`
	Importance       float64  `json:"importance"`
	SignificanceTag  []string `json:"significance_tag,omitempty"`
	LearnedConcept   []string `json:"learned_concept,omitempty"`
	AccessCount      int64    `json:"access_count"`
	LastAccessed     string   `json:"last_accessed,omitempty"`
	Archived         bool     `json:"archived"`
}

// Store persists ev, assigning importance by the spec §4.2 rule:
// Creator participant +0.3, strong emotion (intensity > 0.7) +0.2,
// genesis tag +0.5, clipped to [0,1]. Invariant E1 (Creator episodes
// importance >= 0.7) is enforced here.
func (s *Store) Store(ctx context.Context, ev Event) (string, error) {
	importance := computeImportance(ev, s.creatorName)
	involvesCreator := involvesCreator(ev.Participants, s.creatorName)

	embedding, err := s.embedder.CreateEmbedding(ctx, ev.Content)
	if err != nil {
		return "", errs.Transient("embed episodic content", err)
	}

	memID := uuid.NewString()
	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	node := episodicNode{
		DType:           []string{"EpisodicMemory"},
		MemoryID:        memID,
		OccurredAt:      occurred.Format(time.RFC3339Nano),
		Content:         ev.Content,
		Summary:         ev.Summary,
		Participant:     ev.Participants,
		ContextType:     ev.ContextType,
		Importance:      importance,
		SignificanceTag: ev.SignificanceTags,
		LearnedConcept:  ev.LearnedConcepts,
		AccessCount:     0,
		LastAccessed:    occurred.Format(time.RFC3339Nano),
		Archived:        false,
	}
	payload, err := json.Marshal(node)
	if err != nil {
		return "", errs.Storage("marshal episodic memory", err)
	}
	if _, err := s.client.Mutate(ctx, &api.Mutation{SetJson: payload, CommitNow: true}); err != nil {
		return "", errs.Storage("persist episodic memory", err)
	}

	if err := s.index.Upsert(ctx, memory.Record{
		ID:         memID,
		Content:    ev.Content,
		Importance: importance,
		OccurredAt: occurred.Unix(),
		Embedding:  embedding,
	}); err != nil {
		return "", errs.Storage("index episodic memory", err)
	}

	return memID, nil
}

// Recall returns up to k memories ranked by cosine similarity x
// recency-decay x (1 + importance), per spec §4.2.
func (s *Store) Recall(ctx context.Context, queryText string, k int) ([]*types.EpisodicMemory, error) {
	queryEmbedding, err := s.embedder.CreateEmbedding(ctx, queryText)
	if err != nil {
		return nil, errs.Transient("embed recall query", err)
	}

	candidates, err := s.index.Search(ctx, queryEmbedding, k*4+8)
	if err != nil {
		return nil, errs.Transient("search episodic index", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	now := time.Now()
	type scoredMem struct {
		mem   *types.EpisodicMemory
		score float64
	}
	scored := make([]scoredMem, 0, len(candidates))
	for _, c := range candidates {
		mem, err := s.fetchByID(ctx, c.ID)
		if err != nil || mem == nil {
			continue
		}
		mem.Embedding = c.Embedding
		ageDays := now.Sub(mem.OccurredAt).Hours() / 24
		decay := vecmath.RecencyDecay(ageDays, s.halflife.Hours()/24)
		sim := vecmath.CosineSimilarity(queryEmbedding, mem.Embedding)
		score := sim * decay * (1 + mem.Importance)
		scored = append(scored, scoredMem{mem: mem, score: score})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if k > len(scored) {
		k = len(scored)
	}
	out := make([]*types.EpisodicMemory, k)
	for i := 0; i < k; i++ {
		out[i] = scored[i].mem
		s.touchAccessAsync(scored[i].mem.MemoryID)
	}
	return out, nil
}

// touchAccessAsync increments access_count best-effort; failures here
// never fail a recall (they affect only consolidation eligibility later).
func (s *Store) touchAccessAsync(memoryID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.incrementAccess(ctx, memoryID)
	}()
}

func (s *Store) incrementAccess(ctx context.Context, memoryID string) error {
	existing, err := s.fetchByID(ctx, memoryID)
	if err != nil || existing == nil {
		return err
	}

	query := fmt.Sprintf(`query {
		m as var(func: eq(memory_id, %q))
	}`, memoryID)
	node := map[string]any{
		"uid":           "uid(m)",
		"access_count":  existing.AccessCount + 1,
		"last_accessed": time.Now().Format(time.RFC3339Nano),
	}
	payload, err := json.Marshal(node)
	if err != nil {
		return err
	}
	_, err = s.client.Upsert(ctx, query, &api.Mutation{SetJson: payload})
	return err
}

func (s *Store) fetchByID(ctx context.Context, memoryID string) (*types.EpisodicMemory, error) {
	q := fmt.Sprintf(`{
		m(func: eq(memory_id, %q)) {
			uid
			memory_id
			occurred_at
			content
			summary
			participant
			context_type
			importance
			significance_tag
			learned_concept
			access_count
			last_accessed
			archived
		}
	}`, memoryID)

	resp, err := s.client.Query(ctx, q, nil)
	if err != nil {
		return nil, errs.Storage("fetch episodic memory", err)
	}

	var decoded struct {
		M []episodicNode `json:"m"`
	}
	if err := json.Unmarshal(resp.GetJson(), &decoded); err != nil {
		return nil, errs.Storage("decode episodic memory", err)
	}
	if len(decoded.M) == 0 {
		return nil, nil
	}

	n := decoded.M[0]
	occurred, _ := time.Parse(time.RFC3339Nano, n.OccurredAt)
	lastAccessed, _ := time.Parse(time.RFC3339Nano, n.LastAccessed)
	return &types.EpisodicMemory{
		MemoryID:         n.MemoryID,
		OccurredAt:       occurred,
		Content:          n.Content,
		Summary:          n.Summary,
		Participants:     n.Participant,
		ContextType:      n.ContextType,
		Importance:       n.Importance,
		SignificanceTags: n.SignificanceTag,
		LearnedConcepts:  n.LearnedConcept,
		AccessCount:      n.AccessCount,
		LastAccessed:     lastAccessed,
		Archived:         n.Archived,
	}, nil
}

// Consolidate scans memories older than 24h with access_count = 0;
// importance < 0.3 ones are logically archived (Creator-participant
// memories are never archived). The archived contents are aggregated into
// a single new summary memory by a plain text join, matching the teacher's
// lightweight summarization style rather than an LLM round trip during
// idle work.
func (s *Store) Consolidate(ctx context.Context) error {
	q := `{
		candidates(func: lt(occurred_at, ` + `"` + time.Now().Add(-24*time.Hour).Format(time.RFC3339Nano) + `"` + `)) @filter(eq(access_count, 0) AND lt(importance, 0.3) AND eq(archived, false)) {
			uid
			memory_id
			participant
			content
		}
	}`

	resp, err := s.client.Query(ctx, q, nil)
	if err != nil {
		return errs.Storage("query consolidation candidates", err)
	}

	var decoded struct {
		Candidates []episodicNode `json:"candidates"`
	}
	if err := json.Unmarshal(resp.GetJson(), &decoded); err != nil {
		return errs.Storage("decode consolidation candidates", err)
	}

	var contents []string
	for _, c := range decoded.Candidates {
		if involvesCreator(c.Participant, s.creatorName) {
			continue
		}
		node := map[string]any{"uid": c.UID, "archived": true}
		payload, err := json.Marshal(node)
		if err != nil {
			return errs.Storage("marshal archive flag", err)
		}
		if _, err := s.client.Mutate(ctx, &api.Mutation{SetJson: payload, CommitNow: true}); err != nil {
			return errs.Storage("archive episodic memory", err)
		}
		contents = append(contents, c.Content)
	}
	if len(contents) > 0 {
		if _, err := s.Store(ctx, Event{
			Content:     strings.Join(contents, "\n"),
			Summary:     fmt.Sprintf("consolidated %d memories", len(contents)),
			ContextType: "consolidated",
		}); err != nil {
			return err
		}
	}
	return nil
}

// computeImportance applies the spec §4.2 rule: Creator participant +0.3,
// strong emotion (intensity > 0.7) +0.2, genesis tag +0.5, clipped to
// [0,1], then raised to 0.7 if the Creator participates (invariant E1).
func computeImportance(ev Event, creatorName string) float64 {
	importance := 0.0
	if involvesCreator(ev.Participants, creatorName) {
		importance += 0.3
	}

	var maxEmotion float64
	for _, v := range ev.Emotions {
		if v > maxEmotion {
			maxEmotion = v
		}
	}
	if maxEmotion > 0.7 {
		importance += 0.2
	}

	if ev.Genesis {
		importance += 0.5
	}
	importance = vecmath.Clamp01(importance)

	if involvesCreator(ev.Participants, creatorName) && importance < 0.7 {
		importance = 0.7
	}
	return importance
}

func involvesCreator(participants []string, creatorName string) bool {
	for _, p := range participants {
		if p == creatorName {
			return true
		}
	}
	return false
}

// ProposeThought implements the episodic propose_thought handler (spec
// §4.2): recalls top-3 relevant memories; if the best similarity is >=
// ProposeSimilarityFloor, emits a "this reminds me of..." thought.
// Creator-participant recall adds +0.2 salience.
func (s *Store) ProposeThought(ctx context.Context, input string) (*types.Thought, error) {
	recalled, err := s.Recall(ctx, input, recallTopK)
	if err != nil || len(recalled) == 0 {
		return nil, err
	}

	queryEmbedding, err := s.embedder.CreateEmbedding(ctx, input)
	if err != nil {
		return nil, errs.Transient("embed propose_thought query", err)
	}

	best := recalled[0]
	sim := vecmath.CosineSimilarity(queryEmbedding, best.Embedding)
	if sim < ProposeSimilarityFloor {
		return nil, nil
	}

	ageDays := time.Since(best.OccurredAt).Hours() / 24
	recencyFactor := vecmath.RecencyDecay(ageDays, s.halflife.Hours()/24)
	salience := sim * recencyFactor
	if involvesCreator(best.Participants, s.creatorName) {
		salience += 0.2
	}

	return &types.Thought{
		SourceModule: types.SourceEpisodic,
		Content:      "this reminds me of: " + best.Summary,
		Salience:     vecmath.Clamp01(salience),
		Confidence:   sim,
		CreatedAt:    time.Now(),
	}, nil
}

// ListMemories answers the spec §6 GET /memories inspection endpoint:
// up to limit non-archived memories with importance >= importanceMin,
// most recent first. Satisfies server.MemoryReader.
func (s *Store) ListMemories(ctx context.Context, limit int, importanceMin float64) ([]types.MemorySummary, error) {
	q := fmt.Sprintf(`{
		m(func: ge(importance, %f), orderdesc: occurred_at, first: %d) @filter(eq(archived, false)) {
			memory_id
			occurred_at
			content
			summary
			context_type
			importance
		}
	}`, importanceMin, limit)

	resp, err := s.client.Query(ctx, q, nil)
	if err != nil {
		return nil, errs.Storage("list episodic memories", err)
	}

	var decoded struct {
		M []episodicNode `json:"m"`
	}
	if err := json.Unmarshal(resp.GetJson(), &decoded); err != nil {
		return nil, errs.Storage("decode episodic memories", err)
	}

	out := make([]types.MemorySummary, 0, len(decoded.M))
	for _, n := range decoded.M {
		occurred, _ := time.Parse(time.RFC3339Nano, n.OccurredAt)
		out = append(out, types.MemorySummary{
			ID:         n.MemoryID,
			Content:    n.Content,
			Summary:    n.Summary,
			Context:    n.ContextType,
			Importance: n.Importance,
			Timestamp:  occurred,
		})
	}
	return out, nil
}
