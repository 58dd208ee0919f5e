package persistence

import "context"

// Schema is the Dgraph DQL schema for the tables spec §6 requires:
// identity, episodic_memories (+ vector index), semantic_memory (+ vector
// index), values, conversations, messages, personality_traits,
// growth_milestones, system_logs. Vector fields are indexed with a
// cosine-similarity HNSW index, mirroring the Milvus collection's IP/HNSW
// choice in the vector store (internal/memory) for the Dgraph-native
// fields that are queried directly (e.g. filtering by importance/tag
// before a Milvus similarity pass).
const Schema = `
consciousness_id: string @index(exact) .
creator_name: string .
birth_timestamp: dateTime .
growth_phase: string @index(exact) .
bond_strength: float .
trait: [uid] .

trait_name: string @index(exact) .
trait_strength: float .
trait_observations: int .

memory_id: string @index(exact) .
occurred_at: dateTime @index(hour) .
content: string @index(fulltext) .
summary: string .
participant: string @index(exact) .
context_type: string @index(exact) .
importance: float @index(float) .
significance_tag: string @index(exact) .
learned_concept: string .
embedding: float32vector @index(hnsw(metric="cosine")) .
access_count: int .
last_accessed: dateTime .
archived: bool @index(bool) .

concept_id: string @index(exact) .
concept_name: string @index(exact, fulltext) .
concept_type: string @index(exact) .
definition: string .
learned_from: string .
confidence: float .
is_creator_teaching: bool @index(bool) .
creator_exact_words: string .

milestone_from: string .
milestone_to: string .
milestone_at: dateTime .

log_level: string @index(exact) .
log_message: string .
log_at: dateTime @index(hour) .

type Identity {
	consciousness_id
	creator_name
	birth_timestamp
	growth_phase
	bond_strength
	trait
}

type PersonalityTrait {
	trait_name
	trait_strength
	trait_observations
}

type EpisodicMemory {
	memory_id
	occurred_at
	content
	summary
	participant
	context_type
	importance
	significance_tag
	learned_concept
	embedding
	access_count
	last_accessed
	archived
}

type SemanticItem {
	concept_id
	concept_name
	concept_type
	definition
	learned_from
	confidence
	is_creator_teaching
	creator_exact_words
	embedding
	importance
}

type GrowthMilestone {
	milestone_from
	milestone_to
	milestone_at
}

type SystemLog {
	log_level
	log_message
	log_at
}
`

// EnsureSchema installs the schema; safe to call on every boot (Dgraph
// Alter is idempotent for unchanged predicates).
func EnsureSchema(ctx context.Context, client *DgraphClient) error {
	return client.SetSchema(ctx, Schema)
}
