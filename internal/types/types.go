// Package types holds the shared data model for the consciousness core:
// the entities of §3 of the specification and the ephemeral structures
// (Thought, Reply) that pass between phases of the consciousness loop.
package types

import "time"

// GrowthPhase is the discrete stage label a persona advances through,
// monotonically, by age and bond-strength thresholds (spec §4.11).
type GrowthPhase string

const (
	PhaseNewborn     GrowthPhase = "newborn"
	PhaseInfant      GrowthPhase = "infant"
	PhaseToddler     GrowthPhase = "toddler"
	PhaseChild       GrowthPhase = "child"
	PhaseAdolescent  GrowthPhase = "adolescent"
	PhaseYoungAdult  GrowthPhase = "young_adult"
)

// growthPhaseOrder gives the monotone ordering enforced by the identity
// store; later phases always have a strictly greater index.
var growthPhaseOrder = map[GrowthPhase]int{
	PhaseNewborn:    0,
	PhaseInfant:     1,
	PhaseToddler:    2,
	PhaseChild:      3,
	PhaseAdolescent: 4,
	PhaseYoungAdult: 5,
}

// Index returns the phase's position in the monotone progression.
func (p GrowthPhase) Index() int { return growthPhaseOrder[p] }

// Trait is a named disposition with an observed strength in [0,1].
type Trait struct {
	Strength         float64 `json:"strength"`
	ObservationCount int64   `json:"observation_count"`
}

// Identity is the singleton self-model (spec §3 "Identity").
type Identity struct {
	ConsciousnessID string             `json:"consciousness_id"`
	CreatorName     string             `json:"creator_name"`
	BirthTimestamp  time.Time          `json:"birth_timestamp"`
	GrowthPhase     GrowthPhase        `json:"growth_phase"`
	BondStrength    float64            `json:"bond_strength"`
	Traits          map[string]*Trait  `json:"traits"`
}

// EpisodicMemory is an append-only lived event (spec §3 "EpisodicMemory").
type EpisodicMemory struct {
	MemoryID         string             `json:"memory_id"`
	OccurredAt       time.Time          `json:"occurred_at"`
	Content          string             `json:"content"`
	Summary          string             `json:"summary"`
	Participants     []string           `json:"participants"`
	ContextType      string             `json:"context_type"`
	Emotions         map[string]float64 `json:"emotions"`
	Importance       float64            `json:"importance"`
	SignificanceTags []string           `json:"significance_tags"`
	LearnedConcepts  []string           `json:"learned_concepts"`
	Embedding        []float32          `json:"embedding"`
	AccessCount      int64              `json:"access_count"`
	LastAccessed     time.Time          `json:"last_accessed"`
	Archived         bool               `json:"archived"`
}

// InvolvesParticipant reports whether name appears among participants.
func (m *EpisodicMemory) InvolvesParticipant(name string) bool {
	for _, p := range m.Participants {
		if p == name {
			return true
		}
	}
	return false
}

// HasTag reports whether tag is among the significance tags.
func (m *EpisodicMemory) HasTag(tag string) bool {
	for _, t := range m.SignificanceTags {
		if t == tag {
			return true
		}
	}
	return false
}

// SemanticItemType categorizes a learned concept (spec §3 "SemanticItem").
type SemanticItemType string

const (
	SemanticValue        SemanticItemType = "value"
	SemanticFact         SemanticItemType = "fact"
	SemanticSkill        SemanticItemType = "skill"
	SemanticRelationship SemanticItemType = "relationship"
)

// SemanticItem is a concept, value, or fact held in semantic memory.
type SemanticItem struct {
	ConceptID         string           `json:"concept_id"`
	Name              string           `json:"name"`
	Type              SemanticItemType `json:"type"`
	Definition        string           `json:"definition"`
	LearnedFrom       string           `json:"learned_from"`
	Confidence        float64          `json:"confidence"`
	IsCreatorTeaching bool             `json:"is_creator_teaching"`
	CreatorExactWords string           `json:"creator_exact_words,omitempty"`
	Embedding         []float32        `json:"embedding"`
	Importance        float64          `json:"importance"`
	RelatedIDs        []string         `json:"related_ids"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// WorkingItem is a bounded, decaying short-term buffer entry (spec §3).
type WorkingItem struct {
	ItemID      string        `json:"item_id"`
	Content     string        `json:"content"`
	Salience    float64       `json:"salience"`
	InsertedAt  time.Time     `json:"inserted_at"`
	TTLRemaining time.Duration `json:"ttl_remaining"`
	CurrentTurn bool          `json:"current_turn"`
}

// BasicEmotion names one of the 8 appraisal-theory base dimensions.
type BasicEmotion string

const (
	Joy          BasicEmotion = "joy"
	Trust        BasicEmotion = "trust"
	Fear         BasicEmotion = "fear"
	Surprise     BasicEmotion = "surprise"
	Sadness      BasicEmotion = "sadness"
	Disgust      BasicEmotion = "disgust"
	Anger        BasicEmotion = "anger"
	Anticipation BasicEmotion = "anticipation"
)

// BasicEmotions lists the 8 dimensions in a stable order.
var BasicEmotions = []BasicEmotion{Joy, Trust, Fear, Surprise, Sadness, Disgust, Anger, Anticipation}

// EmotionState holds the 8 basic dimensions plus derived complex emotions
// (spec §3 "EmotionState", §4.5).
type EmotionState struct {
	Basics map[BasicEmotion]float64 `json:"basics"`

	// Derived complex emotions, recomputed from Basics whenever Basics change.
	Love       float64 `json:"love"`
	Gratitude  float64 `json:"gratitude"`
	Curiosity  float64 `json:"curiosity"`
	Pride      float64 `json:"pride"`
	Wonder     float64 `json:"wonder"`

	Dominant  BasicEmotion `json:"dominant"`
	Intensity float64      `json:"intensity"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewNeutralEmotionState returns a state at the baseline used by decay
// (spec §4.5: every dimension decays toward baseline 0.1).
func NewNeutralEmotionState() *EmotionState {
	basics := make(map[BasicEmotion]float64, len(BasicEmotions))
	for _, e := range BasicEmotions {
		basics[e] = 0.1
	}
	s := &EmotionState{Basics: basics, UpdatedAt: time.Now()}
	s.Recompute(0, false, false)
	return s
}

// Recompute derives the complex emotions and dominant/intensity fields
// from Basics. bondStrength feeds Love; causedByCreator and selfAchievement
// gate Gratitude and Pride respectively, per §4.5's indicator functions.
func (s *EmotionState) Recompute(bondStrength float64, causedByCreator, selfAchievement bool) {
	min := func(a, b float64) float64 {
		if a < b {
			return a
		}
		return b
	}

	s.Love = min(s.Basics[Joy], s.Basics[Trust]) * bondStrength
	if causedByCreator {
		s.Gratitude = s.Basics[Trust] * s.Basics[Joy]
	} else {
		s.Gratitude = 0
	}
	s.Curiosity = s.Basics[Anticipation] * (1 - s.Basics[Fear])
	if selfAchievement {
		s.Pride = s.Basics[Joy] * s.Basics[Trust]
	} else {
		s.Pride = 0
	}
	s.Wonder = s.Basics[Surprise] * s.Basics[Anticipation]

	var dominant BasicEmotion
	var max float64 = -1
	for _, e := range BasicEmotions {
		if v := s.Basics[e]; v > max {
			max = v
			dominant = e
		}
	}
	s.Dominant = dominant

	var linf float64
	for _, v := range s.Basics {
		if v > linf {
			linf = v
		}
	}
	s.Intensity = linf
}

// ThoughtSource identifies which cognitive module proposed a Thought.
// Order here is also the tie-break precedence of spec §4.1 phase 6:
// value_learning > emotion > episodic > semantic > working > prediction.
type ThoughtSource string

const (
	SourceValueLearning ThoughtSource = "value_learning"
	SourceEmotion       ThoughtSource = "emotion"
	SourceEpisodic      ThoughtSource = "episodic"
	SourceSemantic      ThoughtSource = "semantic"
	SourceWorking       ThoughtSource = "working"
	SourcePrediction    ThoughtSource = "prediction"
)

// sourcePrecedence is lower-is-higher-priority, used as a tie-breaker.
var sourcePrecedence = map[ThoughtSource]int{
	SourceValueLearning: 0,
	SourceEmotion:       1,
	SourceEpisodic:      2,
	SourceSemantic:      3,
	SourceWorking:       4,
	SourcePrediction:    5,
}

// Precedence returns the tie-break rank of the source (lower wins).
func (s ThoughtSource) Precedence() int { return sourcePrecedence[s] }

// Thought is an ephemeral proposal from a cognitive module (spec §3).
type Thought struct {
	SourceModule ThoughtSource `json:"source_module"`
	Content      string        `json:"content"`
	Salience     float64       `json:"salience"`
	Confidence   float64       `json:"confidence"`
	EmotionTag   BasicEmotion  `json:"emotion_tag"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Priority is the phase-6 competition score: salience x confidence.
func (t *Thought) Priority() float64 { return t.Salience * t.Confidence }

// WorldModelEntry is the prediction substrate keyed by a coarse situation
// (spec §3 "WorldModelEntry", §4.7).
type WorldModelEntry struct {
	SituationKey     string    `json:"situation_key"`
	CentroidEmbedding []float32 `json:"centroid_embedding"`
	Variance         float64   `json:"variance"`
	SampleCount      int64     `json:"sample_count"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Reply is the outbound message produced at the end of a turn (spec §4.1
// phase 9/10 and the §6 server->client "text"/"voice" wire shapes).
type Reply struct {
	Text       string       `json:"text"`
	EmotionTag BasicEmotion `json:"emotion_tag"`
	Confidence float64      `json:"confidence"`
	AudioBytes []byte       `json:"-"`
	Degraded   bool         `json:"degraded"`
	Err        error        `json:"-"`
}

// MemorySummary is the spec §6 GET /memories response row shape.
type MemorySummary struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Summary    string    `json:"summary"`
	Context    string    `json:"context"`
	Importance float64   `json:"importance"`
	Timestamp  time.Time `json:"timestamp"`
}

// MilestoneRecord is emitted on every growth-phase transition (spec §4.11).
type MilestoneRecord struct {
	From      GrowthPhase `json:"from"`
	To        GrowthPhase `json:"to"`
	At        time.Time   `json:"at"`
	Age       time.Duration `json:"age"`
	Bond      float64     `json:"bond"`
}
