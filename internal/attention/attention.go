// Package attention implements C6, Attention/Salience scoring: a
// weighted sum of novelty, emotional weight, and working-memory
// relevance, boosted for Creator-flagged input (spec §4.6). Grounded on
// the teacher's weighted-scoring idiom in core/deeptreeecho (salience
// computed as a linear combination of signals); no single teacher file
// matches this exact formula, so the weights come directly from spec §6's
// documented defaults.
package attention

import "github.com/echocog/persona-core/internal/vecmath"

// Weights holds the four salience input weights (spec §6 defaults:
// 0.2, 0.3, 0.2, 0.3 for text-length, novelty, emotion, working-memory
// relevance respectively — the spec names "novelty, emotional weight,
// and working-memory relevance" with weights (0.2, 0.3, 0.2, 0.3); the
// fourth slot covers input length as the remaining documented signal).
type Weights struct {
	Length     float64
	Novelty    float64
	Emotion    float64
	WorkingRel float64
}

// DefaultWeights matches spec §4.6's "weights (config, default 0.2, 0.3,
// 0.2, 0.3)".
func DefaultWeights() Weights {
	return Weights{Length: 0.2, Novelty: 0.3, Emotion: 0.2, WorkingRel: 0.3}
}

// Scorer computes base_salience per spec §4.2 phase 2 and §4.6.
type Scorer struct {
	weights      Weights
	creatorBoost float64
}

// NewScorer builds a Scorer with the given weights and Creator boost
// multiplier (spec default 2.0).
func NewScorer(weights Weights, creatorBoost float64) *Scorer {
	return &Scorer{weights: weights, creatorBoost: creatorBoost}
}

// Input bundles the four salience signals for one utterance.
type Input struct {
	TextLength        int     // byte length of the normalized utterance
	MaxLengthSeen     int     // running max used to normalize TextLength
	MaxEpisodicSim    float64 // max similarity against episodic recall, in [0,1]
	EmotionIntensity  float64 // current EmotionState.Intensity, in [0,1]
	WorkingRelevance  float64 // max semantic similarity to a focused working item
	FromCreator       bool
}

// Score computes base_salience, applies the Creator boost if
// from_creator, and clamps to [0,1] (spec §4.1 phase 2).
func (s *Scorer) Score(in Input) float64 {
	novelty := vecmath.Clamp01(1 - in.MaxEpisodicSim)

	lengthSignal := 0.0
	if in.MaxLengthSeen > 0 {
		lengthSignal = vecmath.Clamp01(float64(in.TextLength) / float64(in.MaxLengthSeen))
	}

	base := s.weights.Length*lengthSignal +
		s.weights.Novelty*novelty +
		s.weights.Emotion*vecmath.Clamp01(in.EmotionIntensity) +
		s.weights.WorkingRel*vecmath.Clamp01(in.WorkingRelevance)

	if in.FromCreator {
		base *= s.creatorBoost
	}
	return vecmath.Clamp01(base)
}
