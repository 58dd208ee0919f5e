package attention

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreAppliesCreatorBoost(t *testing.T) {
	s := NewScorer(DefaultWeights(), 2.0)

	in := Input{TextLength: 10, MaxLengthSeen: 100, MaxEpisodicSim: 0.5, EmotionIntensity: 0.3, WorkingRelevance: 0.2}
	withoutBoost := s.Score(in)

	in.FromCreator = true
	withBoost := s.Score(in)

	assert.Greater(t, withBoost, withoutBoost)
}

func TestScoreClampsToUnitInterval(t *testing.T) {
	s := NewScorer(DefaultWeights(), 3.0)
	in := Input{TextLength: 1000, MaxLengthSeen: 10, MaxEpisodicSim: 0, EmotionIntensity: 1, WorkingRelevance: 1, FromCreator: true}
	assert.LessOrEqual(t, s.Score(in), 1.0)
}

func TestScoreZeroSignalsIsZero(t *testing.T) {
	s := NewScorer(DefaultWeights(), 2.0)
	assert.Equal(t, 0.0, s.Score(Input{}))
}
