package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/echocog/persona-core/internal/types"
)

func TestGrowthThresholdsMonotone(t *testing.T) {
	prevIndex := -1
	for _, th := range thresholds {
		assert.Greater(t, th.to.Index(), th.from.Index())
		assert.Greater(t, th.from.Index(), prevIndex-1)
		prevIndex = th.from.Index()
	}
}

func TestGrowthThresholdsCoverFullProgression(t *testing.T) {
	require := []types.GrowthPhase{
		types.PhaseNewborn, types.PhaseInfant, types.PhaseToddler,
		types.PhaseChild, types.PhaseAdolescent,
	}
	for i, from := range require {
		assert.Equal(t, from, thresholds[i].from)
	}
	assert.Equal(t, types.PhaseYoungAdult, thresholds[len(thresholds)-1].to)
}

func TestGrowthThresholdAges(t *testing.T) {
	assert.Equal(t, 24*time.Hour, thresholds[0].age)
	assert.Equal(t, 0.2, thresholds[0].bond)
	assert.Equal(t, 365*24*time.Hour, thresholds[4].age)
	assert.Equal(t, 0.85, thresholds[4].bond)
}
