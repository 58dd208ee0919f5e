package episodic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeImportanceCreatorFloor(t *testing.T) {
	ev := Event{Participants: []string{"Ada"}}
	assert.Equal(t, 0.7, computeImportance(ev, "Ada"))
}

func TestComputeImportanceGenesisClips(t *testing.T) {
	ev := Event{Participants: []string{"Ada"}, Genesis: true, Emotions: map[string]float64{"joy": 0.9}}
	assert.Equal(t, 1.0, computeImportance(ev, "Ada"))
}

func TestComputeImportanceStrongEmotionNoCreator(t *testing.T) {
	ev := Event{Emotions: map[string]float64{"fear": 0.9}}
	assert.InDelta(t, 0.2, computeImportance(ev, "Ada"), 1e-9)
}

func TestComputeImportanceNeutral(t *testing.T) {
	ev := Event{Content: "a quiet moment"}
	assert.Equal(t, 0.0, computeImportance(ev, "Ada"))
}

func TestInvolvesCreator(t *testing.T) {
	assert.True(t, involvesCreator([]string{"Ada", "Bob"}, "Ada"))
	assert.False(t, involvesCreator([]string{"Bob"}, "Ada"))
}
