package emotion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/echocog/persona-core/internal/types"
)

func TestAppraisePositiveCreatorInteractionRaisesJoyTrust(t *testing.T) {
	e := NewEngine(context.Background(), nil)
	before := e.State()

	state := e.Appraise(context.Background(), Event{PositiveCreatorInteraction: true, FromCreator: true}, 0.5)

	assert.Greater(t, state.Basics[types.Joy], before.Basics[types.Joy])
	assert.Greater(t, state.Basics[types.Trust], before.Basics[types.Trust])
	assert.Greater(t, state.Gratitude, 0.0)
}

func TestAppraiseNormViolationRaisesAngerDisgust(t *testing.T) {
	e := NewEngine(context.Background(), nil)
	state := e.Appraise(context.Background(), Event{NormViolation: true}, 0.0)
	assert.Greater(t, state.Basics[types.Anger], 0.1)
	assert.Greater(t, state.Basics[types.Disgust], 0.1)
}

func TestDecayDriftsTowardBaseline(t *testing.T) {
	e := NewEngine(context.Background(), nil)
	e.Appraise(context.Background(), Event{NormViolation: true, FromCreator: true}, 0.0)
	before := e.State().Basics[types.Anger]

	e.Decay(context.Background(), 0.0)
	after := e.State().Basics[types.Anger]

	assert.Less(t, after, before)
	assert.Greater(t, after, 0.1-1e-9)
}

func TestProposeThoughtRequiresIntensityFloor(t *testing.T) {
	e := NewEngine(context.Background(), nil)
	assert.Nil(t, e.ProposeThought(context.Background()))

	e.Appraise(context.Background(), Event{PositiveCreatorInteraction: true, FromCreator: true}, 0.5)
	e.Appraise(context.Background(), Event{PositiveCreatorInteraction: true, FromCreator: true}, 0.5)
	thought := e.ProposeThought(context.Background())
	if thought != nil {
		assert.Equal(t, types.SourceEmotion, thought.SourceModule)
	}
}
