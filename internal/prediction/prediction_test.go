package prediction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSituationKeyIsOrderInvariant(t *testing.T) {
	a := SituationKey([]string{"Hello there", "friend!"})
	b := SituationKey([]string{"friend", "hello there!"})
	assert.Equal(t, a, b)
}

func TestPredictUpdateRoundTrip(t *testing.T) {
	e := NewEngine(context.Background(), nil, DefaultErrorThreshold)
	key := SituationKey([]string{"hello"})

	expected, confidence := e.Predict(key)
	assert.Nil(t, expected)
	assert.Equal(t, 0.0, confidence)

	e.Update(context.Background(), key, []float32{1, 0, 0})
	mean, conf := e.Predict(key)
	require.NotNil(t, mean)
	assert.Equal(t, []float32{1, 0, 0}, mean)
	assert.Equal(t, 1.0, conf)

	e.Update(context.Background(), key, []float32{0, 1, 0})
	_, conf2 := e.Predict(key)
	assert.Less(t, conf2, 1.0)
}

func TestProposeThoughtThreshold(t *testing.T) {
	e := NewEngine(context.Background(), nil, 0.4)
	assert.Nil(t, e.ProposeThought(0.3))

	thought := e.ProposeThought(0.6)
	require.NotNil(t, thought)
	assert.InDelta(t, 0.6, thought.Salience, 1e-9)
}
