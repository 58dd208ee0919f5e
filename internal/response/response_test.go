package response

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echocog/persona-core/internal/types"
)

func TestGenerateUsesTemplateWhenConfident(t *testing.T) {
	emotion := types.NewNeutralEmotionState()
	emotion.Dominant = types.Joy

	c := Context{
		Thought: &types.Thought{
			SourceModule: types.SourceEpisodic,
			Content:      "the time we talked about stars",
			Confidence:   0.8,
			CreatedAt:    time.Now(),
		},
		Emotion: emotion,
	}

	reply := Generate(context.Background(), nil, c)
	require.NotNil(t, reply)
	assert.False(t, reply.Degraded)
	assert.Contains(t, reply.Text, "the time we talked about stars")
}

type stubLLM struct {
	text string
	err  error
}

func (s *stubLLM) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	return s.text, s.err
}
func (s *stubLLM) Name() string    { return "stub" }
func (s *stubLLM) Available() bool { return true }

func TestGenerateFallsBackToLLMBelowConfidenceFloor(t *testing.T) {
	emotion := types.NewNeutralEmotionState()
	c := Context{
		Thought: &types.Thought{
			SourceModule: types.SourcePrediction,
			Content:      "hmm",
			Confidence:   0.1,
			CreatedAt:    time.Now(),
		},
		Emotion: emotion,
	}

	reply := Generate(context.Background(), &stubLLM{text: "a fallback reply"}, c)
	require.NotNil(t, reply)
	assert.True(t, reply.Degraded)
	assert.Equal(t, "a fallback reply", reply.Text)
}

func TestGenerateFallsBackToCannedApologyWhenAllFail(t *testing.T) {
	c := Context{Thought: nil}
	reply := Generate(context.Background(), nil, c)
	require.NotNil(t, reply)
	assert.True(t, reply.Degraded)
	assert.Equal(t, cannedApology, reply.Text)
}

func TestGenerateCannedApologyWhenLLMAlsoFails(t *testing.T) {
	emotion := types.NewNeutralEmotionState()
	c := Context{
		Thought: &types.Thought{
			SourceModule: types.SourcePrediction,
			Content:      "hmm",
			Confidence:   0.1,
			CreatedAt:    time.Now(),
		},
		Emotion: emotion,
	}
	reply := Generate(context.Background(), &stubLLM{err: assert.AnError}, c)
	require.NotNil(t, reply)
	assert.Equal(t, cannedApology, reply.Text)
}
