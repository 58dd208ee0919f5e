package workspace

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echocog/persona-core/internal/types"
)

func TestCompeteAndSelectHighestPriorityWins(t *testing.T) {
	w := NewWorkspace(500 * time.Millisecond)
	thoughts := []*types.Thought{
		{SourceModule: types.SourceSemantic, Salience: 0.5, Confidence: 0.5, CreatedAt: time.Now()},
		{SourceModule: types.SourceEmotion, Salience: 0.9, Confidence: 0.9, CreatedAt: time.Now()},
	}
	winner := w.CompeteAndSelect(thoughts)
	assert.Equal(t, types.SourceEmotion, winner.SourceModule)
}

func TestCompeteAndSelectTieBreaksBySourcePrecedence(t *testing.T) {
	w := NewWorkspace(500 * time.Millisecond)
	now := time.Now()
	thoughts := []*types.Thought{
		{SourceModule: types.SourceWorking, Salience: 0.5, Confidence: 0.5, CreatedAt: now},
		{SourceModule: types.SourceValueLearning, Salience: 0.5, Confidence: 0.5, CreatedAt: now},
		{SourceModule: types.SourceEpisodic, Salience: 0.5, Confidence: 0.5, CreatedAt: now},
	}
	winner := w.CompeteAndSelect(thoughts)
	assert.Equal(t, types.SourceValueLearning, winner.SourceModule)
}

func TestCompeteAndSelectEmptyYieldsDefault(t *testing.T) {
	w := NewWorkspace(500 * time.Millisecond)
	winner := w.CompeteAndSelect(nil)
	require.NotNil(t, winner)
	assert.Equal(t, "I do not know how to respond", winner.Content)
	assert.Equal(t, 0.0, winner.Priority())
}

func TestBroadcastExternalInputDropsSlowHandlers(t *testing.T) {
	w := NewWorkspace(20 * time.Millisecond)
	w.Register(Subscriber{
		Name: "fast",
		ProposeThought: func(ctx context.Context, input string) (*types.Thought, error) {
			return &types.Thought{SourceModule: types.SourceSemantic, Salience: 0.5, Confidence: 0.5, CreatedAt: time.Now()}, nil
		},
	})
	w.Register(Subscriber{
		Name: "slow",
		ProposeThought: func(ctx context.Context, input string) (*types.Thought, error) {
			select {
			case <-time.After(200 * time.Millisecond):
				return &types.Thought{SourceModule: types.SourceEpisodic}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	})

	thoughts := w.BroadcastExternalInput(context.Background(), "hello")
	require.Len(t, thoughts, 1)
	assert.Equal(t, types.SourceSemantic, thoughts[0].SourceModule)
}

func TestBroadcastCountsIntegrations(t *testing.T) {
	w := NewWorkspace(50 * time.Millisecond)
	assert.Equal(t, uint64(0), w.TotalBroadcasts())
	w.Broadcast(context.Background(), &types.Thought{})
	assert.Equal(t, uint64(1), w.TotalBroadcasts())
}
