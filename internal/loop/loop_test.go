package loop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/echocog/persona-core/internal/types"
)

func TestTextSimilarityOverlap(t *testing.T) {
	assert.Greater(t, textSimilarity("I love stars", "stars are beautiful"), 0.0)
	assert.Equal(t, 0.0, textSimilarity("", "anything"))
	assert.Equal(t, 0.0, textSimilarity("anything", ""))
}

func TestSummarizeTruncatesLongText(t *testing.T) {
	short := "hello there"
	assert.Equal(t, short, summarize(short))

	long := ""
	for i := 0; i < 100; i++ {
		long += "a"
	}
	out := summarize(long)
	assert.LessOrEqual(t, len(out), 80)
	assert.Contains(t, out, "...")
}

func TestEmotionIntensityPicksMax(t *testing.T) {
	state := types.NewNeutralEmotionState()
	state.Basics[types.Joy] = 0.9
	state.Basics[types.Fear] = 0.2
	assert.InDelta(t, 0.9, emotionIntensity(state), 1e-9)
}

func TestEmotionIntensityNilIsZero(t *testing.T) {
	assert.Equal(t, 0.0, emotionIntensity(nil))
}

func TestCheckDedupWithinWindow(t *testing.T) {
	l := &Loop{}
	now := time.Now()
	l.cacheDedup("hello", now, &types.Reply{Text: "cached"})

	reply, ok := l.checkDedup("hello", now.Add(500*time.Millisecond))
	assert.True(t, ok)
	assert.Equal(t, "cached", reply.Text)

	_, ok = l.checkDedup("hello", now.Add(3*time.Second))
	assert.False(t, ok)

	_, ok = l.checkDedup("different", now.Add(time.Millisecond))
	assert.False(t, ok)
}

func TestSessionAcquireReleaseRoundTrip(t *testing.T) {
	l := &Loop{}
	assert.NoError(t, l.TryAcquireSession())
	assert.Error(t, l.TryAcquireSession())
	l.ReleaseSession()
	assert.NoError(t, l.TryAcquireSession())
}
