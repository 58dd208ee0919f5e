package collaborators

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLLM struct {
	name      string
	available bool
	err       error
	text      string
}

func (s *stubLLM) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}
func (s *stubLLM) Name() string      { return s.name }
func (s *stubLLM) Available() bool   { return s.available }

func TestMultiProviderLLMFallsThroughOnError(t *testing.T) {
	mp := &MultiProviderLLM{stats: make(map[string]*providerStats)}
	mp.AddProvider(&stubLLM{name: "broken", available: true, err: assert.AnError})
	mp.AddProvider(&stubLLM{name: "good", available: true, text: "hello"})

	text, err := mp.Complete(context.Background(), "sys", "user", 100)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestMultiProviderLLMSkipsUnavailable(t *testing.T) {
	mp := &MultiProviderLLM{stats: make(map[string]*providerStats)}
	mp.AddProvider(&stubLLM{name: "down", available: false, text: "should not see this"})
	mp.AddProvider(&SimpleFallbackLLM{})

	text, err := mp.Complete(context.Background(), "sys", "user", 100)
	require.NoError(t, err)
	assert.NotEmpty(t, text)
}

func TestNewMultiProviderLLMAlwaysAvailable(t *testing.T) {
	mp := NewMultiProviderLLM(nil)
	assert.True(t, mp.Available())
}

func TestFakeSTTEmptyAudioIsEmptyText(t *testing.T) {
	f := &FakeSTT{Text: "hello", Confidence: 0.95}
	text, conf, err := f.Transcribe(context.Background(), nil, "wav")
	require.NoError(t, err)
	assert.Equal(t, "", text)
	assert.Equal(t, 0.0, conf)
}

func TestFakeSTTReturnsConfiguredTranscript(t *testing.T) {
	f := &FakeSTT{Text: "hello there", Confidence: 0.8}
	text, conf, err := f.Transcribe(context.Background(), []byte{1, 2, 3}, "wav")
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
	assert.Equal(t, 0.8, conf)
}
