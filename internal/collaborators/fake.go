package collaborators

import (
	"context"

	"github.com/echocog/persona-core/internal/types"
)

// FakeSTT is an in-process stand-in for a real speech-to-text engine,
// grounded on the teacher's SimpleFallbackProvider idiom: a trivial
// collaborator satisfying the interface without any real I/O, used in
// tests and as the default when no STT engine is configured.
type FakeSTT struct {
	Text       string
	Confidence float64
}

// Transcribe returns the configured canned transcript, ignoring audio.
func (f *FakeSTT) Transcribe(ctx context.Context, audio []byte, format string) (string, float64, error) {
	if len(audio) == 0 {
		return "", 0, nil
	}
	conf := f.Confidence
	if conf == 0 {
		conf = 0.9
	}
	return f.Text, conf, nil
}

// FakeTTS is an in-process stand-in for a real text-to-speech engine.
type FakeTTS struct{}

// Synthesize returns the text bytes as a stand-in audio payload.
func (f *FakeTTS) Synthesize(ctx context.Context, text string, emotionTag types.BasicEmotion) ([]byte, error) {
	return []byte(text), nil
}
