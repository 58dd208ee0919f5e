package cmd

import (
	"context"

	"github.com/echocog/persona-core/internal/loop"
	"github.com/echocog/persona-core/internal/server"
	"github.com/echocog/persona-core/internal/types"
)

// loopTurn adapts *loop.Loop to server.Turn, bridging the two packages'
// deliberately duplicated Input/TurnInput shapes at the one point they
// need to meet, rather than letting either package import the other.
type loopTurn struct {
	loop *loop.Loop
}

func (t *loopTurn) TryAcquireSession() error { return t.loop.TryAcquireSession() }

func (t *loopTurn) ReleaseSession() { t.loop.ReleaseSession() }

func (t *loopTurn) ProcessInput(ctx context.Context, in server.TurnInput) (*types.Reply, error) {
	return t.loop.ProcessInput(ctx, loop.Input{
		Utterance:   in.Utterance,
		IsAudio:     in.IsAudio,
		Audio:       in.Audio,
		AudioFormat: in.AudioFormat,
		FromCreator: in.FromCreator,
	})
}

func (t *loopTurn) AddDirective(ctx context.Context, text string) error {
	return t.loop.AddDirective(ctx, text)
}
