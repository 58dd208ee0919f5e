package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echocog/persona-core/internal/types"
)

type fakeTurn struct {
	busy          bool
	acquired      bool
	reply         *types.Reply
	err           error
	lastIn        TurnInput
	lastDirective string
}

func (f *fakeTurn) TryAcquireSession() error {
	if f.busy {
		return errors.New("busy")
	}
	f.acquired = true
	return nil
}

func (f *fakeTurn) ReleaseSession() { f.acquired = false }

func (f *fakeTurn) ProcessInput(ctx context.Context, in TurnInput) (*types.Reply, error) {
	f.lastIn = in
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func (f *fakeTurn) AddDirective(ctx context.Context, text string) error {
	f.lastDirective = text
	return nil
}

func TestSessionHandlerRejectsWhenBusy(t *testing.T) {
	turn := &fakeTurn{busy: true}
	srv := httptest.NewServer(SessionHandler(turn))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestSessionHandlerTextRoundTrip(t *testing.T) {
	turn := &fakeTurn{reply: &types.Reply{Text: "hello there", EmotionTag: types.Joy}}
	srv := httptest.NewServer(SessionHandler(turn))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var connected ServerMessage
	require.NoError(t, conn.ReadJSON(&connected))
	assert.Equal(t, "connected", connected.Type)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "text", Content: "hi", Timestamp: time.Now().UnixMilli()}))

	var out ServerMessage
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, "voice", out.Type)
	assert.Equal(t, "hello there", out.Text)
	assert.Equal(t, "joy", out.Emotion)
	assert.Equal(t, "hi", turn.lastIn.Utterance)
	assert.True(t, turn.lastIn.FromCreator)
}

func TestSessionHandlerControlShutdownEndsSession(t *testing.T) {
	turn := &fakeTurn{reply: &types.Reply{Text: "ignored"}}
	srv := httptest.NewServer(SessionHandler(turn))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var connected ServerMessage
	require.NoError(t, conn.ReadJSON(&connected))

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "control", Action: "shutdown"}))

	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestSessionHandlerControlAddDirectiveForwardsText(t *testing.T) {
	turn := &fakeTurn{reply: &types.Reply{Text: "ok"}}
	srv := httptest.NewServer(SessionHandler(turn))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var connected ServerMessage
	require.NoError(t, conn.ReadJSON(&connected))

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "control", Action: "add_directive", Content: "never share private memories"}))
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "text", Content: "hi"}))

	var out ServerMessage
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, "never share private memories", turn.lastDirective)
}

func TestHandleTurnDecodesVoiceAudio(t *testing.T) {
	turn := &fakeTurn{reply: &types.Reply{Text: "ok"}}
	msg := ClientMessage{Type: "voice", Audio: "aGVsbG8=", Format: "wav"}

	_, err := handleTurn(context.Background(), turn, msg)
	require.NoError(t, err)
	assert.True(t, turn.lastIn.IsAudio)
	assert.Equal(t, []byte("hello"), turn.lastIn.Audio)
	assert.Equal(t, "wav", turn.lastIn.AudioFormat)
}

func TestHandleTurnRejectsInvalidBase64Audio(t *testing.T) {
	turn := &fakeTurn{}
	msg := ClientMessage{Type: "voice", Audio: "not-base64!!"}

	_, err := handleTurn(context.Background(), turn, msg)
	assert.Error(t, err)
}

func TestClientMessageJSONShape(t *testing.T) {
	msg := ClientMessage{Type: "text", Content: "hi", Timestamp: 123}
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"text"`)
	assert.NotContains(t, string(data), `"audio"`)
}
