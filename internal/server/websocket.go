// websocket.go implements the spec §6 bidirectional session protocol:
// one framed JSON connection per live session, enforcing the single-
// session cardinality of spec §5. Grounded on
// core/webserver/websocket.go's hub/client/register-unregister shape,
// narrowed from the teacher's many broadcast channels to the spec's one
// client<->persona session, and switched from the teacher's
// golang.org/x/net/websocket to github.com/gorilla/websocket (both are
// teacher-attested dependencies; gorilla is the teacher's own listed
// go.mod dependency and gives the explicit per-call read/write deadlines
// the §5 suspension points need).
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/echocog/persona-core/internal/errs"
	"github.com/echocog/persona-core/internal/types"
)

var wsLog = slog.Default().With("component", "server.websocket")

const (
	writeDeadline = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ClientMessage is the spec §6 client->server wire shape, unioning all
// three message types; fields irrelevant to Type are left zero.
type ClientMessage struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	Audio     string `json:"audio,omitempty"`
	Format    string `json:"format,omitempty"`
	Action    string `json:"action,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ServerMessage is the spec §6 server->client wire shape.
type ServerMessage struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	Text      string `json:"text,omitempty"`
	Audio     string `json:"audio,omitempty"`
	Emotion   string `json:"emotion,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Turn is the loop.Loop surface the session handler needs: one call per
// client message, returning one Reply. Kept as an interface to avoid
// server depending on loop (loop already depends on several packages
// server doesn't need) and to let tests use a fake.
type Turn interface {
	TryAcquireSession() error
	ReleaseSession()
	ProcessInput(ctx context.Context, in TurnInput) (*types.Reply, error)
	AddDirective(ctx context.Context, text string) error
}

// TurnInput mirrors loop.Input; duplicated here (rather than imported)
// to keep server free of a dependency on loop, matching the same
// narrow-interface seam the teacher's APIHandlers struct uses to decouple
// webserver from the ecosystem package.
type TurnInput struct {
	Utterance   string
	IsAudio     bool
	Audio       []byte
	AudioFormat string
	FromCreator bool
}

// SessionHandler upgrades one HTTP connection to a WebSocket and runs the
// spec §6 session protocol against it, rejecting a second concurrent
// connection with a busy error (spec §5 session cardinality).
func SessionHandler(turn Turn) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := turn.TryAcquireSession(); err != nil {
			http.Error(w, "busy", http.StatusTooManyRequests)
			return
		}
		defer turn.ReleaseSession()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			wsLog.Warn("websocket upgrade failed", "err", err)
			return
		}
		defer conn.Close()

		serveSession(r.Context(), conn, turn)
	}
}

func serveSession(ctx context.Context, conn *websocket.Conn, turn Turn) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	if err := writeJSON(conn, ServerMessage{Type: "connected", Timestamp: time.Now().UnixMilli()}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			wsLog.Debug("session ended", "err", err)
			return
		}

		switch msg.Type {
		case "control":
			switch msg.Action {
			case "shutdown":
				return
			case "add_directive":
				if err := turn.AddDirective(ctx, msg.Content); err != nil {
					wsLog.Warn("add directive failed", "err", err)
				}
			}
			continue
		case "text", "voice":
			reply, err := handleTurn(ctx, turn, msg)
			if err != nil {
				_ = writeJSON(conn, ServerMessage{Type: "text", Content: "something went wrong on my end", Timestamp: time.Now().UnixMilli()})
				continue
			}
			out := ServerMessage{
				Type:      "voice",
				Text:      reply.Text,
				Emotion:   string(reply.EmotionTag),
				Timestamp: time.Now().UnixMilli(),
			}
			if reply.AudioBytes != nil {
				out.Audio = base64.StdEncoding.EncodeToString(reply.AudioBytes)
			}
			if err := writeJSON(conn, out); err != nil {
				return
			}
		}
	}
}

func handleTurn(ctx context.Context, turn Turn, msg ClientMessage) (*types.Reply, error) {
	in := TurnInput{FromCreator: true}
	switch msg.Type {
	case "voice":
		audio, err := base64.StdEncoding.DecodeString(msg.Audio)
		if err != nil {
			return nil, errs.Transient("decode audio", err)
		}
		in.IsAudio = true
		in.Audio = audio
		in.AudioFormat = msg.Format
	default:
		in.Utterance = msg.Content
	}
	return turn.ProcessInput(ctx, in)
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
