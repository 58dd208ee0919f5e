// Package server implements the spec §6 external interfaces: the
// read-only HTTP inspection surface and the bidirectional session
// protocol. Grounded on core/webserver/server.go's labstack/echo
// middleware/route assembly, narrowed from the teacher's broad
// ecosystem/playmate/wisdom/discussion API surface to the two read-only
// endpoints spec §6 actually names.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/echocog/persona-core/internal/identity"
	"github.com/echocog/persona-core/internal/types"
	"github.com/echocog/persona-core/internal/workspace"
)

// Inspector is the read-only view of the running persona needed to
// answer /health and /memories, kept minimal so the server package does
// not depend on the full loop.Loop (which also holds the mutable
// session lock).
type Inspector struct {
	Identity  *identity.Store
	Workspace *workspace.Workspace

	mu      sync.RWMutex
	isAwake bool
}

// NewInspector builds an Inspector starting awake.
func NewInspector(id *identity.Store, ws *workspace.Workspace) *Inspector {
	return &Inspector{Identity: id, Workspace: ws, isAwake: true}
}

// SetAwake toggles the is_awake flag surfaced by /health. The session's
// "pause"/"resume"/"sleep" control actions do not call it.
func (i *Inspector) SetAwake(awake bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.isAwake = awake
}

// Awake reports the current is_awake flag.
func (i *Inspector) Awake() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.isAwake
}

// MemoryReader is implemented by episodic.Store (kept as an interface
// here to avoid an import cycle and to let /memories be wired against a
// fake in tests without a live Dgraph).
type MemoryReader interface {
	ListMemories(ctx context.Context, limit int, importanceMin float64) ([]types.MemorySummary, error)
}

// Server wraps labstack/echo with the two spec §6 read-only routes.
type Server struct {
	echo      *echo.Echo
	inspector *Inspector
	memories  MemoryReader

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer configures middleware and routes, mirroring
// core/webserver/server.go's configureMiddleware/registerRoutes split.
func NewServer(inspector *Inspector, memories MemoryReader) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{echo: e, inspector: inspector, memories: memories}
	e.GET("/health", s.handleHealth)
	e.GET("/memories", s.handleMemories)
	return s
}

// Echo exposes the underlying instance for attaching the WebSocket route.
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) handleHealth(c echo.Context) error {
	ctx := c.Request().Context()

	consciousnessID := ""
	if id, err := s.inspector.Identity.Load(ctx); err == nil && id != nil {
		consciousnessID = id.ConsciousnessID
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":           "alive",
		"consciousness_id": consciousnessID,
		"phase":            "running",
		"is_awake":         s.inspector.Awake(),
		"phi":              s.inspector.Workspace.TotalBroadcasts(),
	})
}

func (s *Server) handleMemories(c echo.Context) error {
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			limit = n
		}
	}
	importanceMin := 0.0
	if v := c.QueryParam("importance_min"); v != "" {
		if f, err := parseFloat(v); err == nil {
			importanceMin = f
		}
	}

	if s.memories == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{"memories": []types.MemorySummary{}})
	}

	rows, err := s.memories.ListMemories(c.Request().Context(), limit, importanceMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"memories": rows})
}

// Start runs the HTTP server, blocking, like core/webserver/server.go's Start.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()
	return s.echo.Start(addr)
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return s.echo.Shutdown(ctx)
}
