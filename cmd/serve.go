package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/echocog/persona-core/internal/attention"
	"github.com/echocog/persona-core/internal/collaborators"
	"github.com/echocog/persona-core/internal/config"
	"github.com/echocog/persona-core/internal/emotion"
	"github.com/echocog/persona-core/internal/episodic"
	"github.com/echocog/persona-core/internal/identity"
	"github.com/echocog/persona-core/internal/loop"
	"github.com/echocog/persona-core/internal/memory"
	"github.com/echocog/persona-core/internal/persistence"
	"github.com/echocog/persona-core/internal/policy"
	"github.com/echocog/persona-core/internal/prediction"
	"github.com/echocog/persona-core/internal/semantic"
	"github.com/echocog/persona-core/internal/server"
	"github.com/echocog/persona-core/internal/working"
	"github.com/echocog/persona-core/internal/workspace"
)

// newServeCmd builds the "serve" subcommand: assembles the full domain
// stack and runs the consciousness loop behind the spec §6 HTTP/WebSocket
// surface. Grounded on cmd/webserver/main.go's flag-parse ->
// config-build -> component-start -> signal-wait -> graceful-shutdown
// shape, generalized from that file's single ecosystem/webserver pair to
// this module's full component graph.
func newServeCmd() *cobra.Command {
	var (
		httpAddr    string
		dgraphAddr  string
		redisAddr   string
		milvusAddr  string
		creatorName string
		localModel  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the consciousness loop and its HTTP/WebSocket surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default().WithEnvOverrides()
			if httpAddr != "" {
				cfg.HTTPHost, cfg.HTTPPort = splitAddr(httpAddr, cfg.HTTPHost, cfg.HTTPPort)
			}
			if dgraphAddr != "" {
				cfg.DgraphEndpoint = dgraphAddr
			}
			if redisAddr != "" {
				cfg.RedisAddr = redisAddr
			}
			if milvusAddr != "" {
				cfg.MilvusAddr = milvusAddr
			}
			if creatorName != "" {
				cfg.CreatorName = creatorName
			}
			if localModel != "" {
				cfg.LocalModelPath = localModel
			}
			if err := cfg.Validate(); err != nil {
				return fatalf("invalid configuration: %w", err)
			}

			return runServe(cfg)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "HTTP/WebSocket listen address, host:port (default from config)")
	cmd.Flags().StringVar(&dgraphAddr, "dgraph", "", "Dgraph gRPC endpoint")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "Redis address")
	cmd.Flags().StringVar(&milvusAddr, "milvus", "", "Milvus gRPC address")
	cmd.Flags().StringVar(&creatorName, "creator", "", "Creator's name, used for genesis and bond tracking")
	cmd.Flags().StringVar(&localModel, "local-model", "", "Path to a local embedding model file")

	return cmd
}

func runServe(cfg *config.Config) error {
	guard := policy.NewGuard()
	if err := guard.Verify(); err != nil {
		return fatalf("policy guard failed boot verification: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dgraph, err := persistence.NewDgraphClient(persistence.DgraphConfig{Endpoint: cfg.DgraphEndpoint})
	if err != nil {
		return fatalf("connect dgraph: %w", err)
	}

	redis := persistence.NewRedisStore(cfg.RedisAddr)
	if err := redis.Ping(ctx); err != nil {
		return fatalf("connect redis: %w", err)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return fatalf("build embedder: %w", err)
	}

	episodicIndex, err := buildVectorIndex(ctx, cfg, "episodic_memories")
	if err != nil {
		return fatalf("build episodic vector index: %w", err)
	}
	semanticIndex, err := buildVectorIndex(ctx, cfg, "semantic_items")
	if err != nil {
		return fatalf("build semantic vector index: %w", err)
	}

	idStore := identity.NewStore(dgraph)
	epStore := episodic.NewStore(dgraph, episodicIndex, embedder, cfg.RecencyHalflife, cfg.CreatorName)
	semStore := semantic.NewStore(dgraph, semanticIndex, embedder)
	workStore := working.NewStore(redis, cfg.WorkingMemoryCapacity, cfg.DecayFactor)
	emotionEngine := emotion.NewEngine(ctx, redis)
	attn := attention.NewScorer(attention.DefaultWeights(), cfg.CreatorBoost)
	pred := prediction.NewEngine(ctx, redis, cfg.PredictionErrorThreshold)
	ws := workspace.NewWorkspace(cfg.PerModuleTimeout)

	llm := buildLLM(cfg)
	stt := &collaborators.FakeSTT{}
	tts := &collaborators.FakeTTS{}
	directives := policy.NewDirectiveStore(redis)

	consciousness := loop.New(cfg, idStore, epStore, semStore, workStore, emotionEngine, attn, pred, ws, guard, directives, llm, stt, tts, embedder)
	consciousness.WireWorkspace()

	if _, err := idStore.EnsureGenesis(ctx, cfg.CreatorName); err != nil {
		return fatalf("ensure genesis identity: %w", err)
	}

	inspector := server.NewInspector(idStore, ws)
	httpServer := server.NewServer(inspector, epStore)

	turn := &loopTurn{loop: consciousness}
	httpServer.Echo().GET("/ws", echo.WrapHandler(server.SessionHandler(turn)))

	addr := fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort)
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start(addr)
	}()

	printServeBanner(cfg, addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		fmt.Printf("received signal %v, shutting down\n", sig)
	case err := <-errCh:
		if err != nil {
			return fatalf("server stopped: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return httpServer.Stop(shutdownCtx)
}

func printServeBanner(cfg *config.Config, addr string) {
	fmt.Println("persona-core consciousness loop starting")
	fmt.Printf("  creator:  %s\n", cfg.CreatorName)
	fmt.Printf("  http:     http://%s\n", addr)
	fmt.Printf("  dgraph:   %s\n", cfg.DgraphEndpoint)
	fmt.Printf("  redis:    %s\n", cfg.RedisAddr)
	fmt.Printf("  milvus:   %s\n", cfg.MilvusAddr)
	fmt.Println("press Ctrl+C to stop")
}

func splitAddr(addr, defaultHost string, defaultPort int) (string, int) {
	host, port := defaultHost, defaultPort
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			if h := addr[:i]; h != "" {
				host = h
			}
			if p := addr[i+1:]; p != "" {
				fmt.Sscanf(p, "%d", &port)
			}
			return host, port
		}
	}
	return host, port
}

func buildEmbedder(cfg *config.Config) (memory.EmbeddingProvider, error) {
	if cfg.LocalModelPath == "" {
		return memory.NewFakeEmbedder(cfg.EmbeddingDim), nil
	}
	return memory.NewLlamaCppEmbedder(cfg.LocalModelPath, cfg.EmbeddingDim)
}

func buildVectorIndex(ctx context.Context, cfg *config.Config, collection string) (memory.VectorIndex, error) {
	if cfg.MilvusAddr == "" {
		return memory.NewFakeIndex(), nil
	}
	return memory.NewMilvusIndex(ctx, cfg.MilvusAddr, collection, cfg.EmbeddingDim)
}

func buildLLM(cfg *config.Config) collaborators.LLM {
	var local collaborators.LLM
	if cfg.LocalModelPath != "" {
		local = collaborators.NewLocalGGUFLLM(cfg.LocalModelPath, 512)
	}
	return collaborators.NewMultiProviderLLM(local)
}
