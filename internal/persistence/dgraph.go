// Package persistence wraps the relational store (Dgraph, spec §6: "one
// relational store with tables for identity, episodic_memories ...") and
// the ephemeral key-value store (Redis, spec §6: "one key-value store for
// working memory and emotion snapshot").
//
// DgraphClient is adapted from core/persistence/dgraph_client.go: same
// connect-with-retry, transaction helpers, and schema setup (no drop),
// generalized to take the module's own config and error taxonomy.
package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/dgraph-io/dgo/v230"
	"github.com/dgraph-io/dgo/v230/protos/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/echocog/persona-core/internal/errs"
)

// DgraphClient manages the gRPC connection to Dgraph, the relational
// store backing identity, episodic memory, semantic memory, values,
// conversations, messages, personality traits, growth milestones, and
// system logs (spec §6 persistence layout).
type DgraphClient struct {
	mu         sync.RWMutex
	conn       *grpc.ClientConn
	client     *dgo.Dgraph
	ctx        context.Context
	cancel     context.CancelFunc
	endpoint   string
	connected  bool
	retryCount int
	retryDelay time.Duration
}

// DgraphConfig holds connection parameters.
type DgraphConfig struct {
	Endpoint   string
	RetryCount int
	RetryDelay time.Duration
}

// NewDgraphClient dials Dgraph, retrying retryCount times with retryDelay
// between attempts.
func NewDgraphClient(cfg DgraphConfig) (*DgraphClient, error) {
	if cfg.RetryCount == 0 {
		cfg.RetryCount = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	dc := &DgraphClient{
		ctx:        ctx,
		cancel:     cancel,
		endpoint:   cfg.Endpoint,
		retryCount: cfg.RetryCount,
		retryDelay: cfg.RetryDelay,
	}

	if err := dc.connect(); err != nil {
		cancel()
		return nil, errs.Storage("connect to dgraph", err)
	}

	return dc, nil
}

func (dc *DgraphClient) connect() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	var lastErr error
	for i := 0; i < dc.retryCount; i++ {
		conn, err := grpc.DialContext(
			dc.ctx,
			dc.endpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithBlock(),
		)
		if err != nil {
			lastErr = err
			time.Sleep(dc.retryDelay)
			continue
		}

		dc.conn = conn
		dc.client = dgo.NewDgraphClient(api.NewDgraphClient(conn))
		dc.connected = true
		return nil
	}

	return lastErr
}

// Close tears down the connection.
func (dc *DgraphClient) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	dc.cancel()
	if dc.conn != nil {
		return dc.conn.Close()
	}
	return nil
}

// IsConnected reports connection status.
func (dc *DgraphClient) IsConnected() bool {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return dc.connected
}

// SetSchema installs or updates the Dgraph schema.
func (dc *DgraphClient) SetSchema(ctx context.Context, schema string) error {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	if !dc.connected {
		return errs.Invariant("dgraph not connected")
	}

	return dc.client.Alter(ctx, &api.Operation{Schema: schema})
}

func (dc *DgraphClient) newTxn() *dgo.Txn {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return dc.client.NewTxn()
}

func (dc *DgraphClient) newReadOnlyTxn() *dgo.Txn {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return dc.client.NewReadOnlyTxn()
}

// Mutate runs a single mutation in its own committed transaction.
func (dc *DgraphClient) Mutate(ctx context.Context, mu *api.Mutation) (*api.Response, error) {
	txn := dc.newTxn()
	defer txn.Discard(ctx)

	resp, err := txn.Mutate(ctx, mu)
	if err != nil {
		return nil, err
	}
	if err := txn.Commit(ctx); err != nil {
		return nil, err
	}
	return resp, nil
}

// Query runs a read-only query, optionally parameterized by vars.
func (dc *DgraphClient) Query(ctx context.Context, query string, vars map[string]string) (*api.Response, error) {
	txn := dc.newReadOnlyTxn()
	defer txn.Discard(ctx)

	if vars != nil {
		return txn.QueryWithVars(ctx, query, vars)
	}
	return txn.Query(ctx, query)
}

// Upsert runs a query+mutation pair atomically, committing immediately.
func (dc *DgraphClient) Upsert(ctx context.Context, query string, mu *api.Mutation) (*api.Response, error) {
	txn := dc.newTxn()
	defer txn.Discard(ctx)

	req := &api.Request{
		Query:     query,
		Mutations: []*api.Mutation{mu},
		CommitNow: true,
	}
	return txn.Do(ctx, req)
}
