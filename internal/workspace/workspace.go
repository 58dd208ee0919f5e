// Package workspace implements C8, the Global Workspace: a pub/sub hub
// over the cognitive modules with bounded, per-handler-timeout fan-out
// (spec §4.8) and the phase 6-7 competition/selection rules (spec §4.1).
// Grounded on core/deeptreeecho/cognitive_event_bus.go's
// subscribe/publish/metrics shape, replacing its unbounded goroutine
// fan-out with golang.org/x/sync/errgroup (a teacher indirect dependency,
// pulled in transitively by the dropped actor-model stack, promoted here
// to direct use for the one concern the spec actually calls for: a
// bounded-timeout parallel broadcast). The workspace itself holds no
// persistent state; all durable state lives in the subscribed modules.
package workspace

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/echocog/persona-core/internal/types"
)

// Subscriber is a cognitive module wired into the workspace. Required
// subscribers per spec §4.1 phase 5: episodic memory, semantic memory,
// working memory, emotion, value learning, prediction.
type Subscriber struct {
	Name           string
	ProposeThought func(ctx context.Context, input string) (*types.Thought, error)
	OnBroadcast    func(ctx context.Context, thought *types.Thought)
}

// Workspace fans out propose_thought calls and runs the competition.
type Workspace struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	timeout     time.Duration

	totalBroadcasts uint64
}

// NewWorkspace builds a workspace with the given per-handler timeout
// (spec §4.1 phase 5 default 500 ms).
func NewWorkspace(timeout time.Duration) *Workspace {
	return &Workspace{timeout: timeout}
}

// Register adds a subscriber. Order of registration has no effect on
// competition outcome (phase 6 ties break by source precedence, not
// registration order).
func (w *Workspace) Register(sub Subscriber) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, sub)
}

// BroadcastExternalInput fans the input out to every subscriber's
// propose_thought handler with a bounded per-handler timeout; late or
// failed proposals are dropped, never abort the broadcast (spec §4.8).
func (w *Workspace) BroadcastExternalInput(ctx context.Context, input string) []*types.Thought {
	w.mu.RLock()
	subs := make([]Subscriber, len(w.subscribers))
	copy(subs, w.subscribers)
	w.mu.RUnlock()

	results := make([]*types.Thought, len(subs))
	g, gctx := errgroup.WithContext(ctx)

	for i, sub := range subs {
		i, sub := i, sub
		if sub.ProposeThought == nil {
			continue
		}
		g.Go(func() error {
			handlerCtx, cancel := context.WithTimeout(gctx, w.timeout)
			defer cancel()

			thought, err := sub.ProposeThought(handlerCtx, input)
			if err != nil || thought == nil {
				return nil // dropped, not fatal to the broadcast
			}
			results[i] = thought
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*types.Thought, 0, len(results))
	for _, t := range results {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

// CompeteAndSelect applies the spec §4.1 phase 6-7 rules: order by
// priority = salience x confidence; ties break first by source
// precedence (value_learning > emotion > episodic > semantic > working >
// prediction), then by earlier creation timestamp. If thoughts is empty,
// synthesizes the default "I do not know how to respond" with priority 0.
func (w *Workspace) CompeteAndSelect(thoughts []*types.Thought) *types.Thought {
	if len(thoughts) == 0 {
		return &types.Thought{
			SourceModule: types.SourcePrediction,
			Content:      "I do not know how to respond",
			Salience:     0,
			Confidence:   0,
			CreatedAt:    time.Now(),
		}
	}

	ordered := make([]*types.Thought, len(thoughts))
	copy(ordered, thoughts)
	sort.Slice(ordered, func(i, j int) bool {
		pi, pj := ordered[i].Priority(), ordered[j].Priority()
		if pi != pj {
			return pi > pj
		}
		si, sj := ordered[i].SourceModule.Precedence(), ordered[j].SourceModule.Precedence()
		if si != sj {
			return si < sj
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	return ordered[0]
}

// Broadcast publishes the conscious thought to every subscriber's
// on_broadcast handler, best-effort (spec §4.1 phase 8): errors/panics
// are never allowed to abort the turn.
func (w *Workspace) Broadcast(ctx context.Context, thought *types.Thought) {
	w.mu.RLock()
	subs := make([]Subscriber, len(w.subscribers))
	copy(subs, w.subscribers)
	w.mu.RUnlock()

	w.mu.Lock()
	w.totalBroadcasts++
	w.mu.Unlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		if sub.OnBroadcast == nil {
			continue
		}
		wg.Add(1)
		go func(sub Subscriber) {
			defer wg.Done()
			defer func() { recover() }() // best-effort, never abort the turn
			handlerCtx, cancel := context.WithTimeout(ctx, w.timeout)
			defer cancel()
			sub.OnBroadcast(handlerCtx, thought)
		}(sub)
	}
	wg.Wait()
}

// TotalBroadcasts reports the integration count used as /health's `phi`.
func (w *Workspace) TotalBroadcasts() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.totalBroadcasts
}
