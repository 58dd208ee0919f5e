// Package working implements C4, Working Memory: a bounded, Redis-backed
// short-term buffer of active items with decay, exclusive to the live
// session (spec §5). Grounded on the teacher's go-redis caching usage
// (wrapped here by internal/persistence.RedisStore) and narrowed to the
// spec's WorkingItem entity (§3) and admit/decay/focus/propose_thought
// operations (§4.4). Invariants W1 (hard cap 9), W2 (monotone decay).
package working

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/echocog/persona-core/internal/errs"
	"github.com/echocog/persona-core/internal/persistence"
	"github.com/echocog/persona-core/internal/types"
	"github.com/echocog/persona-core/internal/vecmath"
)

// HardCap is the absolute ceiling on live items (invariant W1).
const HardCap = 9

const keyPrefix = "working:item:"
const indexKey = "working:index"

// Store implements C4 over a Redis key-value store.
type Store struct {
	redis       *persistence.RedisStore
	capacity    int
	decayFactor float64
}

// NewStore creates a working-memory store bounded at capacity (clamped
// to [1, HardCap]) with the given per-turn decay factor.
func NewStore(redis *persistence.RedisStore, capacity int, decayFactor float64) *Store {
	if capacity > HardCap {
		capacity = HardCap
	}
	if capacity < 1 {
		capacity = 1
	}
	return &Store{redis: redis, capacity: capacity, decayFactor: decayFactor}
}

func itemKey(id string) string { return keyPrefix + id }

// Admit inserts content with the given salience. If the store is over
// capacity after insertion, the item with the lowest effective salience
// (salience already reflects decay) is evicted — unless it is tagged
// current_turn, which is never evicted (spec §4.4).
func (s *Store) Admit(ctx context.Context, content string, salience float64, currentTurn bool) (*types.WorkingItem, error) {
	item := &types.WorkingItem{
		ItemID:      uuid.NewString(),
		Content:     content,
		Salience:    vecmath.Clamp01(salience),
		InsertedAt:  time.Now(),
		CurrentTurn: currentTurn,
	}

	if err := s.redis.SetJSON(ctx, itemKey(item.ItemID), item, 0); err != nil {
		return nil, err
	}

	items, err := s.all(ctx)
	if err != nil {
		return item, nil // admit already happened; listing failure is non-fatal
	}

	if currentTurn {
		// Only the newest current-turn item keeps the tag; earlier turns'
		// items become evictable again.
		for _, it := range items {
			if it.CurrentTurn && it.ItemID != item.ItemID {
				it.CurrentTurn = false
				_ = s.redis.SetJSON(ctx, itemKey(it.ItemID), it, 0)
			}
		}
	}

	if len(items) > s.capacity {
		s.evictLowest(ctx, items)
	}
	return item, nil
}

func (s *Store) evictLowest(ctx context.Context, items []*types.WorkingItem) {
	if lowest := lowestEvictable(items); lowest != nil {
		_ = s.redis.Del(ctx, itemKey(lowest.ItemID))
	}
}

// lowestEvictable returns the item with the lowest salience among those
// not tagged current_turn, or nil if every item is protected.
func lowestEvictable(items []*types.WorkingItem) *types.WorkingItem {
	var lowest *types.WorkingItem
	for _, it := range items {
		if it.CurrentTurn {
			continue
		}
		if lowest == nil || it.Salience < lowest.Salience {
			lowest = it
		}
	}
	return lowest
}

func (s *Store) all(ctx context.Context) ([]*types.WorkingItem, error) {
	keys, err := s.redis.Keys(ctx, keyPrefix+"*")
	if err != nil {
		return nil, errs.Transient("list working memory keys", err)
	}
	items := make([]*types.WorkingItem, 0, len(keys))
	for _, k := range keys {
		var item types.WorkingItem
		ok, err := s.redis.GetJSON(ctx, k, &item)
		if err != nil || !ok {
			continue
		}
		items = append(items, &item)
	}
	return items, nil
}

// Decay multiplies every item's salience by decayFactor, called once per
// turn (invariant W2: monotone decay absent a refresh).
func (s *Store) Decay(ctx context.Context) error {
	items, err := s.all(ctx)
	if err != nil {
		return err
	}
	for _, it := range items {
		it.Salience *= s.decayFactor
		if err := s.redis.SetJSON(ctx, itemKey(it.ItemID), it, 0); err != nil {
			return errs.Transient(fmt.Sprintf("decay working item %s", it.ItemID), err)
		}
	}
	return nil
}

// Focus returns the top-n items by current salience, most salient first.
func (s *Store) Focus(ctx context.Context, n int) ([]*types.WorkingItem, error) {
	items, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Salience > items[j].Salience })
	if n > len(items) {
		n = len(items)
	}
	return items[:n], nil
}

// Clear removes every working-memory item.
func (s *Store) Clear(ctx context.Context) error {
	items, err := s.all(ctx)
	if err != nil {
		return err
	}
	for _, it := range items {
		_ = s.redis.Del(ctx, itemKey(it.ItemID))
	}
	return nil
}

// ProposeThought implements the working-memory propose_thought handler
// (spec §4.4): if input relates (semantic similarity >= 0.5) to a
// focused item, emits a "continuation" thought. similarity is supplied
// by the caller (C11), which already holds an embedding comparator; this
// keeps the package free of an EmbeddingProvider dependency for a single
// call site.
//
// Items tagged current_turn are excluded from the comparison: phase 3
// already admitted this turn's own utterance, so without this exclusion
// the item compares identically against itself and always "wins" with a
// trivial similarity of 1.0, rather than reflecting genuine continuity
// with something said earlier.
func (s *Store) ProposeThought(ctx context.Context, input string, similarity func(a, b string) float64) (*types.Thought, error) {
	// Focus one extra slot: phase 3's current-turn item usually ranks
	// near the top on salience alone, so fetching only 3 and then
	// filtering it out could leave fewer than 3 real candidates.
	focused, err := s.Focus(ctx, 4)
	if err != nil || len(focused) == 0 {
		return nil, err
	}

	var best *types.WorkingItem
	var bestSim float64
	for _, it := range focused {
		if it.CurrentTurn {
			continue
		}
		sim := similarity(input, it.Content)
		if sim > bestSim {
			bestSim = sim
			best = it
		}
	}
	if best == nil || bestSim < 0.5 {
		return nil, nil
	}

	return &types.Thought{
		SourceModule: types.SourceWorking,
		Content:      "continuing: " + best.Content,
		Salience:     best.Salience,
		Confidence:   bestSim,
		CreatedAt:    time.Now(),
	}, nil
}
