// Package identity implements C1, the Identity Store: the singleton
// self-model persisted in Dgraph (consciousness_id, creator_name,
// birth_timestamp, growth_phase, bond_strength, traits). Grounded on
// core/identity/persistent_identity.go's checkpoint/session-tracking
// idiom, generalized from a local JSON file to the Dgraph-backed relational
// store spec §6 calls for, and narrowed to the exact fields spec §3 names.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/dgo/v230/protos/api"
	"github.com/google/uuid"

	"github.com/echocog/persona-core/internal/errs"
	"github.com/echocog/persona-core/internal/persistence"
	"github.com/echocog/persona-core/internal/types"
)

// growthThreshold is one row of the spec §4.11 state machine table.
type growthThreshold struct {
	from types.GrowthPhase
	to   types.GrowthPhase
	age  time.Duration
	bond float64
}

// thresholds is the monotone progression newborn -> young_adult.
var thresholds = []growthThreshold{
	{types.PhaseNewborn, types.PhaseInfant, 24 * time.Hour, 0.2},
	{types.PhaseInfant, types.PhaseToddler, 7 * 24 * time.Hour, 0.4},
	{types.PhaseToddler, types.PhaseChild, 30 * 24 * time.Hour, 0.55},
	{types.PhaseChild, types.PhaseAdolescent, 90 * 24 * time.Hour, 0.7},
	{types.PhaseAdolescent, types.PhaseYoungAdult, 365 * 24 * time.Hour, 0.85},
}

// Store manages the singleton Identity row. EnsureGenesis is the only path
// that creates one; the Store does not look for a genesis episodic memory
// when it does (invariant I1 is not checked here). creator_name is never
// rewritten after the first write (I2).
type Store struct {
	mu     sync.Mutex
	client *persistence.DgraphClient
	uid    string // Dgraph uid of the singleton row, once known
	cached *types.Identity
}

// NewStore wraps a connected Dgraph client.
func NewStore(client *persistence.DgraphClient) *Store {
	return &Store{client: client}
}

type identityNode struct {
	UID             string          `json:"uid,omitempty"`
	DType           []string        `json:"dgraph.type,omitempty"`
	ConsciousnessID string          `json:"consciousness_id,omitempty"`
	CreatorName     string          `json:"creator_name,omitempty"`
	BirthTimestamp  string          `json:"birth_timestamp,omitempty"`
	GrowthPhase     string          `json:"growth_phase,omitempty"`
	BondStrength    float64         `json:"bond_strength"`
	Traits          []traitNode     `json:"trait,omitempty"`
}

type traitNode struct {
	UID               string   `json:"uid,omitempty"`
	DType             []string `json:"dgraph.type,omitempty"`
	TraitName         string   `json:"trait_name,omitempty"`
	TraitStrength     float64  `json:"trait_strength"`
	TraitObservations int64    `json:"trait_observations"`
}

// Load fetches the singleton Identity row, or (nil, nil) if none exists
// yet (invariant I1: absence is valid before the first genesis memory).
func (s *Store) Load(ctx context.Context) (*types.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Store) loadLocked(ctx context.Context) (*types.Identity, error) {
	const q = `{
		identity(func: has(consciousness_id), first: 1) {
			uid
			consciousness_id
			creator_name
			birth_timestamp
			growth_phase
			bond_strength
			trait {
				uid
				trait_name
				trait_strength
				trait_observations
			}
		}
	}`

	resp, err := s.client.Query(ctx, q, nil)
	if err != nil {
		return nil, errs.Storage("load identity", err)
	}

	var decoded struct {
		Identity []identityNode `json:"identity"`
	}
	if err := json.Unmarshal(resp.GetJson(), &decoded); err != nil {
		return nil, errs.Storage("decode identity", err)
	}
	if len(decoded.Identity) == 0 {
		return nil, nil
	}

	node := decoded.Identity[0]
	s.uid = node.UID

	birth, _ := time.Parse(time.RFC3339, node.BirthTimestamp)
	ident := &types.Identity{
		ConsciousnessID: node.ConsciousnessID,
		CreatorName:     node.CreatorName,
		BirthTimestamp:  birth,
		GrowthPhase:     types.GrowthPhase(node.GrowthPhase),
		BondStrength:    node.BondStrength,
		Traits:          make(map[string]*types.Trait, len(node.Traits)),
	}
	for _, t := range node.Traits {
		ident.Traits[t.TraitName] = &types.Trait{Strength: t.TraitStrength, ObservationCount: t.TraitObservations}
	}
	s.cached = ident
	return ident, nil
}

// EnsureGenesis creates the singleton Identity row if none exists, with
// growth_phase=newborn and bond_strength=0. It is the Store's only
// creation path. The row is written in its own committed mutation; no
// EpisodicMemory is written or checked here, and the callers (server boot
// and ProcessInput before Phase 2) run it outside any Phase-10 write. If
// an identity already exists, it is returned unchanged (I2: creatorName
// is ignored on subsequent calls).
func (s *Store) EnsureGenesis(ctx context.Context, creatorName string) (*types.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now()
	ident := &types.Identity{
		ConsciousnessID: uuid.NewString(),
		CreatorName:     creatorName,
		BirthTimestamp:  now,
		GrowthPhase:     types.PhaseNewborn,
		BondStrength:    0,
		Traits:          map[string]*types.Trait{},
	}

	node := identityNode{
		DType:           []string{"Identity"},
		ConsciousnessID: ident.ConsciousnessID,
		CreatorName:     ident.CreatorName,
		BirthTimestamp:  ident.BirthTimestamp.Format(time.RFC3339),
		GrowthPhase:     string(ident.GrowthPhase),
		BondStrength:    ident.BondStrength,
	}
	payload, err := json.Marshal(node)
	if err != nil {
		return nil, errs.Storage("marshal identity", err)
	}

	resp, err := s.client.Mutate(ctx, &api.Mutation{SetJson: payload, CommitNow: true})
	if err != nil {
		return nil, errs.Storage("create identity", err)
	}
	for _, uid := range resp.GetUids() {
		s.uid = uid
		break
	}
	s.cached = ident
	return ident, nil
}

// BondDelta bumps bond_strength by delta (clamped to [0,1]) using
// compare-and-swap semantics against the stored value: reload, check the
// value hasn't moved, write. On conflict, retry once, then drop the bump
// for the turn, matching spec §5's ordering guarantee for bond-strength
// updates.
func (s *Store) BondDelta(ctx context.Context, delta float64) error {
	if delta <= 0 {
		return nil
	}

	for attempt := 0; attempt < 2; attempt++ {
		s.mu.Lock()
		ident, err := s.loadLocked(ctx)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		if ident == nil {
			s.mu.Unlock()
			return errs.Invariant("bond update requested before identity exists")
		}

		newBond := ident.BondStrength + delta
		if newBond > 1 {
			newBond = 1
		}

		ok, err := s.casBondLocked(ctx, ident.BondStrength, newBond)
		s.mu.Unlock()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		// conflict: another writer moved bond_strength between our read
		// and write; retry once per spec §5, then drop silently.
	}
	return nil
}

func (s *Store) casBondLocked(ctx context.Context, expected, next float64) (bool, error) {
	query := fmt.Sprintf(`query {
		v as var(func: uid(%s)) @filter(eq(bond_strength, %f))
		matched(func: uid(v)) { uid }
	}`, s.uid, expected)

	node := map[string]any{"uid": "uid(v)", "bond_strength": next}
	payload, err := json.Marshal(node)
	if err != nil {
		return false, errs.Storage("marshal bond update", err)
	}

	resp, err := s.client.Upsert(ctx, query, &api.Mutation{SetJson: payload})
	if err != nil {
		return false, errs.Storage("cas bond_strength", err)
	}

	var decoded struct {
		Matched []struct {
			UID string `json:"uid"`
		} `json:"matched"`
	}
	if err := json.Unmarshal(resp.GetJson(), &decoded); err != nil {
		return false, errs.Storage("decode cas result", err)
	}
	return len(decoded.Matched) > 0, nil
}

// ObserveTrait records one observation of a named trait, updating its
// running-average strength (new_strength = old*n/(n+1) + value/(n+1)).
func (s *Store) ObserveTrait(ctx context.Context, name string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	if ident == nil {
		return errs.Invariant("trait observation requested before identity exists")
	}

	t := ident.Traits[name]
	var newStrength float64
	var newCount int64
	if t == nil {
		newStrength = value
		newCount = 1
	} else {
		newCount = t.ObservationCount + 1
		newStrength = (t.Strength*float64(t.ObservationCount) + value) / float64(newCount)
	}

	node := map[string]any{
		"uid": s.uid,
		"trait": []map[string]any{{
			"dgraph.type":        "PersonalityTrait",
			"trait_name":         name,
			"trait_strength":     newStrength,
			"trait_observations": newCount,
		}},
	}
	payload, err := json.Marshal(node)
	if err != nil {
		return errs.Storage("marshal trait", err)
	}
	if _, err := s.client.Mutate(ctx, &api.Mutation{SetJson: payload, CommitNow: true}); err != nil {
		return errs.Storage("persist trait", err)
	}
	return nil
}

// MaybeAdvanceGrowthPhase checks the spec §4.11 thresholds against the
// identity's age and bond_strength and, if satisfied, advances exactly
// one step and returns the emitted milestone. Phases only ever move
// forward (growth_phase.Index() never decreases); if no threshold is met,
// it returns (nil, nil).
func (s *Store) MaybeAdvanceGrowthPhase(ctx context.Context, now time.Time) (*types.MilestoneRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return nil, errs.Invariant("growth phase check requested before identity exists")
	}

	age := now.Sub(ident.BirthTimestamp)
	for _, th := range thresholds {
		if ident.GrowthPhase != th.from {
			continue
		}
		if age >= th.age && ident.BondStrength >= th.bond {
			node := map[string]any{"uid": s.uid, "growth_phase": string(th.to)}
			payload, err := json.Marshal(node)
			if err != nil {
				return nil, errs.Storage("marshal growth phase", err)
			}
			if _, err := s.client.Mutate(ctx, &api.Mutation{SetJson: payload, CommitNow: true}); err != nil {
				return nil, errs.Storage("persist growth phase", err)
			}
			return &types.MilestoneRecord{From: th.from, To: th.to, At: now, Age: age, Bond: ident.BondStrength}, nil
		}
		break
	}
	return nil, nil
}
