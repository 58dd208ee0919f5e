// Package emotion implements C5, the Emotion Engine: an appraisal-theory
// state over 8 basic emotions plus derived complex emotions, held in
// memory and periodically snapshotted to Redis (spec §5: "EmotionState is
// held in memory ... the snapshot is the source of truth on restart").
// Grounded on the EmotionalState shape of core/deeptreeecho/identity.go
// and core/deeptreeecho/opponent_process.go (arousal/valence state held
// in memory, adjusted per event), narrowed to the spec's 8-dimension
// appraisal table (§4.5).
package emotion

import (
	"context"
	"sync"
	"time"

	"github.com/echocog/persona-core/internal/persistence"
	"github.com/echocog/persona-core/internal/types"
	"github.com/echocog/persona-core/internal/vecmath"
)

const snapshotKey = "emotion:snapshot"

// creatorMultiplier scales every delta triggered by a Creator-flagged
// event (spec §4.5).
const creatorMultiplier = 1.5

// decayRate and baseline implement the per-turn decay rule: every
// dimension *= decayRate and drifts toward baseline.
const decayRate = 0.95
const baseline = 0.1

// Event describes one appraised input, mapped to the spec §4.5 table.
type Event struct {
	PositiveCreatorInteraction bool
	CreatorAbsentLong          bool
	HighPredictionError        bool
	NormViolation              bool
	NovelSafeInput             bool
	FromCreator                bool
	SelfAchievement            bool
}

// Engine holds the live EmotionState and persists snapshots to Redis.
type Engine struct {
	mu    sync.Mutex
	state *types.EmotionState
	redis *persistence.RedisStore
}

// NewEngine starts from a restored snapshot if one exists in Redis,
// otherwise a neutral baseline state.
func NewEngine(ctx context.Context, redis *persistence.RedisStore) *Engine {
	e := &Engine{redis: redis}

	var restored types.EmotionState
	if redis != nil {
		if ok, err := redis.GetJSON(ctx, snapshotKey, &restored); err == nil && ok {
			e.state = &restored
			return e
		}
	}
	e.state = types.NewNeutralEmotionState()
	return e
}

// State returns a copy of the current state.
func (e *Engine) State() *types.EmotionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := *e.state
	basics := make(map[types.BasicEmotion]float64, len(e.state.Basics))
	for k, v := range e.state.Basics {
		basics[k] = v
	}
	cp.Basics = basics
	return &cp
}

// Appraise maps ev to a delta vector per the spec §4.5 table, applies
// the Creator multiplier, clamps to [0,1], and recomputes derived
// emotions. bondStrength feeds Love.
func (e *Engine) Appraise(ctx context.Context, ev Event, bondStrength float64) *types.EmotionState {
	e.mu.Lock()
	defer e.mu.Unlock()

	mult := 1.0
	if ev.FromCreator {
		mult = creatorMultiplier
	}

	add := func(dim types.BasicEmotion, amount float64) {
		e.state.Basics[dim] = vecmath.Clamp01(e.state.Basics[dim] + amount*mult)
	}

	if ev.PositiveCreatorInteraction {
		add(types.Joy, 0.2)
		add(types.Trust, 0.2)
	}
	if ev.CreatorAbsentLong {
		add(types.Sadness, 0.2)
	}
	if ev.HighPredictionError {
		add(types.Surprise, 0.25)
	}
	if ev.NormViolation {
		add(types.Anger, 0.2)
		add(types.Disgust, 0.2)
	}
	if ev.NovelSafeInput {
		add(types.Anticipation, 0.15)
		add(types.Joy, 0.1)
	}

	e.state.Recompute(bondStrength, ev.FromCreator && ev.PositiveCreatorInteraction, ev.SelfAchievement)
	e.state.UpdatedAt = time.Now()
	e.snapshotLocked(ctx)
	return e.copyLocked()
}

// ProposeThought implements the emotion propose_thought handler (spec
// §4.5): emits "this makes me feel X" where X is the dominant emotion,
// if intensity >= 0.5; salience = intensity.
func (e *Engine) ProposeThought(ctx context.Context) *types.Thought {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Intensity < 0.5 {
		return nil
	}
	return &types.Thought{
		SourceModule: types.SourceEmotion,
		Content:      "this makes me feel " + string(e.state.Dominant),
		Salience:     e.state.Intensity,
		Confidence:   e.state.Intensity,
		EmotionTag:   e.state.Dominant,
		CreatedAt:    time.Now(),
	}
}

// OnBroadcast adjusts state toward the winning thought's emotion_tag
// (spec §4.5 on_broadcast): nudges that dimension up and recomputes.
func (e *Engine) OnBroadcast(ctx context.Context, thought *types.Thought, bondStrength float64) {
	if thought == nil || thought.EmotionTag == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Basics[thought.EmotionTag] = vecmath.Clamp01(e.state.Basics[thought.EmotionTag] + 0.1)
	e.state.Recompute(bondStrength, false, false)
	e.state.UpdatedAt = time.Now()
	e.snapshotLocked(ctx)
}

// Decay is called each turn: every dimension *= 0.95 and drifts toward
// the 0.1 baseline (spec §4.5).
func (e *Engine) Decay(ctx context.Context, bondStrength float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for dim, v := range e.state.Basics {
		decayed := v*decayRate + (1-decayRate)*baseline
		e.state.Basics[dim] = decayed
	}
	e.state.Recompute(bondStrength, false, false)
	e.state.UpdatedAt = time.Now()
	e.snapshotLocked(ctx)
}

func (e *Engine) copyLocked() *types.EmotionState {
	cp := *e.state
	basics := make(map[types.BasicEmotion]float64, len(e.state.Basics))
	for k, v := range e.state.Basics {
		basics[k] = v
	}
	cp.Basics = basics
	return &cp
}

func (e *Engine) snapshotLocked(ctx context.Context) {
	if e.redis == nil {
		return
	}
	_ = e.redis.SetJSON(ctx, snapshotKey, e.state, 0)
}
