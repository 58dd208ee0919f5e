// Package prediction implements C7, the Prediction Engine: a WorldModel
// mapping coarse situation keys to an expected next-utterance embedding
// distribution (running centroid + variance), per spec §4.7. Grounded on
// vecmath.RunningStat's online mean/variance update (itself grounded on
// gonum, a teacher indirect dependency promoted to direct use), held
// in-memory and snapshotted the same way EmotionState is (spec §5).
package prediction

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/echocog/persona-core/internal/persistence"
	"github.com/echocog/persona-core/internal/types"
	"github.com/echocog/persona-core/internal/vecmath"
)

const snapshotKey = "prediction:world_model"

// learningRate is the online mean/variance update rate (spec §4.7,
// default 0.1).
const learningRate = 0.1

// DefaultErrorThreshold is the default prediction-error floor for the
// "surprise" thought (spec §4.7, default 0.4).
const DefaultErrorThreshold = 0.4

// Engine holds the WorldModel and predicts/updates it per turn.
type Engine struct {
	mu             sync.Mutex
	model          map[string]*vecmath.RunningStat
	redis          *persistence.RedisStore
	errorThreshold float64
}

// NewEngine restores a snapshot from Redis if present, else starts empty.
func NewEngine(ctx context.Context, redis *persistence.RedisStore, errorThreshold float64) *Engine {
	e := &Engine{model: make(map[string]*vecmath.RunningStat), redis: redis, errorThreshold: errorThreshold}

	var snapshot map[string]*vecmath.RunningStat
	if redis != nil {
		if ok, err := redis.GetJSON(ctx, snapshotKey, &snapshot); err == nil && ok {
			e.model = snapshot
		}
	}
	return e
}

// SituationKey computes a coarse bag-of-stems key from recent context,
// per spec §4.7 ("coarse situation_key (bag-of-stems of recent
// context)"). Stemming here is the lightweight lowercase+trim the
// teacher's text-normalization helpers use elsewhere in the pack; a full
// stemmer is out of scope for a bucketing key.
func SituationKey(recentContext []string) string {
	words := make(map[string]struct{})
	for _, c := range recentContext {
		for _, w := range strings.Fields(strings.ToLower(c)) {
			w = strings.Trim(w, ".,!?;:\"'")
			if w != "" {
				words[w] = struct{}{}
			}
		}
	}
	keys := make([]string, 0, len(words))
	for w := range words {
		keys = append(keys, w)
	}
	// deterministic ordering for a stable key
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return strings.Join(keys, "|")
}

// Predict returns the expected next embedding and confidence (1 -
// normalized variance) for the given situation, per spec §4.7.
func (e *Engine) Predict(situationKey string) (expected []float32, confidence float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	stat, ok := e.model[situationKey]
	if !ok {
		return nil, 0
	}
	return stat.Mean, stat.Confidence()
}

// Update performs the online mean/variance update for situationKey given
// the observed actual embedding (spec §4.7 "update").
func (e *Engine) Update(ctx context.Context, situationKey string, actual []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	stat, ok := e.model[situationKey]
	if !ok {
		e.model[situationKey] = vecmath.NewRunningStat(actual)
	} else {
		stat.Update(actual, learningRate)
	}
	e.snapshotLocked(ctx)
}

// WorldModelSnapshot exports the current model as the spec's
// WorldModelEntry shape, for persistence/checkpointing.
func (e *Engine) WorldModelSnapshot() map[string]*types.WorldModelEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]*types.WorldModelEntry, len(e.model))
	for key, stat := range e.model {
		out[key] = &types.WorldModelEntry{
			SituationKey:      key,
			CentroidEmbedding: stat.Mean,
			Variance:          stat.Variance,
			SampleCount:       stat.Count,
			UpdatedAt:         time.Now(),
		}
	}
	return out
}

// ProposeThought implements the prediction propose_thought handler (spec
// §4.7): if prediction_error exceeds the threshold, emits a "surprise"
// thought with salience = error. predictionError is computed by the
// caller (C11 Phase 4) via semantic distance between expected and actual.
func (e *Engine) ProposeThought(predictionError float64) *types.Thought {
	if predictionError <= e.errorThreshold {
		return nil
	}
	return &types.Thought{
		SourceModule: types.SourcePrediction,
		Content:      "that was unexpected",
		Salience:     vecmath.Clamp01(predictionError),
		Confidence:   vecmath.Clamp01(predictionError),
		EmotionTag:   types.Surprise,
		CreatedAt:    time.Now(),
	}
}

func (e *Engine) snapshotLocked(ctx context.Context) {
	if e.redis == nil {
		return
	}
	_ = e.redis.SetJSON(ctx, snapshotKey, e.model, 0)
}
