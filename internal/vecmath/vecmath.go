// Package vecmath provides the embedding-space math shared by episodic
// recall, semantic query, and prediction error: cosine similarity,
// exponential recency decay, and an online mean/variance update.
// Grounded on the teacher's use of gonum.org/v1/gonum for numeric work
// (listed directly in the teacher's go.mod, validated as the idiomatic
// choice for this corpus by resonancelab-psizero's direct gonum.org/v1/gonum
// import); the teacher itself never called gonum directly, so this package
// is new code in the teacher's adopted-but-unused-dependency, not an
// adaptation of an existing file.
package vecmath

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// CosineSimilarity returns the cosine similarity of a and b in [-1,1].
// Mismatched or zero-norm vectors return 0, never an error — the spec
// treats the embedder as opaque and never asks for dimension validation
// at this layer (that's the embedder/index's job, per spec §3 invariant
// E2 and the Embedder contract in §6).
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	da := make([]float64, len(a))
	db := make([]float64, len(b))
	for i := range a {
		da[i] = float64(a[i])
		db[i] = float64(b[i])
	}
	dot := floats.Dot(da, db)
	na := floats.Norm(da, 2)
	nb := floats.Norm(db, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (na * nb)
}

// SemanticDistance is 1 - cosine similarity, used by Phase 4's
// prediction_error = distance(expected, actual) (spec §4.1).
func SemanticDistance(a, b []float32) float64 {
	return 1 - CosineSimilarity(a, b)
}

// RecencyDecay computes the exponential recency weight for an event that
// occurred `age` ago, given a half-life (spec §4.2 recall formula).
func RecencyDecay(age, halflife float64) float64 {
	if halflife <= 0 {
		return 1
	}
	return math.Exp(-math.Ln2 * age / halflife)
}

// RunningStat holds an online mean/variance accumulator for the
// WorldModel's centroid+variance update (spec §4.7), following Welford's
// method with an exponential learning rate rather than a full running
// count, since the spec fixes a constant learning rate (default 0.1).
type RunningStat struct {
	Mean     []float32
	Variance float64
	Count    int64
}

// NewRunningStat seeds the accumulator with a first observation.
func NewRunningStat(first []float32) *RunningStat {
	mean := make([]float32, len(first))
	copy(mean, first)
	return &RunningStat{Mean: mean, Variance: 0, Count: 1}
}

// Update folds a new observation in with the given learning rate (spec
// §4.7 "online mean/variance update; learning rate 0.1 (config)").
func (r *RunningStat) Update(observed []float32, learningRate float64) {
	if r.Count == 0 || len(r.Mean) != len(observed) {
		r.Mean = append([]float32(nil), observed...)
		r.Variance = 0
		r.Count = 1
		return
	}

	dist := SemanticDistance(r.Mean, observed)
	r.Variance = (1-learningRate)*r.Variance + learningRate*dist*dist

	for i := range r.Mean {
		r.Mean[i] = float32((1-learningRate)*float64(r.Mean[i]) + learningRate*float64(observed[i]))
	}
	r.Count++
}

// Confidence derives the spec §4.7 "confidence = 1 - normalized variance"
// value, clamped to [0,1].
func (r *RunningStat) Confidence() float64 {
	c := 1 - r.Variance
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}

// Clamp01 clamps a score into [0,1], used throughout the salience,
// confidence, and emotion computations the spec requires to stay bounded.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
