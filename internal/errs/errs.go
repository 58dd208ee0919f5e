// Package errs defines the error taxonomy of spec §7: transient external
// failures degrade, storage failures are fatal to a turn, policy
// violations are suppressed, and invariant violations refuse to start.
// Grounded on the teacher's pervasive fmt.Errorf("...: %w", err) wrapping
// (core/persistence/dgraph_client.go, core/memory/embeddings); the five
// sentinels here (the four classes plus ErrBusy) are new, since the teacher never needed to distinguish
// these classes explicitly.
package errs

import "errors"

var (
	// ErrTransient wraps a recoverable failure from an external
	// collaborator (STT, TTS, LLM, embedder, search) — degrade, don't fail.
	ErrTransient = errors.New("transient collaborator failure")

	// ErrStorage wraps a Phase 10 persistence failure — fatal to the turn.
	ErrStorage = errors.New("storage failure")

	// ErrPolicyViolation marks a response or mutation refused by the
	// Policy Guard (C10) because it contradicts the Creator's directive.
	ErrPolicyViolation = errors.New("policy violation")

	// ErrInvariantViolation marks a state that must never be reached;
	// the server refuses to start or the operator must intervene.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrBusy marks a rejected second concurrent session (spec §5).
	ErrBusy = errors.New("session busy")
)

// Transient wraps err as a transient collaborator failure.
func Transient(context string, err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{context: context, cause: err, sentinel: ErrTransient}
}

// Storage wraps err as a fatal Phase 10 storage failure.
func Storage(context string, err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{context: context, cause: err, sentinel: ErrStorage}
}

// Invariant wraps a message as an invariant violation with no underlying
// cause (the violation is the condition itself, e.g. a mismatched hash).
func Invariant(context string) error {
	return &wrapped{context: context, cause: ErrInvariantViolation, sentinel: ErrInvariantViolation}
}

// Policy wraps a message as a Policy Guard refusal.
func Policy(context string) error {
	return &wrapped{context: context, cause: ErrPolicyViolation, sentinel: ErrPolicyViolation}
}

type wrapped struct {
	context  string
	cause    error
	sentinel error
}

func (w *wrapped) Error() string {
	if w.cause == w.sentinel {
		return w.context + ": " + w.sentinel.Error()
	}
	return w.context + ": " + w.cause.Error()
}

func (w *wrapped) Unwrap() error { return w.sentinel }

// Is* helpers classify an error for the orchestrator's phase-handling.
func IsTransient(err error) bool  { return errors.Is(err, ErrTransient) }
func IsStorage(err error) bool    { return errors.Is(err, ErrStorage) }
func IsPolicy(err error) bool     { return errors.Is(err, ErrPolicyViolation) }
func IsInvariant(err error) bool  { return errors.Is(err, ErrInvariantViolation) }
func IsBusy(err error) bool       { return errors.Is(err, ErrBusy) }
