// Package collaborators implements the spec §6 external collaborator
// interfaces (STT, TTS, LLM) as thin adapters plus in-process test fakes.
// Phase 9 of the consciousness loop calls LLM.complete as a fallback when
// no template matches; Phase 1 calls STT.transcribe for audio input;
// the reply path calls TTS.synthesize. All three are Non-goals as
// engines ("the STT/TTS engines themselves... the underlying LLM" are
// out of scope per spec.md); this package only supplies the interface
// contracts, a local-llama.cpp LLM adapter, and fakes.
package collaborators

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/echocog/persona-core/internal/errs"
	"github.com/echocog/persona-core/internal/types"
)

// GenerateOptions parametrizes an LLM.complete call.
type GenerateOptions struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	TopP         float64
}

// LLM is the spec §6 "LLM.complete(system_prompt, user_prompt, max_tokens)
// → text" collaborator.
type LLM interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
	Name() string
	Available() bool
}

// STT is the spec §6 "STT.transcribe(audio, format) → (text, confidence)"
// collaborator.
type STT interface {
	Transcribe(ctx context.Context, audio []byte, format string) (text string, confidence float64, err error)
}

// TTS is the spec §6 "TTS.synthesize(text, emotion_tag) → audio_bytes"
// collaborator.
type TTS interface {
	Synthesize(ctx context.Context, text string, emotionTag types.BasicEmotion) ([]byte, error)
}

// providerStats mirrors the teacher's MultiProviderLLM bookkeeping
// (core/llm/multi_provider.go ProviderStats): per-provider call counts,
// latency and an availability flag. It is kept inside MultiProviderLLM
// only; nothing outside the chain reads it.
type providerStats struct {
	TotalCalls   int64
	SuccessCalls int64
	FailedCalls  int64
	TotalLatency time.Duration
	LastUsed     time.Time
	Available    bool
}

// MultiProviderLLM is the chain of §4.9 stage 2's "invoke the external LLM
// collaborator": each available provider in order, ending in a canned
// fallback, grounded on core/llm/multi_provider.go's
// initializeProviders/Generate fallback loop. There is no remote HTTP
// provider, and the local GGUF adapter always reports itself unavailable,
// so a chain built by NewMultiProviderLLM answers from SimpleFallbackLLM.
type MultiProviderLLM struct {
	mu        sync.RWMutex
	providers []LLM
	stats     map[string]*providerStats
}

// NewMultiProviderLLM builds the chain from whichever providers are
// available, always ending in SimpleFallbackLLM so Phase 9's "if that
// also fails, return a canned apology" has a concrete last resort.
func NewMultiProviderLLM(local LLM) *MultiProviderLLM {
	mp := &MultiProviderLLM{stats: make(map[string]*providerStats)}
	if local != nil && local.Available() {
		mp.AddProvider(local)
	}
	mp.AddProvider(&SimpleFallbackLLM{})
	return mp
}

// AddProvider appends a provider to the fallback chain.
func (mp *MultiProviderLLM) AddProvider(p LLM) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.providers = append(mp.providers, p)
	mp.stats[p.Name()] = &providerStats{Available: p.Available(), LastUsed: time.Now()}
}

// Complete tries each available provider in order, falling through to the
// next on any error, and reports the last error if all fail.
func (mp *MultiProviderLLM) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	mp.mu.RLock()
	providers := make([]LLM, len(mp.providers))
	copy(providers, mp.providers)
	mp.mu.RUnlock()

	var lastErr error
	for _, p := range providers {
		if !p.Available() {
			continue
		}
		start := time.Now()
		text, err := p.Complete(ctx, systemPrompt, userPrompt, maxTokens)
		mp.updateStats(p.Name(), err == nil, time.Since(start))
		if err == nil {
			return text, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return "", errs.Transient("all LLM providers failed", lastErr)
	}
	return "", errs.Transient("llm", fmt.Errorf("no available providers"))
}

func (mp *MultiProviderLLM) updateStats(name string, success bool, latency time.Duration) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	s, ok := mp.stats[name]
	if !ok {
		s = &providerStats{Available: true}
		mp.stats[name] = s
	}
	s.TotalCalls++
	s.LastUsed = time.Now()
	s.TotalLatency += latency
	if success {
		s.SuccessCalls++
		s.Available = true
	} else {
		s.FailedCalls++
		if s.FailedCalls > 3 && float64(s.FailedCalls)/float64(s.TotalCalls) > 0.5 {
			s.Available = false
		}
	}
}

// Name identifies the chain itself for logging.
func (mp *MultiProviderLLM) Name() string { return "multi_provider" }

// Available is true as long as SimpleFallbackLLM is always in the chain.
func (mp *MultiProviderLLM) Available() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	for _, p := range mp.providers {
		if p.Available() {
			return true
		}
	}
	return false
}

// SimpleFallbackLLM is the always-available last resort of the chain: it
// returns a fixed request for more input, not an apology, grounded verbatim on core/llm/simple_fallback_provider.go's always-on,
// pattern-free stand-in.
type SimpleFallbackLLM struct{}

// Complete always succeeds with a generic, non-committal reply.
func (s *SimpleFallbackLLM) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	return "I'm still forming a thought on that; could you say more?", nil
}

// Name returns the provider name.
func (s *SimpleFallbackLLM) Name() string { return "simple_fallback" }

// Available always returns true as this is the fallback.
func (s *SimpleFallbackLLM) Available() bool { return true }

// LocalGGUFLLM adapts a local llama.cpp completion model to the LLM
// interface, grounded on core/llm/local_gguf_provider.go's Available/
// MaxTokens/env-var shape, sharing the go-skynet/go-llama.cpp dependency
// with memory.LlamaCppEmbedder.
type LocalGGUFLLM struct {
	modelPath string
	maxTokens int
}

// NewLocalGGUFLLM records the model path (LOCAL_MODEL_PATH when the given
// path is empty, mirroring core/llm/multi_provider.go's
// os.Getenv("LOCAL_MODEL_PATH") auto-detection) and the output cap. The
// path is not opened or checked; the provider is never available.
func NewLocalGGUFLLM(modelPath string, maxTokens int) *LocalGGUFLLM {
	if modelPath == "" {
		modelPath = os.Getenv("LOCAL_MODEL_PATH")
	}
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &LocalGGUFLLM{modelPath: modelPath, maxTokens: maxTokens}
}

// Complete is not wired to an actual llama.cpp completion call: the
// go-llama.cpp binding used elsewhere in this repo (memory.LlamaCppEmbedder)
// only exposes the embedding head, not a text-completion API, so this
// adapter reports itself unavailable until a completion-capable binding is
// added. Available() below reflects that.
func (l *LocalGGUFLLM) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	return "", errs.Transient("local_gguf", fmt.Errorf("local completion model not configured"))
}

// Name returns the provider name.
func (l *LocalGGUFLLM) Name() string { return "local_gguf" }

// Available is always false; see the Complete doc comment.
func (l *LocalGGUFLLM) Available() bool { return false }

// MaxTokens returns the configured output cap.
func (l *LocalGGUFLLM) MaxTokens() int { return l.maxTokens }
