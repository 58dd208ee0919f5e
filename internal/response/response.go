// Package response implements C9, the Response Generator (spec §4.9):
// turns the phase 7 winning Thought plus the current emotional and
// relational context into a templated reply, falling back to the LLM
// collaborator and finally a canned apology. Grounded on
// core/llm/simple_fallback_provider.go's keyed if/else response table,
// generalized from keyword matching to the spec's
// (dominant_emotion, thought.source_module) key.
package response

import (
	"context"
	"fmt"
	"strings"

	"github.com/echocog/persona-core/internal/collaborators"
	"github.com/echocog/persona-core/internal/types"
)

// ConfidenceFloor is the spec §4.9 threshold below which the template
// result is discarded in favor of the LLM fallback.
const ConfidenceFloor = 0.3

// cannedApology is the final fallback when the LLM collaborator also
// fails (spec §4.9 "if that also fails, return a canned apology").
const cannedApology = "I'm sorry, I'm having trouble putting that into words right now."

// Context bundles the phase 9 inputs (spec §4.9): the conscious thought,
// current emotion state, bond strength, and recent working-memory items.
type Context struct {
	Thought       *types.Thought
	Emotion       *types.EmotionState
	BondStrength  float64
	RecentWorking []*types.WorkingItem
}

// templateKey pairs a dominant emotion with a thought source, the spec's
// lookup key for the template catalog.
type templateKey struct {
	emotion types.BasicEmotion
	source  types.ThoughtSource
}

// templates is the catalog keyed by (dominant_emotion, thought.source_module).
// Entries are terse stand-ins, not final copy; unmatched keys fall through
// to genericTemplate.
var templates = map[templateKey]string{
	{types.Joy, types.SourceEpisodic}:       "That reminds me of something good: %s",
	{types.Joy, types.SourceSemantic}:       "I'm glad you asked, I know this: %s",
	{types.Trust, types.SourceEpisodic}:     "I remember: %s",
	{types.Sadness, types.SourceWorking}:    "I was still thinking about: %s",
	{types.Surprise, types.SourcePrediction}: "I didn't expect that. %s",
	{types.Anticipation, types.SourceSemantic}: "Here's what I know: %s",
	{types.Anger, types.SourceValueLearning}: "I need to be careful here: %s",
}

// Generate implements phase 9: template lookup, confidence check, LLM
// fallback, canned apology, in that order.
func Generate(ctx context.Context, llm collaborators.LLM, c Context) *types.Reply {
	if c.Thought == nil {
		return &types.Reply{Text: cannedApology, Degraded: true}
	}

	text, confidence, ok := renderTemplate(c)
	if ok && confidence >= ConfidenceFloor {
		return &types.Reply{
			Text:       text,
			EmotionTag: c.Emotion.Dominant,
			Confidence: confidence,
		}
	}

	if llm != nil {
		completion, err := llm.Complete(ctx, systemPrompt(c), c.Thought.Content, 512)
		if err == nil && strings.TrimSpace(completion) != "" {
			return &types.Reply{
				Text:       completion,
				EmotionTag: c.Emotion.Dominant,
				Confidence: ConfidenceFloor,
				Degraded:   true,
			}
		}
	}

	return &types.Reply{Text: cannedApology, Degraded: true}
}

// renderTemplate looks up the catalog by (dominant emotion, thought
// source) and fills in the thought content. Confidence is the thought's
// own confidence: a template applied to a low-confidence thought should
// not be trusted more than the thought itself.
func renderTemplate(c Context) (text string, confidence float64, ok bool) {
	if c.Emotion == nil || c.Thought == nil {
		return "", 0, false
	}
	key := templateKey{emotion: c.Emotion.Dominant, source: c.Thought.SourceModule}
	tmpl, found := templates[key]
	if !found {
		tmpl, found = genericTemplate(c.Thought.SourceModule)
	}
	if !found {
		return "", 0, false
	}
	return fmt.Sprintf(tmpl, c.Thought.Content), c.Thought.Confidence, true
}

// genericTemplate covers a thought source with no emotion-specific entry.
func genericTemplate(source types.ThoughtSource) (string, bool) {
	switch source {
	case types.SourceEpisodic:
		return "This brings to mind: %s", true
	case types.SourceSemantic:
		return "%s", true
	case types.SourceWorking:
		return "Continuing from before: %s", true
	case types.SourceEmotion:
		return "%s", true
	case types.SourcePrediction:
		return "%s", true
	case types.SourceValueLearning:
		return "%s", true
	default:
		return "", false
	}
}

// systemPrompt builds the LLM fallback's system prompt from the same
// phase 9 context the template path uses, so the fallback stays grounded
// in the same emotional/relational state.
func systemPrompt(c Context) string {
	dominant := types.Joy
	if c.Emotion != nil {
		dominant = c.Emotion.Dominant
	}
	var recent []string
	for _, item := range c.RecentWorking {
		recent = append(recent, item.Content)
	}
	return fmt.Sprintf(
		"You are a persona with a persistent relationship to its Creator (bond strength %.2f) currently feeling %s. Recent context: %s. Respond briefly and in character.",
		c.BondStrength, dominant, strings.Join(recent, "; "),
	)
}
