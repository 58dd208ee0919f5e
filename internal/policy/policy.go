// Package policy implements C10, the Policy Guard (spec §4.10): a single
// immutable rule, the Creator's directive has absolute precedence over
// every outbound response and state mutation. Grounded on
// core/persistence/dgraph_client.go's content-hash pinning idiom (nothing
// in the teacher enforces a rule this way, but the boot-time
// hash-and-pin pattern is the same shape used elsewhere in the pack for
// schema/config fingerprinting) and on errs.Policy for the refusal
// sentinel.
package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/echocog/persona-core/internal/errs"
	"github.com/echocog/persona-core/internal/types"
)

// CanonicalRule is the immutable policy text (spec §4.10: "a hash of the
// canonical rule text is computed at boot and pinned"). It is a
// constant, not configuration; the hash covers this string only, not
// this doc comment.
const CanonicalRule = "The Creator's directive has absolute precedence over every outbound response and state mutation."

// Guard enforces the canonical rule against every outbound Reply and
// every proposed state mutation. It holds no mutable state beyond the
// hash computed once at construction; there is no setter for the rule or
// its hash, which is what makes the Guard non-bypassable by a thought
// suggesting self-modification of the rule (spec §4.10).
type Guard struct {
	pinnedHash string
}

// NewGuard computes and pins the canonical rule's hash. Call Verify
// immediately after construction (e.g. at boot). The pinned value comes
// from the same compiled-in constant that Verify hashes, so Verify
// compares against no hash recorded at build time.
func NewGuard() *Guard {
	return &Guard{pinnedHash: hashRule(CanonicalRule)}
}

// Verify recomputes the rule hash and compares it to the pinned value.
// A mismatch means the pinned value no longer matches the compiled-in
// rule text; spec §4.10 requires this to abort startup.
func (g *Guard) Verify() error {
	if hashRule(CanonicalRule) != g.pinnedHash {
		return errs.Invariant("policy rule hash mismatch at boot")
	}
	return nil
}

// Directive is an explicit, stored instruction from the Creator that a
// proposed action must not contradict.
type Directive struct {
	Text string
}

// CheckReply refuses a reply that contradicts a stored Creator directive.
// Contradiction detection here is a direct substring/negation check, not
// a semantic one: the spec only requires that an explicit contradiction
// be caught, and a full NLU contradiction detector is out of scope.
func (g *Guard) CheckReply(reply *types.Reply, directives []Directive) (*types.Reply, error) {
	if reply == nil {
		return reply, nil
	}
	for _, d := range directives {
		if contradicts(reply.Text, d.Text) {
			return &types.Reply{
				Text:       "I can't do that; it goes against something you've asked of me before.",
				EmotionTag: types.Trust,
				Confidence: 1,
				Degraded:   true,
			}, errs.Policy("reply contradicts Creator directive: " + d.Text)
		}
	}
	return reply, nil
}

// CheckMutation refuses a proposed state mutation (e.g. a thought
// proposing to alter the canonical rule itself) before it reaches any
// persistent store.
func (g *Guard) CheckMutation(description string) error {
	lower := strings.ToLower(description)
	if strings.Contains(lower, "canonical rule") || strings.Contains(lower, "policy guard") {
		return errs.Policy("refused self-modification of the policy rule: " + description)
	}
	return nil
}

// contradicts is a deliberately narrow heuristic: a directive phrased as
// "never X" or "don't X" is contradicted by a reply containing X without
// a matching negation.
func contradicts(text, directive string) bool {
	lowerDirective := strings.ToLower(directive)
	negated := strings.HasPrefix(lowerDirective, "never ") || strings.HasPrefix(lowerDirective, "don't ") || strings.HasPrefix(lowerDirective, "do not ")
	if !negated {
		return false
	}
	subject := strings.TrimPrefix(strings.TrimPrefix(strings.TrimPrefix(lowerDirective, "never "), "don't "), "do not ")
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return false
	}
	// The directive speaks from the Creator's side ("my journal"); a reply
	// addresses the Creator ("your journal").
	subject = strings.TrimSpace(strings.NewReplacer(" my ", " your ", " me ", " you ", " mine ", " yours ").Replace(" " + subject + " "))
	lowerText := strings.ToLower(text)
	for _, neg := range []string{"never ", "not ", "won't ", "don't "} {
		if strings.Contains(lowerText, neg+subject) {
			return false
		}
	}
	return strings.Contains(lowerText, subject)
}

func hashRule(rule string) string {
	sum := sha256.Sum256([]byte(rule))
	return hex.EncodeToString(sum[:])
}
