package policy

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/echocog/persona-core/internal/errs"
	"github.com/echocog/persona-core/internal/persistence"
)

const directiveKeyPrefix = "policy:directive:"

// storedDirective is a Directive plus the bookkeeping needed to list and
// persist it; Directive itself stays the narrow shape CheckReply takes.
type storedDirective struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// DirectiveStore persists the Creator's explicit directives so
// Guard.CheckReply has something other than nil to check a reply
// against. Grounded on internal/working.Store's Redis
// list-by-key-prefix idiom (spec §4.10 names no store of its own for
// directives, only that they must be checked; Redis is the same
// ephemeral store already used for working memory and the emotion
// snapshot).
type DirectiveStore struct {
	redis *persistence.RedisStore
}

// NewDirectiveStore wraps redis for directive persistence.
func NewDirectiveStore(redis *persistence.RedisStore) *DirectiveStore {
	return &DirectiveStore{redis: redis}
}

// Add records a new Creator directive.
func (s *DirectiveStore) Add(ctx context.Context, text string) error {
	d := storedDirective{ID: uuid.NewString(), Text: text, CreatedAt: time.Now()}
	if err := s.redis.SetJSON(ctx, directiveKeyPrefix+d.ID, d, 0); err != nil {
		return errs.Storage("add directive", err)
	}
	return nil
}

// List returns every stored directive, in no particular order, as the
// []Directive shape Guard.CheckReply consumes.
func (s *DirectiveStore) List(ctx context.Context) ([]Directive, error) {
	keys, err := s.redis.Keys(ctx, directiveKeyPrefix+"*")
	if err != nil {
		return nil, errs.Storage("list directives", err)
	}
	out := make([]Directive, 0, len(keys))
	for _, k := range keys {
		var d storedDirective
		ok, err := s.redis.GetJSON(ctx, k, &d)
		if err != nil || !ok {
			continue
		}
		out = append(out, Directive{Text: d.Text})
	}
	return out, nil
}
