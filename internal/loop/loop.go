// Package loop implements C11, the Consciousness Loop: the orchestrator
// that runs the ten strictly ordered phases of spec §4.1 over C1-C10.
// Grounded on core/deeptreeecho/identity.go's ProcessInput as the shape
// of "one call runs the whole cognitive cycle and returns a response,"
// generalized from that file's single reservoir-network pass to the
// spec's ten explicit phases, each delegating to its own component
// package instead of inline math.
package loop

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/echocog/persona-core/internal/attention"
	"github.com/echocog/persona-core/internal/collaborators"
	"github.com/echocog/persona-core/internal/config"
	"github.com/echocog/persona-core/internal/emotion"
	"github.com/echocog/persona-core/internal/episodic"
	"github.com/echocog/persona-core/internal/errs"
	"github.com/echocog/persona-core/internal/identity"
	"github.com/echocog/persona-core/internal/memory"
	"github.com/echocog/persona-core/internal/policy"
	"github.com/echocog/persona-core/internal/prediction"
	"github.com/echocog/persona-core/internal/response"
	"github.com/echocog/persona-core/internal/semantic"
	"github.com/echocog/persona-core/internal/types"
	"github.com/echocog/persona-core/internal/vecmath"
	"github.com/echocog/persona-core/internal/working"
	"github.com/echocog/persona-core/internal/workspace"
)

var log = slog.Default().With("component", "loop")

// dedupWindow is the spec §4's "duplicate input (same text within 2 s)"
// window.
const dedupWindow = 2 * time.Second

// creatorAbsenceThreshold is how long since the last Creator-flagged
// turn before a non-Creator turn appraises as emotion.Event.CreatorAbsentLong
// (spec §4.5's "Creator-absent -> sadness").
const creatorAbsenceThreshold = 1 * time.Hour

// noveltyFloor is the novelty level (1 - episodic similarity) above
// which an input that cleared the attention floor and didn't violate
// policy appraises as emotion.Event.NovelSafeInput.
const noveltyFloor = 0.7

// Loop wires C1-C10 together and runs process_input (spec §4.1). It is
// single-threaded per session: TryAcquireSession and ReleaseSession use
// sessionMu to guard a busy flag that enforces the single-session
// cardinality (spec §5); ProcessInput itself takes no lock.
type Loop struct {
	cfg *config.Config

	identity   *identity.Store
	episodic   *episodic.Store
	semantic   *semantic.Store
	working    *working.Store
	emotionEng *emotion.Engine
	attn       *attention.Scorer
	prediction *prediction.Engine
	ws         *workspace.Workspace
	guard      *policy.Guard
	directives *policy.DirectiveStore
	llm        collaborators.LLM
	stt        collaborators.STT
	tts        collaborators.TTS
	embedder   memory.EmbeddingProvider

	sessionMu sync.Mutex
	busy      bool

	dedupMu      sync.Mutex
	lastInput    string
	lastAt       time.Time
	lastReply    *types.Reply

	maxLenSeen    int
	lastCreatorAt time.Time
}

// New assembles a Loop from its already-constructed components. Wiring
// the Global Workspace subscribers (phase 5's required: episodic,
// semantic, working, emotion, value learning, prediction) is the
// caller's responsibility via WireWorkspace, since the subscriber
// closures need the same component instances held here.
func New(cfg *config.Config, id *identity.Store, ep *episodic.Store, sem *semantic.Store, wk *working.Store, em *emotion.Engine, attn *attention.Scorer, pred *prediction.Engine, ws *workspace.Workspace, guard *policy.Guard, directives *policy.DirectiveStore, llm collaborators.LLM, stt collaborators.STT, tts collaborators.TTS, embedder memory.EmbeddingProvider) *Loop {
	return &Loop{
		cfg: cfg, identity: id, episodic: ep, semantic: sem, working: wk,
		emotionEng: em, attn: attn, prediction: pred, ws: ws, guard: guard,
		directives: directives,
		llm:        llm, stt: stt, tts: tts, embedder: embedder,
	}
}

// AddDirective records a new Creator directive (spec §4.10's "stored
// explicit Creator directive"), fed by the server's control channel.
func (l *Loop) AddDirective(ctx context.Context, text string) error {
	return l.directives.Add(ctx, text)
}

// WireWorkspace registers the six required phase-5 subscribers. Value
// learning has no dedicated store in this repo (it is realized as a
// semantic-memory query biased toward is_creator_teaching items, since
// the spec gives value learning no entity of its own beyond
// SemanticItem.type=value); its propose_thought delegates to semantic.
func (l *Loop) WireWorkspace() {
	l.ws.Register(workspace.Subscriber{
		Name: "episodic",
		ProposeThought: func(ctx context.Context, input string) (*types.Thought, error) {
			return l.episodic.ProposeThought(ctx, input)
		},
	})
	l.ws.Register(workspace.Subscriber{
		Name: "semantic",
		ProposeThought: func(ctx context.Context, input string) (*types.Thought, error) {
			return l.semantic.ProposeThought(ctx, input)
		},
	})
	l.ws.Register(workspace.Subscriber{
		Name: "value_learning",
		ProposeThought: func(ctx context.Context, input string) (*types.Thought, error) {
			t, err := l.semantic.ProposeThought(ctx, input)
			if t != nil {
				t.SourceModule = types.SourceValueLearning
			}
			return t, err
		},
	})
	l.ws.Register(workspace.Subscriber{
		Name: "working",
		ProposeThought: func(ctx context.Context, input string) (*types.Thought, error) {
			return l.working.ProposeThought(ctx, input, textSimilarity)
		},
	})
	l.ws.Register(workspace.Subscriber{
		Name: "emotion",
		ProposeThought: func(ctx context.Context, input string) (*types.Thought, error) {
			return l.emotionEng.ProposeThought(ctx), nil
		},
		OnBroadcast: func(ctx context.Context, thought *types.Thought) {
			id, _ := l.identity.Load(ctx)
			bond := 0.0
			if id != nil {
				bond = id.BondStrength
			}
			l.emotionEng.OnBroadcast(ctx, thought, bond)
		},
	})
	l.ws.Register(workspace.Subscriber{
		Name: "prediction",
		ProposeThought: func(ctx context.Context, input string) (*types.Thought, error) {
			return nil, nil // prediction proposes via predictionError computed in Phase 4, not text input
		},
	})
}

// textSimilarity is a crude lexical-overlap stand-in used only by the
// working-memory subscriber's continuation check; real semantic
// similarity for recall/query goes through embeddings, not this.
func textSimilarity(a, b string) float64 {
	aw := strings.Fields(strings.ToLower(a))
	bw := strings.Fields(strings.ToLower(b))
	if len(aw) == 0 || len(bw) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(bw))
	for _, w := range bw {
		set[w] = struct{}{}
	}
	hits := 0
	for _, w := range aw {
		if _, ok := set[w]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(aw))
}

// TryAcquireSession enforces spec §5's single-session cardinality.
// Release must be called when the session ends.
func (l *Loop) TryAcquireSession() error {
	l.sessionMu.Lock()
	defer l.sessionMu.Unlock()
	if l.busy {
		return errs.ErrBusy
	}
	l.busy = true
	return nil
}

// ReleaseSession frees the single-session slot.
func (l *Loop) ReleaseSession() {
	l.sessionMu.Lock()
	defer l.sessionMu.Unlock()
	l.busy = false
}

// Input is the spec §4.1 process_input argument set.
type Input struct {
	Utterance   string
	IsAudio     bool
	Audio       []byte
	AudioFormat string
	FromCreator bool
}

// ProcessInput runs the ten phases over one utterance, returning exactly
// one Reply. Empty input gets a short "say it again" reply with a nil
// error. Errors are only surfaced when the identity cannot be loaded or
// created and for Phase 10 (storage failure); everything else degrades in
// place per spec §7's propagation policy.
func (l *Loop) ProcessInput(ctx context.Context, in Input) (*types.Reply, error) {
	now := time.Now()

	// Phase 1 - sensory intake.
	text := in.Utterance
	if in.IsAudio {
		sttCtx, cancel := context.WithTimeout(ctx, l.cfg.STTDeadline)
		t, confidence, err := l.stt.Transcribe(sttCtx, in.Audio, in.AudioFormat)
		cancel()
		if err != nil {
			log.Warn("stt transient failure", "err", err)
		} else if confidence < 0.3 {
			log.Warn("stt low confidence", "confidence", confidence)
		}
		text = t
	}
	text = strings.TrimSpace(text)

	if text == "" {
		return &types.Reply{Text: "I didn't catch that, could you say it again?"}, nil
	}

	if cached, ok := l.checkDedup(text, now); ok {
		return cached, nil
	}

	id, err := l.identity.Load(ctx)
	if err != nil {
		return nil, errs.Storage("load identity", err)
	}
	if id == nil {
		id, err = l.identity.EnsureGenesis(ctx, l.cfg.CreatorName)
		if err != nil {
			return nil, errs.Storage("genesis", err)
		}
	}

	// Phase 2 - attention scoring.
	textLen := len(text)
	if textLen > l.maxLenSeen {
		l.maxLenSeen = textLen
	}
	episodicSim := l.bestEpisodicSimilarity(ctx, text)
	emoState := l.emotionEng.State()
	salience := l.attn.Score(attention.Input{
		TextLength:       textLen,
		MaxLengthSeen:    l.maxLenSeen,
		MaxEpisodicSim:   episodicSim,
		EmotionIntensity: emotionIntensity(emoState),
		WorkingRelevance: l.bestWorkingRelevance(ctx, text),
		FromCreator:      in.FromCreator,
	})

	if salience < l.cfg.AttentionFloor {
		l.writeEpisodicTrace(ctx, text, in.FromCreator, salience, now)
		return &types.Reply{Text: "mm-hm.", EmotionTag: emoState.Dominant, Confidence: salience}, nil
	}

	// Phase 3 - working-memory admit.
	if _, err := l.working.Admit(ctx, text, salience, true); err != nil {
		log.Warn("working memory admit failed", "err", err)
	}

	// Phase 4 - prediction.
	situationKey := l.situationKey(ctx)
	expected, _ := l.prediction.Predict(situationKey)
	actualEmbedding, embedErr := l.embed(ctx, text)
	predictionError := 0.0
	if embedErr == nil {
		predictionError = vecmath.SemanticDistance(expected, actualEmbedding)
		l.prediction.Update(ctx, situationKey, actualEmbedding)
	}

	// Appraise this turn's event before phase 5 so the emotion
	// subscriber's propose_thought reflects the freshly updated state,
	// not last turn's (spec §4.5's appraise(event) -> new_state).
	creatorAbsentLong := !in.FromCreator && !l.lastCreatorAt.IsZero() && now.Sub(l.lastCreatorAt) > creatorAbsenceThreshold
	if in.FromCreator {
		l.lastCreatorAt = now
	}
	novelty := vecmath.Clamp01(1 - episodicSim)
	l.emotionEng.Appraise(ctx, emotion.Event{
		PositiveCreatorInteraction: in.FromCreator,
		CreatorAbsentLong:          creatorAbsentLong,
		HighPredictionError:        predictionError > l.cfg.PredictionErrorThreshold,
		NovelSafeInput:             novelty > noveltyFloor,
		FromCreator:                in.FromCreator,
	}, id.BondStrength)

	// Phase 5 - thought proposals.
	thoughts := l.ws.BroadcastExternalInput(ctx, text)
	if predThought := l.prediction.ProposeThought(predictionError); predThought != nil {
		thoughts = append(thoughts, predThought)
	}

	// Phase 6-7 - competition and winner selection.
	winner := l.ws.CompeteAndSelect(thoughts)

	// Phase 8 - global broadcast.
	l.ws.Broadcast(ctx, winner)

	// Phase 9 - response generation.
	recentWorking, _ := l.working.Focus(ctx, 3)
	llmCtx, cancelLLM := context.WithTimeout(ctx, l.cfg.LLMDeadline)
	reply := response.Generate(llmCtx, l.llm, response.Context{
		Thought:       winner,
		Emotion:       l.emotionEng.State(),
		BondStrength:  id.BondStrength,
		RecentWorking: recentWorking,
	})
	cancelLLM()

	directives, dirErr := l.directives.List(ctx)
	if dirErr != nil {
		log.Warn("loading directives failed", "err", dirErr)
	}
	checked, policyErr := l.guard.CheckReply(reply, directives)
	reply = checked
	if policyErr != nil {
		log.Warn("policy guard refused reply", "err", policyErr)
		l.emotionEng.Appraise(ctx, emotion.Event{NormViolation: true, FromCreator: in.FromCreator}, id.BondStrength)
	}

	if l.tts != nil {
		ttsCtx, cancel := context.WithTimeout(ctx, l.cfg.TTSDeadline)
		audio, err := l.tts.Synthesize(ttsCtx, reply.Text, reply.EmotionTag)
		cancel()
		if err == nil {
			reply.AudioBytes = audio
		}
	}

	// Phase 10 - learning & persistence.
	if err := l.persistTurn(ctx, text, in.FromCreator, winner, reply, actualEmbedding, id); err != nil {
		return nil, errs.Storage("phase 10 persistence", err)
	}

	l.cacheDedup(text, now, reply)
	return reply, nil
}

func (l *Loop) checkDedup(text string, now time.Time) (*types.Reply, bool) {
	l.dedupMu.Lock()
	defer l.dedupMu.Unlock()
	if l.lastReply != nil && l.lastInput == text && now.Sub(l.lastAt) < dedupWindow {
		return l.lastReply, true
	}
	return nil, false
}

func (l *Loop) cacheDedup(text string, now time.Time, reply *types.Reply) {
	l.dedupMu.Lock()
	defer l.dedupMu.Unlock()
	l.lastInput = text
	l.lastAt = now
	l.lastReply = reply
}

func (l *Loop) bestEpisodicSimilarity(ctx context.Context, text string) float64 {
	memories, err := l.episodic.Recall(ctx, text, 1)
	if err != nil || len(memories) == 0 {
		return 0
	}
	embedding, embedErr := l.embed(ctx, text)
	if embedErr != nil {
		return 0
	}
	return vecmath.CosineSimilarity(embedding, memories[0].Embedding)
}

func (l *Loop) bestWorkingRelevance(ctx context.Context, text string) float64 {
	items, err := l.working.Focus(ctx, 3)
	if err != nil || len(items) == 0 {
		return 0
	}
	best := 0.0
	for _, item := range items {
		if sim := textSimilarity(text, item.Content); sim > best {
			best = sim
		}
	}
	return best
}

func (l *Loop) situationKey(ctx context.Context) string {
	items, err := l.working.Focus(ctx, 5)
	if err != nil {
		return ""
	}
	contents := make([]string, 0, len(items))
	for _, item := range items {
		contents = append(contents, item.Content)
	}
	return prediction.SituationKey(contents)
}

func (l *Loop) embed(ctx context.Context, text string) ([]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, l.cfg.EmbedDeadline)
	defer cancel()
	emb, err := l.embedder.CreateEmbedding(embedCtx, text)
	if err != nil {
		return nil, errs.Transient("embed", err)
	}
	return emb, nil
}

func (l *Loop) writeEpisodicTrace(ctx context.Context, text string, fromCreator bool, salience float64, occurredAt time.Time) {
	participants := []string{}
	if fromCreator {
		participants = append(participants, l.cfg.CreatorName)
	}
	_, err := l.episodic.Store(ctx, episodic.Event{
		Content:      text,
		Summary:      "below attention floor",
		Participants: participants,
		ContextType:  "low_salience",
		OccurredAt:   occurredAt,
	})
	if err != nil {
		log.Warn("episodic trace write failed", "err", err)
	}
}

func (l *Loop) persistTurn(ctx context.Context, text string, fromCreator bool, winner *types.Thought, reply *types.Reply, embedding []float32, id *types.Identity) error {
	participants := []string{}
	if fromCreator {
		participants = append(participants, l.cfg.CreatorName)
	}
	emotions := map[string]float64{}
	state := l.emotionEng.State()
	for _, e := range types.BasicEmotions {
		emotions[string(e)] = state.Basics[e]
	}

	tags := []string{}
	if id != nil && id.BondStrength == 0 {
		tags = append(tags, "genesis", "first_contact")
	}

	ev := episodic.Event{
		Content:         text,
		Summary:         summarize(text),
		Participants:    participants,
		ContextType:     string(winner.SourceModule),
		Emotions:        emotions,
		SignificanceTags: tags,
		OccurredAt:      time.Now(),
		Genesis:         len(tags) > 0,
	}
	if err := l.guard.CheckMutation("append episodic memory: " + ev.Summary); err != nil {
		return fmt.Errorf("policy guard refused episodic write: %w", err)
	}
	if _, err := l.episodic.Store(ctx, ev); err != nil {
		return fmt.Errorf("append episodic memory: %w", err)
	}

	l.emotionEng.Decay(ctx, boolToBond(id))
	if err := l.working.Decay(ctx); err != nil {
		log.Warn("working memory decay failed", "err", err)
	}

	if fromCreator && state.Dominant != types.Sadness && state.Dominant != types.Fear && state.Dominant != types.Anger && state.Dominant != types.Disgust {
		if err := l.guard.CheckMutation("increase Creator bond strength"); err != nil {
			log.Warn("policy guard refused bond delta", "err", err)
		} else if err := l.identity.BondDelta(ctx, 0.01); err != nil {
			log.Warn("bond delta failed", "err", err)
		}
	}

	if err := l.guard.CheckMutation("advance growth phase"); err != nil {
		log.Warn("policy guard refused growth phase advance", "err", err)
	} else if _, err := l.identity.MaybeAdvanceGrowthPhase(ctx, time.Now()); err != nil {
		log.Warn("growth phase advance failed", "err", err)
	}

	return nil
}

func boolToBond(id *types.Identity) float64 {
	if id == nil {
		return 0
	}
	return id.BondStrength
}

func summarize(text string) string {
	if len(text) <= 80 {
		return text
	}
	return text[:77] + "..."
}

func emotionIntensity(s *types.EmotionState) float64 {
	if s == nil {
		return 0
	}
	max := 0.0
	for _, e := range types.BasicEmotions {
		if v := s.Basics[e]; v > max {
			max = v
		}
	}
	return max
}
