// internal/empathy/orchestrator.go
package empathy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/gardencalm/internal/emotion"
	"github.com/user/gardencalm/internal/types"
)

// DeepScheduler hands a deep-analysis task to the background worker after
// the policy's delay. Implementations must never block the message path.
type DeepScheduler interface {
	Schedule(userID types.UserID, delay time.Duration, dc types.DeepContext)
}

// AnalysisResult is everything one message analysis produced, for the caller
// to render and for tests to inspect.
type AnalysisResult struct {
	Message        types.Message
	Classification types.Classification
	Suggestion     SuggestionResult
	Escalation     Decision
	Metrics        types.SessionMetrics
	Reply          types.ReplyContext
}

// Deps are the orchestrator's injected collaborators.
type Deps struct {
	Store      types.SessionStore
	Classifier types.Classifier
	Fallback   func(text string) types.Classification
	Scheduler  DeepScheduler
	Tokens     TokenCounter
	Logger     *slog.Logger
}

// Orchestrator sequences one message through classification, scoring,
// suggestion and escalation policy, and context bookkeeping. It owns the
// policy components; callers own the store, classifier, and worker.
type Orchestrator struct {
	cfg        Config
	now        func() time.Time
	log        *slog.Logger
	store      types.SessionStore
	classifier types.Classifier
	fallback   func(text string) types.Classification
	scheduler  DeepScheduler

	ledger     *Ledger
	suggestion *SuggestionPolicy
	escalation *EscalationPolicy
	contexts   *ContextManager
}

// NewOrchestrator wires the policy components around the injected
// collaborators. Fallback and Logger may be nil.
func NewOrchestrator(cfg Config, deps Deps) *Orchestrator {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	ledger := NewLedger(cfg)
	return &Orchestrator{
		cfg:        cfg,
		now:        time.Now,
		log:        log.With("component", "empathy"),
		store:      deps.Store,
		classifier: deps.Classifier,
		fallback:   deps.Fallback,
		scheduler:  deps.Scheduler,
		ledger:     ledger,
		suggestion: NewSuggestionPolicy(cfg, ledger),
		escalation: NewEscalationPolicy(cfg, deps.Tokens),
		contexts:   NewContextManager(cfg),
	}
}

// AnalyzeMessage runs the full per-message pipeline. Classifier errors
// degrade to the keyword fallback; store errors abort, since a message that
// was never recorded must not move the policies.
func (o *Orchestrator) AnalyzeMessage(ctx context.Context, userID types.UserID, text string) (AnalysisResult, error) {
	now := o.now()
	msg := types.Message{
		ID:      types.NewMessageID(),
		UserID:  userID,
		Role:    types.RoleUser,
		Content: text,
		At:      now,
	}
	if err := o.store.AddMessage(ctx, userID, msg); err != nil {
		return AnalysisResult{}, fmt.Errorf("add message: %w", err)
	}

	recent, err := o.store.RecentMessages(ctx, userID, 3)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("recent messages: %w", err)
	}

	cls := o.classify(ctx, text, recent)
	cls.MessageID = msg.ID
	cls.At = now
	msg.Emotion = cls.Code

	if err := o.store.UpdateCurrentEmotion(ctx, userID, cls.Code); err != nil {
		return AnalysisResult{}, fmt.Errorf("update emotion: %w", err)
	}

	score := o.ledger.Update(userID, cls)

	snapshot := cls.Snapshot
	if snapshot == "" {
		snapshot = truncate(text, 120)
	}
	o.contexts.AddSnapshot(userID, snapshot, cls.Code, msg.ID, cls.Confidence)

	suggestion := o.suggestion.ShouldSuggest(userID, cls)

	metrics := o.escalation.CalculateMetrics(userID, msg, o.blendScore(userID), cls.Confidence)
	if err := o.store.UpdateMetrics(ctx, userID, metrics); err != nil {
		return AnalysisResult{}, fmt.Errorf("update metrics: %w", err)
	}

	decision := o.escalation.ShouldEscalate(userID, metrics, cls)

	rc := o.contexts.ReplyContext(userID, cls.Hint, cls.Insight)
	rc.RecentMessages = recent

	if suggestion.Suggest {
		o.suggestion.MarkSuggested(userID)
		if err := o.store.TouchLastSuggestion(ctx, userID, now); err != nil {
			o.log.Warn("touch last suggestion failed", "user", userID, "error", err)
		}
		o.log.Info("meditation suggested",
			"user", userID, "emotion", suggestion.Code, "score", score.Value)
	}

	if decision.Escalate {
		o.escalation.MarkEscalated(userID)
		if err := o.store.TouchLastDeepCall(ctx, userID, now); err != nil {
			o.log.Warn("touch last deep call failed", "user", userID, "error", err)
		}
		if o.scheduler != nil {
			o.scheduler.Schedule(userID, decision.Delay, o.deepContext(ctx, userID, metrics))
		}
		o.log.Info("deep analysis scheduled",
			"user", userID, "reason", decision.Reason, "delay", decision.Delay)
	}

	o.log.Debug("message analyzed",
		"user", userID,
		"emotion", cls.Code,
		"confidence", cls.Confidence,
		"fallback", cls.Fallback,
		"suggest", suggestion.Suggest,
		"escalate", decision.Escalate)

	return AnalysisResult{
		Message:        msg,
		Classification: cls,
		Suggestion:     suggestion,
		Escalation:     decision,
		Metrics:        metrics,
		Reply:          rc,
	}, nil
}

func (o *Orchestrator) classify(ctx context.Context, text string, recent []types.Message) types.Classification {
	cls, err := o.classifier.Classify(ctx, text, recent)
	if err == nil {
		return cls
	}
	o.log.Warn("classifier failed, using keyword fallback", "error", err)
	if o.fallback != nil {
		return o.fallback(text)
	}
	return types.Classification{Code: emotion.Neutral, Confidence: 0.3, Fallback: true}
}

// blendScore is the gap between the two strongest ledger entries. A single
// dominant emotion reads as 100 so it never looks blended.
func (o *Orchestrator) blendScore(userID types.UserID) float64 {
	top, ok := o.ledger.Top(userID)
	if !ok {
		return 100
	}
	second, ok := o.ledger.Second(userID)
	if !ok {
		return 100
	}
	return top.Score.Value - second.Score.Value
}

func (o *Orchestrator) deepContext(ctx context.Context, userID types.UserID, metrics types.SessionMetrics) types.DeepContext {
	state, err := o.store.GetOrCreate(ctx, userID)
	if err != nil {
		o.log.Warn("load session for deep context failed", "user", userID, "error", err)
		return o.contexts.DeepContext(userID, nil, metrics)
	}
	return o.contexts.DeepContext(userID, state.Messages, metrics)
}

// OnMeditationAccepted records acceptance, softens the accepted emotion's
// score, and returns a long summary to seed the meditation content.
func (o *Orchestrator) OnMeditationAccepted(ctx context.Context, userID types.UserID) string {
	o.suggestion.OnAccepted(userID)
	if err := o.store.TouchLastSuggestion(ctx, userID, o.now()); err != nil {
		o.log.Warn("touch last suggestion failed", "user", userID, "error", err)
	}
	o.log.Info("meditation accepted", "user", userID)
	return o.contexts.RequestLongSummary(userID)
}

// OnMeditationDeclined records the decline so the acceptance rate throttles
// future suggestions.
func (o *Orchestrator) OnMeditationDeclined(userID types.UserID) {
	o.suggestion.OnDeclined(userID)
	o.log.Info("meditation declined", "user", userID)
}

// Readiness reports whether a suggestion could surface for the user now.
func (o *Orchestrator) Readiness(userID types.UserID) Readiness {
	return o.suggestion.ReadinessFor(userID)
}

// EmotionScore pairs an emotion with its current ledger value for the
// recommendation surface.
type EmotionScore struct {
	Code  emotion.Code `json:"code"`
	Score float64      `json:"score"`
}

// Recommended lists the user's strongest emotions, best first.
func (o *Orchestrator) Recommended(userID types.UserID, limit int) []EmotionScore {
	codes := o.suggestion.Recommended(userID, limit)
	scores := o.ledger.Scores(userID)
	pairs := make([]EmotionScore, len(codes))
	for i, code := range codes {
		pairs[i] = EmotionScore{Code: code, Score: scores[code].Value}
	}
	return pairs
}

// Scores exposes the user's current ledger for diagnostics.
func (o *Orchestrator) Scores(userID types.UserID) map[string]float64 {
	out := make(map[string]float64)
	for code, score := range o.ledger.Scores(userID) {
		out[string(code)] = score.Value
	}
	return out
}

// RequestLongSummary exposes the context manager's summary on demand.
func (o *Orchestrator) RequestLongSummary(userID types.UserID) string {
	return o.contexts.RequestLongSummary(userID)
}

// Cleanup evicts users idle beyond the session TTL from every component.
func (o *Orchestrator) Cleanup(ctx context.Context) error {
	ttl := o.cfg.SessionTTL
	o.ledger.Cleanup(ttl)
	o.suggestion.Cleanup(ttl)
	o.escalation.Cleanup(ttl)
	o.contexts.Cleanup(ttl)
	if err := o.store.Cleanup(ctx, ttl); err != nil {
		return fmt.Errorf("store cleanup: %w", err)
	}
	return nil
}

// Stats reports the backing store's aggregate view.
func (o *Orchestrator) Stats(ctx context.Context) (types.StoreStats, error) {
	return o.store.Stats(ctx)
}
