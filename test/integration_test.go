//go:build integration

package test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/gardencalm/internal/classify"
	"github.com/user/gardencalm/internal/deep"
	"github.com/user/gardencalm/internal/delivery"
	"github.com/user/gardencalm/internal/emotion"
	"github.com/user/gardencalm/internal/empathy"
	"github.com/user/gardencalm/internal/reply"
	"github.com/user/gardencalm/internal/session"
	"github.com/user/gardencalm/internal/types"
)

func anxious(conf float64) types.Classification {
	return types.Classification{
		Code:       emotion.Anxiety,
		Confidence: conf,
		Hint:       "offer grounding",
		Snapshot:   "user is anxious",
	}
}

func sad(conf float64) types.Classification {
	return types.Classification{
		Code:       emotion.Sadness,
		Confidence: conf,
		Snapshot:   "user is down",
	}
}

// Repeated anxious messages earn a meditation suggestion, acceptance returns
// a session summary, and the session survives a store reopen.
func TestSuggestionFlowWithFileStore(t *testing.T) {
	dir := t.TempDir()
	store, err := session.NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	orch := empathy.NewOrchestrator(empathy.DefaultConfig(), empathy.Deps{
		Store:      store,
		Classifier: classify.NewScripted(anxious(0.9), anxious(0.9)),
		Fallback:   classify.Fallback,
	})

	ctx := context.Background()
	const user = types.UserID("telegram:1001")

	first, err := orch.AnalyzeMessage(ctx, user, "I can't stop worrying")
	if err != nil {
		t.Fatal(err)
	}
	if first.Suggestion.Suggest {
		t.Fatal("first message should not trigger a suggestion")
	}

	second, err := orch.AnalyzeMessage(ctx, user, "my heart is racing again")
	if err != nil {
		t.Fatal(err)
	}
	if !second.Suggestion.Suggest {
		t.Fatal("second anxious message should trigger a suggestion")
	}
	if second.Suggestion.Code != emotion.Anxiety {
		t.Errorf("suggestion code = %v", second.Suggestion.Code)
	}

	summary := orch.OnMeditationAccepted(ctx, user)
	if summary == "" {
		t.Error("acceptance should return a summary")
	}

	// Reopen the store and verify the session survived.
	reopened, err := session.NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	msgs, err := reopened.RecentMessages(ctx, user, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(msgs))
	}
	state, err := reopened.GetOrCreate(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if state.CurrentEmotion != emotion.Anxiety {
		t.Errorf("persisted emotion = %v", state.CurrentEmotion)
	}
	if state.LastSuggestion.IsZero() {
		t.Error("persisted last suggestion should be stamped")
	}
}

// A dead classifier degrades to the keyword fallback without losing the
// message.
func TestClassifierOutageFallsBack(t *testing.T) {
	classifier := classify.NewScripted()
	classifier.Err = errors.New("provider unreachable")

	orch := empathy.NewOrchestrator(empathy.DefaultConfig(), empathy.Deps{
		Store:      session.NewMemoryStore(),
		Classifier: classifier,
		Fallback:   classify.Fallback,
	})

	result, err := orch.AnalyzeMessage(context.Background(), "api:u1", "I feel so panicked right now")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Classification.Fallback {
		t.Error("classification should be marked as fallback")
	}
	if result.Classification.Code != emotion.Anxiety {
		t.Errorf("fallback code = %v", result.Classification.Code)
	}
	if result.Classification.Confidence != 0.3 {
		t.Errorf("fallback confidence = %v", result.Classification.Confidence)
	}
}

type recordingAnalyzer struct {
	mu    sync.Mutex
	calls []types.DeepContext
}

func (a *recordingAnalyzer) Analyze(ctx context.Context, userID types.UserID, dc types.DeepContext) (string, error) {
	a.mu.Lock()
	a.calls = append(a.calls, dc)
	a.mu.Unlock()
	return "you mention racing thoughts when evenings come up", nil
}

// Blended emotions escalate into the deep queue; the worker's insight routes
// through the delivery registry to the registered transport.
func TestEscalationDeliversInsight(t *testing.T) {
	queue := deep.NewQueue(1)
	analyzer := &recordingAnalyzer{}

	var mu sync.Mutex
	var delivered []string
	reg := delivery.NewRegistry()
	reg.Register("api:", func(userID types.UserID, message string) error {
		mu.Lock()
		delivered = append(delivered, message)
		mu.Unlock()
		return nil
	})

	deep.NewWorker(queue, analyzer, deep.DefaultRetryPolicy(), func(userID types.UserID, insight string) {
		if err := reg.Deliver(userID, insight); err != nil {
			t.Errorf("deliver: %v", err)
		}
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()

	orch := empathy.NewOrchestrator(empathy.DefaultConfig(), empathy.Deps{
		Store:      session.NewMemoryStore(),
		Classifier: classify.NewScripted(anxious(0.9), sad(0.9)),
		Fallback:   classify.Fallback,
		Scheduler:  queue,
	})

	const user = types.UserID("api:u2")
	if _, err := orch.AnalyzeMessage(ctx, user, "I am terrified of the meeting"); err != nil {
		t.Fatal(err)
	}
	second, err := orch.AnalyzeMessage(ctx, user, "and underneath it I just feel hollow")
	if err != nil {
		t.Fatal(err)
	}
	if !second.Escalation.Escalate {
		t.Fatalf("blended emotions should escalate, metrics: %+v", second.Metrics)
	}

	// The escalation delay is honored before the analyzer runs, so this can
	// legitimately take several seconds.
	deadline := time.Now().Add(second.Escalation.Delay + 10*time.Second)
	for {
		mu.Lock()
		n := len(delivered)
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("insight never delivered")
		}
		time.Sleep(50 * time.Millisecond)
	}

	mu.Lock()
	got := delivered[0]
	mu.Unlock()
	if !strings.Contains(got, "racing thoughts") {
		t.Errorf("delivered insight = %q", got)
	}

	analyzer.mu.Lock()
	dc := analyzer.calls[0]
	analyzer.mu.Unlock()
	if len(dc.FullHistory) != 2 {
		t.Errorf("deep context history = %d messages", len(dc.FullHistory))
	}
	if len(dc.Timeline) != 2 {
		t.Errorf("deep context timeline = %d points", len(dc.Timeline))
	}
}

// A long conversation produces a session summary on demand and the template
// reply path always answers.
func TestLongConversationSummary(t *testing.T) {
	script := make([]types.Classification, 0, 12)
	for i := 0; i < 12; i++ {
		script = append(script, anxious(0.7))
	}

	orch := empathy.NewOrchestrator(empathy.DefaultConfig(), empathy.Deps{
		Store:      session.NewMemoryStore(),
		Classifier: classify.NewScripted(script...),
		Fallback:   classify.Fallback,
	})
	gen := reply.NewTemplateGenerator()

	ctx := context.Background()
	const user = types.UserID("api:u3")
	for i := 0; i < 12; i++ {
		result, err := orch.AnalyzeMessage(ctx, user, "work keeps piling up and I cannot breathe")
		if err != nil {
			t.Fatal(err)
		}
		out, err := gen.Reply(ctx, "work keeps piling up", result.Reply)
		if err != nil {
			t.Fatal(err)
		}
		if out == "" {
			t.Fatal("template reply should never be empty")
		}
	}

	summary := orch.RequestLongSummary(user)
	if !strings.Contains(summary, "Session summary") {
		t.Errorf("summary = %q", summary)
	}
}

// A fresh session never falls to the cleanup sweep.
func TestCleanupSweep(t *testing.T) {
	store := session.NewMemoryStore()
	orch := empathy.NewOrchestrator(empathy.DefaultConfig(), empathy.Deps{
		Store:      store,
		Classifier: classify.NewScripted(anxious(0.8)),
		Fallback:   classify.Fallback,
	})

	ctx := context.Background()
	if _, err := orch.AnalyzeMessage(ctx, "api:u4", "feeling tense"); err != nil {
		t.Fatal(err)
	}

	if err := orch.Cleanup(ctx); err != nil {
		t.Fatal(err)
	}
	stats, err := orch.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Sessions != 1 {
		t.Errorf("sessions after sweep = %d", stats.Sessions)
	}
}
