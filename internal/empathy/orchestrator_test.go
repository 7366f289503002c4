// internal/empathy/orchestrator_test.go
package empathy

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/user/gardencalm/internal/emotion"
	"github.com/user/gardencalm/internal/session"
	"github.com/user/gardencalm/internal/types"
)

// stubClassifier replays canned verdicts; empty queue returns an error.
type stubClassifier struct {
	queue []types.Classification
	err   error
}

func (s *stubClassifier) Classify(ctx context.Context, text string, recent []types.Message) (types.Classification, error) {
	if s.err != nil {
		return types.Classification{}, s.err
	}
	if len(s.queue) == 0 {
		return types.Classification{}, errors.New("script exhausted")
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	return next, nil
}

type recordedTask struct {
	userID types.UserID
	delay  time.Duration
	dc     types.DeepContext
}

type recordingScheduler struct {
	tasks []recordedTask
}

func (r *recordingScheduler) Schedule(userID types.UserID, delay time.Duration, dc types.DeepContext) {
	r.tasks = append(r.tasks, recordedTask{userID, delay, dc})
}

func keywordFallback(text string) types.Classification {
	code := emotion.Neutral
	if strings.Contains(strings.ToLower(text), "panic") {
		code = emotion.Anxiety
	}
	return types.Classification{Code: code, Confidence: 0.3, Fallback: true}
}

type orchestratorFixture struct {
	o         *Orchestrator
	store     *session.MemoryStore
	clf       *stubClassifier
	scheduler *recordingScheduler
	clock     *fakeClock
}

func newOrchestratorFixture() *orchestratorFixture {
	clock := newFakeClock()
	store := session.NewMemoryStore()
	clf := &stubClassifier{}
	scheduler := &recordingScheduler{}

	o := NewOrchestrator(DefaultConfig(), Deps{
		Store:      store,
		Classifier: clf,
		Fallback:   keywordFallback,
		Scheduler:  scheduler,
	})
	o.now = clock.Now
	o.ledger.now = clock.Now
	o.suggestion.now = clock.Now
	o.escalation.now = clock.Now
	o.contexts.now = clock.Now

	return &orchestratorFixture{o: o, store: store, clf: clf, scheduler: scheduler, clock: clock}
}

func (f *orchestratorFixture) push(code emotion.Code, confidence float64, snapshot string) {
	f.clf.queue = append(f.clf.queue, types.Classification{
		Code:       code,
		Confidence: confidence,
		Hint:       "be gentle",
		Snapshot:   snapshot,
	})
}

func TestAnalyzeMessagePipeline(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()
	userID := types.UserID("user-1")

	f.push(emotion.Anxiety, 0.9, "user tense before a deadline")
	result, err := f.o.AnalyzeMessage(ctx, userID, "I am so worried about tomorrow")
	if err != nil {
		t.Fatalf("AnalyzeMessage: %v", err)
	}

	if result.Classification.Code != emotion.Anxiety {
		t.Errorf("classification = %s", result.Classification.Code)
	}
	if result.Message.Emotion != emotion.Anxiety {
		t.Errorf("message emotion = %s", result.Message.Emotion)
	}
	if result.Suggestion.Suggest {
		t.Error("single hit produced a suggestion")
	}
	if result.Escalation.Escalate {
		t.Errorf("first message escalated: %s", result.Escalation.Reason)
	}
	if result.Reply.Brief != "user tense before a deadline" {
		t.Errorf("reply brief = %q", result.Reply.Brief)
	}
	if result.Reply.Hint != "be gentle" {
		t.Errorf("reply hint = %q", result.Reply.Hint)
	}
	if len(result.Reply.RecentMessages) != 1 {
		t.Errorf("recent messages = %d", len(result.Reply.RecentMessages))
	}

	state, _ := f.store.GetOrCreate(ctx, userID)
	if state.CurrentEmotion != emotion.Anxiety {
		t.Errorf("stored emotion = %s", state.CurrentEmotion)
	}
	if len(state.Messages) != 1 {
		t.Errorf("stored messages = %d", len(state.Messages))
	}
	if state.Metrics.MessagesSinceDeep != 1 {
		t.Errorf("stored metrics = %+v", state.Metrics)
	}
}

func TestAnalyzeMessageFallbackBranch(t *testing.T) {
	f := newOrchestratorFixture()
	f.clf.err = errors.New("classifier down")

	result, err := f.o.AnalyzeMessage(context.Background(), types.UserID("user-1"), "total panic right now")
	if err != nil {
		t.Fatalf("AnalyzeMessage: %v", err)
	}
	if !result.Classification.Fallback {
		t.Error("fallback branch not flagged")
	}
	if result.Classification.Code != emotion.Anxiety {
		t.Errorf("fallback code = %s", result.Classification.Code)
	}
	if result.Classification.Confidence != 0.3 {
		t.Errorf("fallback confidence = %v", result.Classification.Confidence)
	}
}

func TestRepeatedEmotionTriggersSuggestion(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()
	userID := types.UserID("user-1")

	f.push(emotion.Anxiety, 0.9, "tense")
	first, err := f.o.AnalyzeMessage(ctx, userID, "so anxious today")
	if err != nil {
		t.Fatalf("first message: %v", err)
	}
	if first.Suggestion.Suggest {
		t.Fatal("suggestion after one hit")
	}

	f.clock.Advance(time.Minute)
	f.push(emotion.Anxiety, 0.9, "still tense")
	second, err := f.o.AnalyzeMessage(ctx, userID, "still anxious, it will not stop")
	if err != nil {
		t.Fatalf("second message: %v", err)
	}
	if !second.Suggestion.Suggest {
		t.Fatalf("no suggestion after repeat: %s", second.Suggestion.Reason)
	}
	if second.Suggestion.Code != emotion.Anxiety {
		t.Errorf("suggested code = %s", second.Suggestion.Code)
	}

	state, _ := f.store.GetOrCreate(ctx, userID)
	if !state.LastSuggestion.Equal(f.clock.Now()) {
		t.Errorf("last suggestion not stamped: %v", state.LastSuggestion)
	}

	// Cooldown immediately blocks a third.
	f.clock.Advance(time.Minute)
	f.push(emotion.Anxiety, 0.9, "again")
	third, err := f.o.AnalyzeMessage(ctx, userID, "and again")
	if err != nil {
		t.Fatalf("third message: %v", err)
	}
	if third.Suggestion.Suggest {
		t.Error("suggestion inside cooldown")
	}
}

func TestBlendedEmotionsScheduleDeepPass(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()
	userID := types.UserID("user-1")

	f.push(emotion.Anxiety, 0.9, "tense")
	if _, err := f.o.AnalyzeMessage(ctx, userID, "worried about the project deadline"); err != nil {
		t.Fatal(err)
	}
	if len(f.scheduler.tasks) != 0 {
		t.Fatal("deep pass scheduled with one emotion")
	}

	f.clock.Advance(time.Minute)
	f.push(emotion.Sadness, 0.9, "heavy")
	result, err := f.o.AnalyzeMessage(ctx, userID, "and at the same time everything feels heavy")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Escalation.Escalate {
		t.Fatalf("blend did not escalate: %s", result.Escalation.Reason)
	}
	if result.Escalation.Reason != "emotion blend detected" {
		t.Errorf("reason = %q", result.Escalation.Reason)
	}
	// Anxiety 3*0.95*1.2 = 3.42 minus Sadness 2*0.95 = 1.9.
	if !closeTo(result.Metrics.BlendScore, 1.52) {
		t.Errorf("blend score = %v, want 1.52", result.Metrics.BlendScore)
	}

	if len(f.scheduler.tasks) != 1 {
		t.Fatalf("scheduled tasks = %d, want 1", len(f.scheduler.tasks))
	}
	task := f.scheduler.tasks[0]
	if task.userID != userID || task.delay != 10*time.Second {
		t.Errorf("task = %+v", task)
	}
	if len(task.dc.FullHistory) != 2 || len(task.dc.Timeline) != 2 {
		t.Errorf("deep context: history=%d timeline=%d", len(task.dc.FullHistory), len(task.dc.Timeline))
	}

	state, _ := f.store.GetOrCreate(ctx, userID)
	if !state.LastDeepCall.Equal(f.clock.Now()) {
		t.Errorf("last deep call not stamped: %v", state.LastDeepCall)
	}

	// Hard cooldown holds for the next message.
	f.clock.Advance(time.Minute)
	f.push(emotion.Anxiety, 0.9, "tense again")
	next, err := f.o.AnalyzeMessage(ctx, userID, "worried again about all of it")
	if err != nil {
		t.Fatal(err)
	}
	if next.Escalation.Escalate {
		t.Error("escalated inside cooldown")
	}
	if len(f.scheduler.tasks) != 1 {
		t.Errorf("scheduled tasks = %d after cooldown message", len(f.scheduler.tasks))
	}
}

func TestMeditationAcceptFlow(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()
	userID := types.UserID("user-1")

	for i := 0; i < 2; i++ {
		f.push(emotion.Anxiety, 0.9, "tense")
		if _, err := f.o.AnalyzeMessage(ctx, userID, "anxious again about everything"); err != nil {
			t.Fatal(err)
		}
		f.clock.Advance(time.Minute)
	}

	summary := f.o.OnMeditationAccepted(ctx, userID)
	if !strings.HasPrefix(summary, "Session summary") {
		t.Errorf("summary = %q", summary)
	}

	records := f.o.ledger.Suggestions(userID)
	if len(records) == 0 {
		t.Fatal("no suggestion record after accept")
	}
	if !records[len(records)-1].Accepted {
		t.Error("acceptance not recorded")
	}
}

func TestOrchestratorCleanupFanOut(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()
	userID := types.UserID("user-1")

	f.push(emotion.Anxiety, 0.9, "tense")
	if _, err := f.o.AnalyzeMessage(ctx, userID, "anxious"); err != nil {
		t.Fatal(err)
	}

	f.clock.Advance(3 * time.Hour)
	if err := f.o.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	if scores := f.o.Scores(userID); len(scores) != 0 {
		t.Errorf("ledger survived cleanup: %v", scores)
	}
}

func TestOrchestratorStats(t *testing.T) {
	f := newOrchestratorFixture()
	ctx := context.Background()

	f.push(emotion.Neutral, 0.5, "ok")
	if _, err := f.o.AnalyzeMessage(ctx, types.UserID("user-1"), "hello there"); err != nil {
		t.Fatal(err)
	}

	stats, err := f.o.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Sessions != 1 || stats.Messages != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
