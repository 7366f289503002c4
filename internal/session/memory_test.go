// internal/session/memory_test.go
package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/user/gardencalm/internal/emotion"
	"github.com/user/gardencalm/internal/types"
)

func userMessage(userID types.UserID, content string, at time.Time) types.Message {
	return types.Message{
		ID:      types.NewMessageID(),
		UserID:  userID,
		Role:    types.RoleUser,
		Content: content,
		At:      at,
	}
}

func TestGetOrCreateUnknownUser(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	state, err := store.GetOrCreate(ctx, types.UserID("fresh"))
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if state.UserID != types.UserID("fresh") {
		t.Errorf("user id = %s", state.UserID)
	}
	if state.CurrentEmotion != emotion.Neutral {
		t.Errorf("initial emotion = %s, want %s", state.CurrentEmotion, emotion.Neutral)
	}
	if len(state.Messages) != 0 {
		t.Errorf("new session has %d messages", len(state.Messages))
	}
}

func TestGetOrCreateReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	userID := types.UserID("user-1")

	if err := store.AddMessage(ctx, userID, userMessage(userID, "hello", time.Now())); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	state, _ := store.GetOrCreate(ctx, userID)
	state.Messages[0].Content = "mutated"
	state.CurrentEmotion = emotion.Anger

	reread, _ := store.GetOrCreate(ctx, userID)
	if reread.Messages[0].Content != "hello" {
		t.Error("caller mutation leaked into the store")
	}
	if reread.CurrentEmotion != emotion.Neutral {
		t.Error("caller emotion mutation leaked into the store")
	}
}

func TestMessageHistoryBounded(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	userID := types.UserID("user-1")

	for i := 0; i < messageBound+20; i++ {
		msg := userMessage(userID, fmt.Sprintf("msg %d", i), time.Now())
		if err := store.AddMessage(ctx, userID, msg); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
	}

	state, _ := store.GetOrCreate(ctx, userID)
	if len(state.Messages) != messageBound {
		t.Errorf("history length = %d, want %d", len(state.Messages), messageBound)
	}
	if state.Messages[0].Content != "msg 20" {
		t.Errorf("oldest surviving message = %q, want %q", state.Messages[0].Content, "msg 20")
	}
}

func TestRecentMessages(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	userID := types.UserID("user-1")

	for i := 0; i < 5; i++ {
		store.AddMessage(ctx, userID, userMessage(userID, fmt.Sprintf("msg %d", i), time.Now()))
	}

	recent, err := store.RecentMessages(ctx, userID, 3)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("recent length = %d, want 3", len(recent))
	}
	if recent[0].Content != "msg 2" || recent[2].Content != "msg 4" {
		t.Errorf("recent order wrong: %q .. %q", recent[0].Content, recent[2].Content)
	}

	none, err := store.RecentMessages(ctx, types.UserID("nobody"), 3)
	if err != nil || len(none) != 0 {
		t.Errorf("unknown user: msgs=%d err=%v", len(none), err)
	}
}

func TestTouchAndUpdate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	userID := types.UserID("user-1")
	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	store.UpdateCurrentEmotion(ctx, userID, emotion.Anxiety)
	store.TouchLastSuggestion(ctx, userID, at)
	store.TouchLastDeepCall(ctx, userID, at.Add(time.Minute))
	store.UpdateMetrics(ctx, userID, types.SessionMetrics{ShortStreak: 3})

	state, _ := store.GetOrCreate(ctx, userID)
	if state.CurrentEmotion != emotion.Anxiety {
		t.Errorf("emotion = %s", state.CurrentEmotion)
	}
	if !state.LastSuggestion.Equal(at) {
		t.Errorf("last suggestion = %v", state.LastSuggestion)
	}
	if !state.LastDeepCall.Equal(at.Add(time.Minute)) {
		t.Errorf("last deep call = %v", state.LastDeepCall)
	}
	if state.Metrics.ShortStreak != 3 {
		t.Errorf("metrics = %+v", state.Metrics)
	}
}

func TestCleanupByLastActivity(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	now := base
	store.now = func() time.Time { return now }

	store.AddMessage(ctx, types.UserID("stale"), userMessage(types.UserID("stale"), "old", base))
	now = base.Add(3 * time.Hour)
	store.AddMessage(ctx, types.UserID("fresh"), userMessage(types.UserID("fresh"), "new", now))

	if err := store.Cleanup(ctx, 2*time.Hour); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	stats, _ := store.Stats(ctx)
	if stats.Sessions != 1 {
		t.Fatalf("sessions = %d, want 1", stats.Sessions)
	}
	recent, _ := store.RecentMessages(ctx, types.UserID("fresh"), 1)
	if len(recent) != 1 {
		t.Error("fresh session evicted")
	}
}

func TestStats(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	now := base
	store.now = func() time.Time { return now }

	store.AddMessage(ctx, types.UserID("a"), userMessage(types.UserID("a"), "one", now))
	now = base.Add(time.Hour)
	store.AddMessage(ctx, types.UserID("b"), userMessage(types.UserID("b"), "two", now))
	store.AddMessage(ctx, types.UserID("b"), userMessage(types.UserID("b"), "three", now))

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Sessions != 2 || stats.Messages != 3 {
		t.Errorf("sessions=%d messages=%d", stats.Sessions, stats.Messages)
	}
	if stats.MessagesPerSession != 1.5 {
		t.Errorf("messages per session = %v", stats.MessagesPerSession)
	}
	if !stats.OldestSession.Equal(base) || !stats.NewestSession.Equal(base.Add(time.Hour)) {
		t.Errorf("oldest=%v newest=%v", stats.OldestSession, stats.NewestSession)
	}
}
