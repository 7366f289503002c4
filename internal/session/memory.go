// internal/session/memory.go
package session

import (
	"context"
	"sync"
	"time"

	"github.com/user/gardencalm/internal/emotion"
	"github.com/user/gardencalm/internal/types"
)

// messageBound caps per-user history so a long-running session cannot grow
// without limit. Older messages are dropped oldest-first.
const messageBound = 100

// MemoryStore is the reference in-memory SessionStore. Safe for concurrent
// use; state does not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	now      func() time.Time
	sessions map[types.UserID]*types.SessionState
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      time.Now,
		sessions: make(map[types.UserID]*types.SessionState),
	}
}

// GetOrCreate returns a copy of the user's session, creating an empty one on
// first contact. Callers never see an unknown-user error.
func (s *MemoryStore) GetOrCreate(ctx context.Context, userID types.UserID) (*types.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.getOrCreate(userID)
	copied := *state
	copied.Messages = append([]types.Message(nil), state.Messages...)
	return &copied, nil
}

// AddMessage appends to the user's bounded history.
func (s *MemoryStore) AddMessage(ctx context.Context, userID types.UserID, msg types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.getOrCreate(userID)
	state.Messages = append(state.Messages, msg)
	if len(state.Messages) > messageBound {
		state.Messages = state.Messages[len(state.Messages)-messageBound:]
	}
	return nil
}

// RecentMessages returns up to n most recent messages, oldest first.
func (s *MemoryStore) RecentMessages(ctx context.Context, userID types.UserID, n int) ([]types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	msgs := state.Messages
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return append([]types.Message(nil), msgs...), nil
}

func (s *MemoryStore) UpdateCurrentEmotion(ctx context.Context, userID types.UserID, code emotion.Code) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getOrCreate(userID).CurrentEmotion = code
	return nil
}

func (s *MemoryStore) TouchLastSuggestion(ctx context.Context, userID types.UserID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getOrCreate(userID).LastSuggestion = at
	return nil
}

func (s *MemoryStore) TouchLastDeepCall(ctx context.Context, userID types.UserID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getOrCreate(userID).LastDeepCall = at
	return nil
}

func (s *MemoryStore) UpdateMetrics(ctx context.Context, userID types.UserID, metrics types.SessionMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getOrCreate(userID).Metrics = metrics
	return nil
}

// Cleanup evicts sessions whose last activity is older than maxAge.
func (s *MemoryStore) Cleanup(ctx context.Context, maxAge time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for userID, state := range s.sessions {
		if now.Sub(lastActivity(state)) > maxAge {
			delete(s.sessions, userID)
		}
	}
	return nil
}

// Stats reports the aggregate view across all live sessions.
func (s *MemoryStore) Stats(ctx context.Context) (types.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := types.StoreStats{Sessions: len(s.sessions)}
	for _, state := range s.sessions {
		stats.Messages += len(state.Messages)
		if stats.OldestSession.IsZero() || state.SessionStart.Before(stats.OldestSession) {
			stats.OldestSession = state.SessionStart
		}
		if state.SessionStart.After(stats.NewestSession) {
			stats.NewestSession = state.SessionStart
		}
	}
	if stats.Sessions > 0 {
		stats.MessagesPerSession = float64(stats.Messages) / float64(stats.Sessions)
	}
	return stats, nil
}

func (s *MemoryStore) getOrCreate(userID types.UserID) *types.SessionState {
	state, ok := s.sessions[userID]
	if !ok {
		state = &types.SessionState{
			UserID:         userID,
			CurrentEmotion: emotion.Neutral,
			SessionStart:   s.now(),
		}
		s.sessions[userID] = state
	}
	return state
}

func lastActivity(state *types.SessionState) time.Time {
	last := state.SessionStart
	if n := len(state.Messages); n > 0 && state.Messages[n-1].At.After(last) {
		last = state.Messages[n-1].At
	}
	return last
}
