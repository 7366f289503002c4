// internal/session/file.go
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/gardencalm/internal/emotion"
	"github.com/user/gardencalm/internal/types"
)

// FileStore is a JSON-file-backed SessionStore. Each user's session lives in
// sessions/<user>.json under the root; writes go through a temp file and
// rename so a crash never leaves a half-written session behind.
type FileStore struct {
	MemoryStore
	root string
}

// NewFileStore opens (or creates) a file-backed store rooted at dir and loads
// any sessions already on disk.
func NewFileStore(dir string) (*FileStore, error) {
	s := &FileStore{root: dir}
	s.now = time.Now
	s.sessions = make(map[types.UserID]*types.SessionState)

	if err := os.MkdirAll(s.sessionsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	if err := s.loadAll(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) sessionsDir() string {
	return filepath.Join(s.root, "sessions")
}

func (s *FileStore) sessionPath(userID types.UserID) string {
	return filepath.Join(s.sessionsDir(), sanitizeFilename(string(userID))+".json")
}

func (s *FileStore) loadAll() error {
	entries, err := os.ReadDir(s.sessionsDir())
	if err != nil {
		return fmt.Errorf("read sessions dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.sessionsDir(), entry.Name()))
		if err != nil {
			return fmt.Errorf("read session file: %w", err)
		}
		var state types.SessionState
		if err := json.Unmarshal(data, &state); err != nil {
			return fmt.Errorf("unmarshal session %s: %w", entry.Name(), err)
		}
		if state.CurrentEmotion == "" {
			state.CurrentEmotion = emotion.Neutral
		}
		s.sessions[state.UserID] = &state
	}
	return nil
}

func (s *FileStore) persist(userID types.UserID) error {
	state, ok := s.sessions[userID]
	if !ok {
		return nil
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	path := s.sessionPath(userID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp session: %w", err)
	}
	return nil
}

func (s *FileStore) AddMessage(ctx context.Context, userID types.UserID, msg types.Message) error {
	if err := s.MemoryStore.AddMessage(ctx, userID, msg); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(userID)
}

func (s *FileStore) UpdateCurrentEmotion(ctx context.Context, userID types.UserID, code emotion.Code) error {
	if err := s.MemoryStore.UpdateCurrentEmotion(ctx, userID, code); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(userID)
}

func (s *FileStore) TouchLastSuggestion(ctx context.Context, userID types.UserID, at time.Time) error {
	if err := s.MemoryStore.TouchLastSuggestion(ctx, userID, at); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(userID)
}

func (s *FileStore) TouchLastDeepCall(ctx context.Context, userID types.UserID, at time.Time) error {
	if err := s.MemoryStore.TouchLastDeepCall(ctx, userID, at); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(userID)
}

func (s *FileStore) UpdateMetrics(ctx context.Context, userID types.UserID, metrics types.SessionMetrics) error {
	if err := s.MemoryStore.UpdateMetrics(ctx, userID, metrics); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(userID)
}

// Cleanup evicts expired sessions and removes their files.
func (s *FileStore) Cleanup(ctx context.Context, maxAge time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for userID, state := range s.sessions {
		if now.Sub(lastActivity(state)) > maxAge {
			delete(s.sessions, userID)
			if err := os.Remove(s.sessionPath(userID)); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove session file: %w", err)
			}
		}
	}
	return nil
}

// sanitizeFilename maps a user id like "telegram:12345" onto a safe file
// name.
func sanitizeFilename(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
