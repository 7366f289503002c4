// internal/types/models.go
package types

import (
	"time"

	"github.com/user/gardencalm/internal/emotion"
)

// Role distinguishes who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message in a user's session history.
type Message struct {
	ID      MessageID    `json:"id"`
	UserID  UserID       `json:"user_id"`
	Role    Role         `json:"role"`
	Content string       `json:"content"`
	At      time.Time    `json:"at"`
	Emotion emotion.Code `json:"emotion,omitempty"`
}

// Classification is the classifier's verdict for one message. Produced once,
// never mutated.
type Classification struct {
	Code       emotion.Code `json:"code"`
	Confidence float64      `json:"confidence"`
	Hint       string       `json:"hint"`
	Insight    string       `json:"insight"`
	Snapshot   string       `json:"snapshot"`
	At         time.Time    `json:"at"`
	MessageID  MessageID    `json:"message_id"`
	// Fallback marks a keyword-heuristic classification substituted after a
	// classifier failure. Downstream policies see its low confidence either
	// way; the flag exists so callers can log and test the branch explicitly.
	Fallback bool `json:"fallback,omitempty"`
}

// SessionMetrics are the per-message rolling metrics driving the escalation
// policy. Recomputed on every message.
type SessionMetrics struct {
	MessageLen        int     `json:"message_len"`
	RollingTokens     int     `json:"rolling_tokens"`
	ShortStreak       int     `json:"short_streak"`
	MessagesSinceDeep int     `json:"messages_since_deep"`
	MinutesSinceDeep  int     `json:"minutes_since_deep"`
	BlendScore        float64 `json:"blend_score"`
	HighUncertainty   bool    `json:"high_uncertainty"`
}

// ReplyContext is what downstream reply generators receive for one message.
type ReplyContext struct {
	RecentMessages []Message    `json:"recent_messages"`
	Brief          string       `json:"brief"`
	Emotion        emotion.Code `json:"emotion"`
	Hint           string       `json:"hint,omitempty"`
	Insight        string       `json:"insight,omitempty"`
}

// TimelinePoint is one entry of a user's emotional timeline as handed to the
// deep-analysis pass.
type TimelinePoint struct {
	At         time.Time    `json:"at"`
	Code       emotion.Code `json:"code"`
	Confidence float64      `json:"confidence"`
	Message    string       `json:"message"`
}

// DeepContext is the compact narrative bundle for the expensive deep pass.
type DeepContext struct {
	FullHistory []Message       `json:"full_history"`
	Timeline    []TimelinePoint `json:"timeline"`
	Snapshot    string          `json:"snapshot"`
	Metrics     SessionMetrics  `json:"metrics"`
}

// SessionState is the record a SessionStore keeps per user.
type SessionState struct {
	UserID         UserID         `json:"user_id"`
	Messages       []Message      `json:"messages"`
	CurrentEmotion emotion.Code   `json:"current_emotion"`
	LastSuggestion time.Time      `json:"last_suggestion"`
	LastDeepCall   time.Time      `json:"last_deep_call"`
	SessionStart   time.Time      `json:"session_start"`
	Metrics        SessionMetrics `json:"metrics"`
}

// StoreStats is the aggregate view a SessionStore reports.
type StoreStats struct {
	Sessions           int       `json:"sessions"`
	Messages           int       `json:"messages"`
	MessagesPerSession float64   `json:"messages_per_session"`
	OldestSession      time.Time `json:"oldest_session"`
	NewestSession      time.Time `json:"newest_session"`
}
