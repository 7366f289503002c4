// internal/types/interfaces.go
package types

import (
	"context"
	"time"

	"github.com/user/gardencalm/internal/emotion"
)

// SessionStore is the pluggable per-user session record store. The in-memory
// implementation is the reference; durable backends drop in behind the same
// contract. Unknown users are never an error: accessors create an empty
// session lazily.
type SessionStore interface {
	GetOrCreate(ctx context.Context, userID UserID) (*SessionState, error)
	AddMessage(ctx context.Context, userID UserID, msg Message) error
	RecentMessages(ctx context.Context, userID UserID, n int) ([]Message, error)
	UpdateCurrentEmotion(ctx context.Context, userID UserID, code emotion.Code) error
	TouchLastSuggestion(ctx context.Context, userID UserID, at time.Time) error
	TouchLastDeepCall(ctx context.Context, userID UserID, at time.Time) error
	UpdateMetrics(ctx context.Context, userID UserID, metrics SessionMetrics) error
	Cleanup(ctx context.Context, maxAge time.Duration) error
	Stats(ctx context.Context) (StoreStats, error)
}

// Classifier is the opaque fast per-message emotion classifier. On error the
// caller substitutes the keyword fallback rather than failing the message.
type Classifier interface {
	Classify(ctx context.Context, text string, recent []Message) (Classification, error)
}

// ReplyGenerator turns a reply context into user-facing text.
type ReplyGenerator interface {
	Reply(ctx context.Context, text string, rc ReplyContext) (string, error)
}

// DeepAnalyzer is the slow, expensive secondary analysis pass. Failures are
// logged by the worker and never reach the message path.
type DeepAnalyzer interface {
	Analyze(ctx context.Context, userID UserID, dc DeepContext) (string, error)
}
