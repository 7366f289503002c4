// internal/types/ids.go
package types

import (
	"strings"

	"github.com/google/uuid"
)

type UserID string
type MessageID string
type AnalysisID string

func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

func NewAnalysisID() AnalysisID {
	return AnalysisID(uuid.New().String())
}

// NewUserID builds a channel-scoped user id, e.g. "telegram:12345".
func NewUserID(parts ...string) UserID {
	return UserID(strings.Join(parts, ":"))
}
