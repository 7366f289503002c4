// internal/delivery/registry.go
package delivery

import (
	"fmt"
	"strings"
	"sync"

	"github.com/user/gardencalm/internal/types"
)

// Handler delivers a message to the user behind userID.
type Handler func(userID types.UserID, message string) error

// Registry routes outbound messages (deep insights, nudges) to the channel
// a user arrived on, keyed by user id prefix (e.g. "telegram:", "api:").
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for user ids starting with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Deliver finds the handler matching the user id prefix and calls it.
// Returns an error if no handler is registered for the prefix.
func (r *Registry) Deliver(userID types.UserID, message string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for prefix, handler := range r.handlers {
		if strings.HasPrefix(string(userID), prefix) {
			return handler(userID, message)
		}
	}
	return fmt.Errorf("no delivery handler for user: %s", userID)
}
