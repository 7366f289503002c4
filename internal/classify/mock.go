// internal/classify/mock.go
package classify

import (
	"context"
	"sync"

	"github.com/user/gardencalm/internal/types"
)

// Scripted is a classifier that replays a queue of canned verdicts. Used by
// tests and the offline chat command; once the script runs out it falls back
// to the keyword heuristic.
type Scripted struct {
	mu     sync.Mutex
	script []types.Classification
	Err    error
}

func NewScripted(script ...types.Classification) *Scripted {
	return &Scripted{script: script}
}

// Push appends a verdict to the script.
func (s *Scripted) Push(cls types.Classification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, cls)
}

func (s *Scripted) Classify(ctx context.Context, text string, recent []types.Message) (types.Classification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return types.Classification{}, s.Err
	}
	if len(s.script) == 0 {
		return Fallback(text), nil
	}
	next := s.script[0]
	s.script = s.script[1:]
	return next, nil
}
