// internal/empathy/escalation.go
package empathy

import (
	"sync"
	"time"

	"github.com/user/gardencalm/internal/types"
)

// TokenCounter estimates the token cost of a text. The default is the
// chars/4 heuristic; callers may wire a real tokenizer.
type TokenCounter func(text string) int

func charEstimate(text string) int {
	return (len(text) + 3) / 4
}

// Decision is the escalation verdict for one message. Delay is advisory
// scheduling metadata for the deep-analysis queue, not a blocking sleep.
type Decision struct {
	Escalate bool
	Reason   string
	Delay    time.Duration
}

type escalationState struct {
	history   []types.Message
	metrics   types.SessionMetrics
	lastDeep  time.Time
	lastSeen  time.Time
	deepCalls int
}

// EscalationPolicy decides when the fast classifier's confidence and
// ambiguity pattern warrants the expensive deep-analysis pass, at most once
// per cooldown window per user.
type EscalationPolicy struct {
	mu     sync.Mutex
	cfg    Config
	now    func() time.Time
	count  TokenCounter
	states map[types.UserID]*escalationState
}

// NewEscalationPolicy creates a policy with the given token counter. A nil
// counter falls back to the chars/4 heuristic.
func NewEscalationPolicy(cfg Config, count TokenCounter) *EscalationPolicy {
	if count == nil {
		count = charEstimate
	}
	return &EscalationPolicy{
		cfg:    cfg,
		now:    time.Now,
		count:  count,
		states: make(map[types.UserID]*escalationState),
	}
}

// CalculateMetrics appends the message to the user's bounded history and
// recomputes the rolling metrics that drive ShouldEscalate.
func (p *EscalationPolicy) CalculateMetrics(userID types.UserID, msg types.Message, blendScore, confidence float64) types.SessionMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	state := p.getOrCreate(userID, now)
	state.lastSeen = now

	state.history = append(state.history, msg)
	if len(state.history) > p.cfg.MessageHistory {
		state.history = state.history[len(state.history)-p.cfg.MessageHistory:]
	}

	// Uncertainty must persist across at least two observations to count,
	// avoiding one-off false triggers.
	highUncertainty := confidence < 0.7 &&
		(state.metrics.HighUncertainty || confidence < 0.5)

	metrics := types.SessionMetrics{
		MessageLen:        len(msg.Content),
		RollingTokens:     p.rollingTokens(state.history),
		ShortStreak:       p.shortStreak(state.history),
		MessagesSinceDeep: state.metrics.MessagesSinceDeep + 1,
		MinutesSinceDeep:  int(now.Sub(state.lastDeep) / time.Minute),
		BlendScore:        blendScore,
		HighUncertainty:   highUncertainty,
	}
	state.metrics = metrics
	return metrics
}

// ShouldEscalate evaluates the ordered rule list; the first match wins.
func (p *EscalationPolicy) ShouldEscalate(userID types.UserID, metrics types.SessionMetrics, cls types.Classification) Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := p.getOrCreate(userID, p.now())

	if p.now().Sub(state.lastDeep) < p.cfg.EscalationCooldown {
		return Decision{Reason: "recent deep analysis"}
	}

	if metrics.HighUncertainty && cls.Confidence < 0.6 {
		return Decision{Escalate: true, Reason: "low confidence pattern", Delay: 5 * time.Second}
	}

	if metrics.BlendScore < p.cfg.BlendThreshold {
		return Decision{Escalate: true, Reason: "emotion blend detected", Delay: 10 * time.Second}
	}

	if metrics.ShortStreak >= p.cfg.ShortStreakLimit {
		return Decision{Escalate: true, Reason: "short message pattern", Delay: 5 * time.Second}
	}

	if metrics.MessageLen > p.cfg.LongMessageLen && metrics.RollingTokens > p.cfg.RollingTokenLimit {
		return Decision{Escalate: true, Reason: "complex message pattern", Delay: 15 * time.Second}
	}

	if metrics.MessagesSinceDeep > p.cfg.StaleDeepMessages && metrics.MinutesSinceDeep > p.cfg.StaleDeepMinutes {
		return Decision{Escalate: true, Reason: "session length threshold", Delay: 10 * time.Second}
	}

	return Decision{Reason: "no trigger conditions met"}
}

// MarkEscalated resets the since-last counters and increments the lifetime
// deep-call count.
func (p *EscalationPolicy) MarkEscalated(userID types.UserID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state := p.getOrCreate(userID, p.now())
	state.deepCalls++
	state.lastDeep = p.now()
	state.metrics.MessagesSinceDeep = 0
	state.metrics.MinutesSinceDeep = 0
}

// DeepCalls returns the lifetime deep-analysis count for the user.
func (p *EscalationPolicy) DeepCalls(userID types.UserID) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, ok := p.states[userID]
	if !ok {
		return 0
	}
	return state.deepCalls
}

// Cleanup evicts users idle beyond maxAge.
func (p *EscalationPolicy) Cleanup(maxAge time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for userID, state := range p.states {
		if now.Sub(state.lastSeen) > maxAge {
			delete(p.states, userID)
		}
	}
}

func (p *EscalationPolicy) getOrCreate(userID types.UserID, now time.Time) *escalationState {
	state, ok := p.states[userID]
	if !ok {
		state = &escalationState{
			// Seed the deep-call stamp in the past so a brand-new user is
			// not hard-blocked by the cooldown.
			lastDeep: now.Add(-time.Hour),
			lastSeen: now,
			metrics:  types.SessionMetrics{BlendScore: 100},
		}
		p.states[userID] = state
	}
	return state
}

// rollingTokens estimates cost over the last 10 messages.
func (p *EscalationPolicy) rollingTokens(history []types.Message) int {
	start := 0
	if len(history) > 10 {
		start = len(history) - 10
	}
	total := 0
	for _, msg := range history[start:] {
		total += p.count(msg.Content)
	}
	return total
}

// shortStreak counts consecutive trailing user messages under the short
// threshold.
func (p *EscalationPolicy) shortStreak(history []types.Message) int {
	streak := 0
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == types.RoleUser && len(history[i].Content) < p.cfg.ShortMessageLen {
			streak++
		} else {
			break
		}
	}
	return streak
}
