// internal/empathy/suggestion.go
package empathy

import (
	"fmt"
	"sync"
	"time"

	"github.com/user/gardencalm/internal/emotion"
	"github.com/user/gardencalm/internal/types"
)

// SuggestionResult is the outcome of the meditation gate for one message.
type SuggestionResult struct {
	Suggest    bool
	Code       emotion.Code
	Confidence float64
	Reason     string
}

// Readiness is the precondition check gating whether a suggestion may be
// offered at all.
type Readiness struct {
	Ready  bool
	Reason string
	Score  float64
}

// SuggestionPolicy decides, with hysteresis and cooldown, whether to surface
// a meditation suggestion, and throttles users with low acceptance history.
type SuggestionPolicy struct {
	mu             sync.Mutex
	cfg            Config
	now            func() time.Time
	ledger         *Ledger
	lastSuggestion map[types.UserID]time.Time
	history        map[types.UserID][]SuggestionRecord
}

// NewSuggestionPolicy creates a policy reading from the given ledger.
func NewSuggestionPolicy(cfg Config, ledger *Ledger) *SuggestionPolicy {
	return &SuggestionPolicy{
		cfg:            cfg,
		now:            time.Now,
		ledger:         ledger,
		lastSuggestion: make(map[types.UserID]time.Time),
		history:        make(map[types.UserID][]SuggestionRecord),
	}
}

// ShouldSuggest runs the full gate. The ordered checks trade responsiveness
// against nagging: a single mention of an ordinary emotion never triggers,
// and an ambiguous emotional state is never forced into a suggestion.
func (p *SuggestionPolicy) ShouldSuggest(userID types.UserID, cls types.Classification) SuggestionResult {
	readiness := p.ReadinessFor(userID)
	if !readiness.Ready {
		return SuggestionResult{Reason: readiness.Reason}
	}

	top, ok := p.ledger.Top(userID)
	if !ok {
		return SuggestionResult{Reason: "no dominant emotion"}
	}

	if top.Score.Value < p.cfg.SuggestionThreshold {
		return SuggestionResult{Reason: "emotion score too low"}
	}

	margin := top.Score.Value
	if second, ok := p.ledger.Second(userID); ok {
		margin = top.Score.Value - second.Score.Value
	}
	if margin < p.cfg.SuggestionMargin {
		return SuggestionResult{Reason: "emotion margin too small"}
	}

	if !p.ledger.IsRepeated(userID, top.Code) && !emotion.Critical(top.Code) {
		return SuggestionResult{Reason: "emotion not repeated"}
	}

	if p.sinceLastSuggestion(userID) < p.cfg.SuggestionCooldown {
		return SuggestionResult{Reason: "cooldown active"}
	}

	return SuggestionResult{
		Suggest:    true,
		Code:       top.Code,
		Confidence: cls.Confidence,
		Reason:     fmt.Sprintf("%s detected", emotion.Name(top.Code)),
	}
}

// ReadinessFor checks cooldown, acceptance history, and the presence of a
// strong emotion. New users are not penalized: the acceptance rate only
// applies once enough history has accumulated.
func (p *SuggestionPolicy) ReadinessFor(userID types.UserID) Readiness {
	if p.sinceLastSuggestion(userID) < p.cfg.SuggestionCooldown {
		return Readiness{Reason: "recent suggestion"}
	}

	rate, n := p.acceptanceRate(userID)
	if rate < p.cfg.MinAcceptanceRate && n >= p.cfg.AcceptanceMinHistory {
		return Readiness{Reason: "low acceptance rate", Score: rate}
	}

	top, ok := p.ledger.Top(userID)
	if !ok || top.Score.Value < p.cfg.SuggestionThreshold {
		var score float64
		if ok {
			score = top.Score.Value
		}
		return Readiness{Reason: "no strong emotion", Score: score}
	}

	return Readiness{Ready: true, Score: top.Score.Value}
}

// MarkSuggested stamps the cooldown clock when a suggestion is surfaced,
// before the user has responded.
func (p *SuggestionPolicy) MarkSuggested(userID types.UserID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSuggestion[userID] = p.now()
}

// OnAccepted records the acceptance, soft-resets the ledger, and restarts
// the cooldown.
func (p *SuggestionPolicy) OnAccepted(userID types.UserID) {
	p.appendHistory(userID, true)
	p.ledger.ResetAfterSuggestion(userID)
	p.ledger.MarkAccepted(userID)

	p.mu.Lock()
	p.lastSuggestion[userID] = p.now()
	p.mu.Unlock()
}

// OnDeclined records the decline and restarts the cooldown.
func (p *SuggestionPolicy) OnDeclined(userID types.UserID) {
	p.appendHistory(userID, false)

	p.mu.Lock()
	p.lastSuggestion[userID] = p.now()
	p.mu.Unlock()
}

// Recommended returns up to limit emotions with positive scores, strongest
// first, for category-tailored content without re-running the full gate.
func (p *SuggestionPolicy) Recommended(userID types.UserID, limit int) []emotion.Code {
	scores := p.ledger.Scores(userID)
	live := make(map[emotion.Code]*Score, len(scores))
	for code := range scores {
		s := scores[code]
		if s.Value > 0 {
			live[code] = &s
		}
	}

	var out []emotion.Code
	for _, r := range rankScores(live) {
		if len(out) == limit {
			break
		}
		out = append(out, r.Code)
	}
	return out
}

// Cleanup evicts suggestion state for users idle beyond maxAge.
func (p *SuggestionPolicy) Cleanup(maxAge time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for userID, at := range p.lastSuggestion {
		if now.Sub(at) > maxAge {
			delete(p.lastSuggestion, userID)
			delete(p.history, userID)
		}
	}
	for userID, recs := range p.history {
		if _, ok := p.lastSuggestion[userID]; ok {
			continue
		}
		if len(recs) == 0 || now.Sub(recs[len(recs)-1].At) > maxAge {
			delete(p.history, userID)
		}
	}
}

func (p *SuggestionPolicy) sinceLastSuggestion(userID types.UserID) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	at, ok := p.lastSuggestion[userID]
	if !ok {
		return time.Duration(1<<63 - 1)
	}
	return p.now().Sub(at)
}

func (p *SuggestionPolicy) appendHistory(userID types.UserID, accepted bool) {
	code := emotion.Neutral
	if top, ok := p.ledger.Top(userID); ok {
		code = top.Code
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	recs := append(p.history[userID], SuggestionRecord{
		At:       p.now(),
		Code:     code,
		Accepted: accepted,
	})
	if len(recs) > p.cfg.SuggestionHistory {
		recs = recs[len(recs)-p.cfg.SuggestionHistory:]
	}
	p.history[userID] = recs
}

// acceptanceRate defaults to 1.0 with no history so new users start ready.
func (p *SuggestionPolicy) acceptanceRate(userID types.UserID) (float64, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	recs := p.history[userID]
	if len(recs) == 0 {
		return 1, 0
	}
	accepted := 0
	for _, r := range recs {
		if r.Accepted {
			accepted++
		}
	}
	return float64(accepted) / float64(len(recs)), len(recs)
}
