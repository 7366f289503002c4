// internal/empathy/ledger.go
package empathy

import (
	"math"
	"sync"
	"time"

	"github.com/user/gardencalm/internal/emotion"
	"github.com/user/gardencalm/internal/types"
)

// Score is the decaying evidence for one (user, emotion) pair. Value never
// goes negative; values below the configured epsilon snap to zero.
type Score struct {
	Value       float64
	Hits        int
	LastUpdated time.Time
}

// Ranked pairs an emotion code with its current score for ranking results.
type Ranked struct {
	Code  emotion.Code
	Score Score
}

// SuggestionRecord tracks one suggestion made to a user. Accepted is flipped
// later when the user responds.
type SuggestionRecord struct {
	At       time.Time
	Code     emotion.Code
	Accepted bool
}

type ledgerState struct {
	scores      map[emotion.Code]*Score
	lastDecay   time.Time
	suggestions []SuggestionRecord
}

// Ledger is the per-user additive, time-decaying emotion score ledger.
// Decay is lazy: it is applied on read and write, in whole quanta of
// cfg.DecayInterval, and is idempotent for a fixed "now".
type Ledger struct {
	mu     sync.Mutex
	cfg    Config
	now    func() time.Time
	states map[types.UserID]*ledgerState
}

// NewLedger creates an empty ledger with the given tuning.
func NewLedger(cfg Config) *Ledger {
	return &Ledger{
		cfg:    cfg,
		now:    time.Now,
		states: make(map[types.UserID]*ledgerState),
	}
}

// Update applies pending decay, then adds the classification's weight to its
// emotion and increments the hit counter. Returns the updated score.
func (l *Ledger) Update(userID types.UserID, cls types.Classification) Score {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	state := l.getOrCreate(userID, now)
	l.applyDecay(state, now)

	score, ok := state.scores[cls.Code]
	if !ok {
		score = &Score{}
		state.scores[cls.Code] = score
	}

	score.Value += l.weight(cls)
	score.Hits++
	score.LastUpdated = now
	return *score
}

// weight rewards high-priority, high-confidence evidence while still counting
// low-confidence signals partially.
func (l *Ledger) weight(cls types.Classification) float64 {
	w := emotion.PriorityValue(cls.Code) * (0.5 + 0.5*cls.Confidence)
	if emotion.Critical(cls.Code) {
		w *= l.cfg.CriticalBoost
	}
	return w
}

// Scores applies pending decay and returns a copy of the user's score map.
// Emotions absent from the map are implicitly score zero.
func (l *Ledger) Scores(userID types.UserID) map[emotion.Code]Score {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.states[userID]
	if !ok {
		return map[emotion.Code]Score{}
	}
	l.applyDecay(state, l.now())

	out := make(map[emotion.Code]Score, len(state.scores))
	for code, score := range state.scores {
		out[code] = *score
	}
	return out
}

// Top returns the highest-valued emotion, or false if no emotion has a
// positive score. Ties keep whichever was seen first.
func (l *Ledger) Top(userID types.UserID) (Ranked, bool) {
	return l.rank(userID, 0)
}

// Second returns the second-highest-valued emotion, or false if fewer than
// two emotions have been recorded.
func (l *Ledger) Second(userID types.UserID) (Ranked, bool) {
	return l.rank(userID, 1)
}

func (l *Ledger) rank(userID types.UserID, idx int) (Ranked, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.states[userID]
	if !ok {
		return Ranked{}, false
	}
	l.applyDecay(state, l.now())

	ranked := rankScores(state.scores)
	if idx == 0 {
		// The top slot additionally requires positive evidence.
		if len(ranked) == 0 || ranked[0].Score.Value <= 0 {
			return Ranked{}, false
		}
		return ranked[0], true
	}
	if len(ranked) <= idx {
		return Ranked{}, false
	}
	return ranked[idx], true
}

func rankScores(scores map[emotion.Code]*Score) []Ranked {
	// Iterate the closed set in declaration order so ties resolve stably.
	ranked := make([]Ranked, 0, len(scores))
	for _, code := range emotion.All {
		if score, ok := scores[code]; ok {
			ranked = append(ranked, Ranked{Code: code, Score: *score})
		}
	}
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].Score.Value > ranked[j-1].Score.Value; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	return ranked
}

// IsRepeated reports whether the emotion has been classified at least
// MinHits times for this user.
func (l *Ledger) IsRepeated(userID types.UserID, code emotion.Code) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.states[userID]
	if !ok {
		return false
	}
	score, ok := state.scores[code]
	return ok && score.Hits >= l.cfg.MinHits
}

// ResetAfterSuggestion halves the top emotion's score (soft reset, partial
// memory survives) and appends a pending suggestion record.
func (l *Ledger) ResetAfterSuggestion(userID types.UserID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.states[userID]
	if !ok {
		return
	}
	now := l.now()
	l.applyDecay(state, now)

	code := emotion.Neutral
	ranked := rankScores(state.scores)
	if len(ranked) > 0 && ranked[0].Score.Value > 0 {
		code = ranked[0].Code
		state.scores[code].Value = math.Floor(state.scores[code].Value / 2)
	}

	state.suggestions = append(state.suggestions, SuggestionRecord{
		At:   now,
		Code: code,
		// Accepted is updated by MarkAccepted once the user responds.
	})
	if len(state.suggestions) > l.cfg.SuggestionHistory {
		state.suggestions = state.suggestions[len(state.suggestions)-l.cfg.SuggestionHistory:]
	}
}

// MarkAccepted flips the most recent suggestion record to accepted.
func (l *Ledger) MarkAccepted(userID types.UserID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.states[userID]
	if !ok || len(state.suggestions) == 0 {
		return
	}
	state.suggestions[len(state.suggestions)-1].Accepted = true
}

// Suggestions returns a copy of the user's bounded suggestion records.
func (l *Ledger) Suggestions(userID types.UserID) []SuggestionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.states[userID]
	if !ok {
		return nil
	}
	out := make([]SuggestionRecord, len(state.suggestions))
	copy(out, state.suggestions)
	return out
}

// Cleanup evicts users whose most recent score update or decay stamp is older
// than maxAge. Running it twice in a row leaves the same survivors.
func (l *Ledger) Cleanup(maxAge time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for userID, state := range l.states {
		last := state.lastDecay
		for _, score := range state.scores {
			if score.LastUpdated.After(last) {
				last = score.LastUpdated
			}
		}
		if now.Sub(last) > maxAge {
			delete(l.states, userID)
		}
	}
}

func (l *Ledger) getOrCreate(userID types.UserID, now time.Time) *ledgerState {
	state, ok := l.states[userID]
	if !ok {
		state = &ledgerState{
			scores:    make(map[emotion.Code]*Score),
			lastDecay: now,
		}
		l.states[userID] = state
	}
	return state
}

// applyDecay multiplies every score by DecayRate once per whole elapsed
// DecayInterval. The decay stamp is advanced to now, discarding sub-quantum
// residue; a second call with the same now is a no-op.
func (l *Ledger) applyDecay(state *ledgerState, now time.Time) {
	elapsed := now.Sub(state.lastDecay)
	if elapsed < l.cfg.DecayInterval {
		return
	}

	periods := int(elapsed / l.cfg.DecayInterval)
	factor := math.Pow(l.cfg.DecayRate, float64(periods))

	for _, score := range state.scores {
		score.Value *= factor
		if score.Value < l.cfg.ScoreEpsilon {
			score.Value = 0
		}
	}
	state.lastDecay = now
}
