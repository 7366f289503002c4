// internal/empathy/config.go
package empathy

import "time"

// Config holds every tunable of the empathy engine. The suggestion margin and
// the escalation blend threshold share a default but are deliberately
// separate knobs.
type Config struct {
	// Scoring ledger.
	DecayInterval time.Duration // decay quantum
	DecayRate     float64       // multiplier per elapsed quantum
	ScoreEpsilon  float64       // values below this snap to zero after decay
	CriticalBoost float64       // weight multiplier for critical emotions

	// Suggestion policy.
	SuggestionThreshold  float64       // minimum top score to suggest
	SuggestionMargin     float64       // minimum top-minus-second gap
	MinHits              int           // repetitions required for non-critical emotions
	SuggestionCooldown   time.Duration // minimum gap between suggestions
	MinAcceptanceRate    float64       // below this, throttle suggestions
	AcceptanceMinHistory int           // history length before the rate applies
	SuggestionHistory    int           // bounded per-user suggestion records

	// Escalation policy.
	EscalationCooldown time.Duration // hard minimum between deep passes
	BlendThreshold     float64       // top-minus-second gap counting as blended
	ShortMessageLen    int           // messages under this length are "short"
	ShortStreakLimit   int           // consecutive short messages to trigger
	LongMessageLen     int           // current-message length for complex narrative
	RollingTokenLimit  int           // rolling token estimate for complex narrative
	StaleDeepMessages  int           // messages since deep pass counting as stale
	StaleDeepMinutes   int           // minutes since deep pass counting as stale
	MessageHistory     int           // bounded per-user message history

	// Context manager.
	BriefMaxAge      time.Duration // brief older than this is refreshed
	BriefChangeAge   time.Duration // refresh on dominant change after this age
	BriefSnapshots   int           // snapshots per brief (and refresh trigger)
	SummarySnapshots int           // minimum snapshots before any summary
	SummaryMaxAge    time.Duration // summary older than this is refreshed
	SummaryBriefs    int           // brief refreshes since summary to trigger
	SummaryFreshFor  time.Duration // requestLongSummary reuses summaries this young

	// Session lifecycle.
	SessionTTL time.Duration // inactivity before cleanup evicts a user
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		DecayInterval: 5 * time.Minute,
		DecayRate:     0.9,
		ScoreEpsilon:  0.1,
		CriticalBoost: 1.2,

		SuggestionThreshold:  5,
		SuggestionMargin:     2,
		MinHits:              2,
		SuggestionCooldown:   30 * time.Minute,
		MinAcceptanceRate:    0.3,
		AcceptanceMinHistory: 3,
		SuggestionHistory:    10,

		EscalationCooldown: 30 * time.Minute,
		BlendThreshold:     2,
		ShortMessageLen:    20,
		ShortStreakLimit:   5,
		LongMessageLen:     200,
		RollingTokenLimit:  1000,
		StaleDeepMessages:  15,
		StaleDeepMinutes:   10,
		MessageHistory:     50,

		BriefMaxAge:      10 * time.Minute,
		BriefChangeAge:   2 * time.Minute,
		BriefSnapshots:   5,
		SummarySnapshots: 10,
		SummaryMaxAge:    30 * time.Minute,
		SummaryBriefs:    3,
		SummaryFreshFor:  5 * time.Minute,

		SessionTTL: 2 * time.Hour,
	}
}
