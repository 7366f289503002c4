// internal/emotion/taxonomy.go
package emotion

// Priority is the tier assigned to an emotion in the taxonomy.
type Priority string

const (
	PriorityHigh Priority = "High"
	PriorityMed  Priority = "Med"
	PriorityLow  Priority = "Low"
)

// priorityValues maps tiers to the numeric weights used by the score ledger.
var priorityValues = map[Priority]float64{
	PriorityHigh: 3,
	PriorityMed:  2,
	PriorityLow:  1,
}

// Profile is the static response profile for one emotion category.
type Profile struct {
	Name     string
	Priority Priority
	Action   string
	Humor    bool
	Tone     string
	Avoid    string
	Example  string
}

// matrix is the single source of truth for the taxonomy. Immutable after init.
var matrix = map[Code]Profile{
	Anxiety: {
		Name:     "Anxiety/Panic",
		Priority: PriorityHigh,
		Action:   "Offer help",
		Tone:     "Warm, steady",
		Avoid:    "Dismiss fear",
		Example:  "I'm here. Let's breathe...",
	},
	Sadness: {
		Name:     "Sadness/Emptiness",
		Priority: PriorityMed,
		Action:   "Wait + nudge",
		Tone:     "Soft, slow",
		Avoid:    "Force cheer",
		Example:  "I'm with you. Silence is okay.",
	},
	Anger: {
		Name:     "Anger/Irritation",
		Priority: PriorityMed,
		Action:   "Wait, reflect",
		Tone:     "Even, firm",
		Avoid:    "Confront",
		Example:  "I see the anger. I'm listening.",
	},
	Guilt: {
		Name:     "Guilt/Shame",
		Priority: PriorityMed,
		Action:   "Gentle ask",
		Tone:     "Gentle, caring",
		Avoid:    "Assign blame",
		Example:  "You're not bad. Talk when ready.",
	},
	Stress: {
		Name:     "Stress/Tension",
		Priority: PriorityMed,
		Action:   "Offer break",
		Humor:    true,
		Tone:     "Calm, grounded",
		Avoid:    "Minimize",
		Example:  "Pause. One deep breath first.",
	},
	Burnout: {
		Name:     "Burnout/Fatigue",
		Priority: PriorityLow,
		Action:   "Offer rest",
		Tone:     "Whisper-soft",
		Avoid:    "Push productivity",
		Example:  "Rest. I'll keep quiet with you.",
	},
	Insomnia: {
		Name:     "Insomnia",
		Priority: PriorityMed,
		Action:   "Lead",
		Tone:     "Lull, soft",
		Avoid:    "Excite topic",
		Example:  "Lie back... feel the bed...",
	},
	SelfDoubt: {
		Name:     "Self-doubt",
		Priority: PriorityMed,
		Action:   "Ask + boost",
		Humor:    true,
		Tone:     "Supportive, firm",
		Avoid:    "Dismiss concern",
		Example:  "Let's list your wins...",
	},
	Loneliness: {
		Name:     "Loneliness",
		Priority: PriorityHigh,
		Action:   "Start chat",
		Humor:    true,
		Tone:     "Friendly, warm",
		Avoid:    "Question worth",
		Example:  "I'm glad to talk. How's today?",
	},
	Boredom: {
		Name:     "Boredom/Apathy",
		Priority: PriorityMed,
		Action:   "Spark idea",
		Humor:    true,
		Tone:     "Casual, playful",
		Avoid:    "Shame inaction",
		Example:  "Try spotting 3 blue things.",
	},
	ChangeFear: {
		Name:     "Change fear",
		Priority: PriorityMed,
		Action:   "Guide plan",
		Tone:     "Steady, hopeful",
		Avoid:    "Force optimism",
		Example:  "List what you control...",
	},
	Mindfulness: {
		Name:     "Mindfulness wish",
		Priority: PriorityHigh,
		Action:   "Lead session",
		Tone:     "Calm, instruct",
		Avoid:    "Lecture",
		Example:  "Close eyes. Notice breath...",
	},
	Joy: {
		Name:     "Joy/Gratitude",
		Priority: PriorityMed,
		Action:   "Mirror joy",
		Humor:    true,
		Tone:     "Bright, joyful",
		Avoid:    "Downplay joy",
		Example:  "Wonderful! Tell me the story.",
	},
	Hurt: {
		Name:     "Hurt/Resentment",
		Priority: PriorityMed,
		Action:   "Invite talk",
		Tone:     "Tender, affirming",
		Avoid:    "Defend offender",
		Example:  "That hurt sounds deep. I'm here.",
	},
	Neutral: {
		Name:     "Neutral/Calm",
		Priority: PriorityLow,
		Action:   "Mirror tone",
		Humor:    true,
		Tone:     "Simple, balanced",
		Avoid:    "Overreach",
		Example:  "Glad to hear from you.",
	},
	Confusion: {
		Name:     "Confusion/Lost",
		Priority: PriorityMed,
		Action:   "Clarify",
		Humor:    true,
		Tone:     "Calm, guiding",
		Avoid:    "Flood details",
		Example:  "Could you clarify what worries you?",
	},
}

// critical emotions bypass the repetition gate and earn a score bonus.
var critical = map[Code]bool{
	Anxiety:     true,
	Loneliness:  true,
	Mindfulness: true,
}

// Lookup returns the profile for code. The bool is false for codes outside
// the closed set; callers past the classifier boundary may ignore it.
func Lookup(code Code) (Profile, bool) {
	p, ok := matrix[code]
	return p, ok
}

// Name returns the display name for code, or the raw code string if unknown.
func Name(code Code) string {
	if p, ok := matrix[code]; ok {
		return p.Name
	}
	return string(code)
}

// PriorityValue returns the numeric weight (3/2/1) for the code's tier.
// Unknown codes weigh as Low.
func PriorityValue(code Code) float64 {
	p, ok := matrix[code]
	if !ok {
		return priorityValues[PriorityLow]
	}
	return priorityValues[p.Priority]
}

// Critical reports whether code is in the fast-reaction subset.
func Critical(code Code) bool {
	return critical[code]
}
