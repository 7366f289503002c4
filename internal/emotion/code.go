// internal/emotion/code.go
package emotion

// Code identifies one of the fixed emotion categories a message can be
// classified into. The set is closed: codes outside this file must be
// rejected at the classifier boundary.
type Code string

const (
	Anxiety     Code = "AP"  // Anxiety/Panic
	Sadness     Code = "SD"  // Sadness/Emptiness
	Anger       Code = "AN"  // Anger/Irritation
	Guilt       Code = "GS"  // Guilt/Shame
	Stress      Code = "ST"  // Stress/Tension
	Burnout     Code = "BO"  // Burnout/Fatigue
	Insomnia    Code = "IN"  // Insomnia
	SelfDoubt   Code = "SDO" // Self-doubt
	Loneliness  Code = "LN"  // Loneliness
	Boredom     Code = "BA"  // Boredom/Apathy
	ChangeFear  Code = "CF"  // Change fear
	Mindfulness Code = "MR"  // Mindfulness wish
	Joy         Code = "JG"  // Joy/Gratitude
	Hurt        Code = "HT"  // Hurt/Resentment
	Neutral     Code = "NT"  // Neutral/Calm
	Confusion   Code = "CN"  // Confusion/Lost
)

// All lists every valid code in declaration order.
var All = [...]Code{
	Anxiety, Sadness, Anger, Guilt, Stress, Burnout, Insomnia, SelfDoubt,
	Loneliness, Boredom, ChangeFear, Mindfulness, Joy, Hurt, Neutral, Confusion,
}

// Valid reports whether code is a member of the closed set.
func Valid(code Code) bool {
	_, ok := matrix[code]
	return ok
}
