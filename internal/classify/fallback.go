// internal/classify/fallback.go
package classify

import (
	"strings"

	"github.com/user/gardencalm/internal/emotion"
	"github.com/user/gardencalm/internal/types"
)

// fallbackConfidence is deliberately low so a keyword match nudges the
// ledger without ever driving a suggestion on its own.
const fallbackConfidence = 0.3

// keywordRules are checked in order; the first match wins.
var keywordRules = []struct {
	code  emotion.Code
	words []string
}{
	{emotion.Anxiety, []string{"panic", "anxious", "anxiety", "scared", "afraid"}},
	{emotion.Sadness, []string{"sad", "empty", "hopeless", "crying"}},
	{emotion.Stress, []string{"stress", "overwhelm", "pressure", "too much"}},
	{emotion.Loneliness, []string{"alone", "lonely", "nobody"}},
	{emotion.Insomnia, []string{"sleep", "awake", "insomnia"}},
	{emotion.Joy, []string{"happy", "grateful", "joy", "wonderful"}},
	{emotion.Mindfulness, []string{"meditation", "mindful", "breathing"}},
}

// Fallback is the keyword heuristic used when the real classifier fails.
func Fallback(text string) types.Classification {
	lower := strings.ToLower(text)
	code := emotion.Neutral
	for _, rule := range keywordRules {
		if containsAny(lower, rule.words) {
			code = rule.code
			break
		}
	}
	profile, _ := emotion.Lookup(code)
	return types.Classification{
		Code:       code,
		Confidence: fallbackConfidence,
		Hint:       profile.Action,
		Snapshot:   limitWords(text, maxSnapshotWords),
		Fallback:   true,
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
