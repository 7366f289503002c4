// internal/classify/sanitize.go
package classify

import "strings"

// Word caps keep classifier output compact enough to inline into reply
// prompts and context briefs.
const (
	maxHintWords     = 15
	maxInsightWords  = 20
	maxSnapshotWords = 30
)

// limitWords trims s to at most n whitespace-separated words.
func limitWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) <= n {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[:n], " ")
}
