// internal/tokens/estimator.go
package tokens

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator counts tokens for rolling-window metrics. It prefers a real
// tokenizer for the configured model and degrades to a character estimate
// when encodings are unavailable (offline environments).
type Estimator struct {
	enc *tiktoken.Tiktoken
}

// NewEstimator builds an estimator for model. It tries the model's own
// encoding, then cl100k_base, then settles for the character heuristic.
func NewEstimator(model string) *Estimator {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			slog.Warn("tokenizer unavailable, using character estimate", "model", model, "error", err)
			return &Estimator{}
		}
	}
	return &Estimator{enc: enc}
}

// Count returns the token count for text.
func (e *Estimator) Count(text string) int {
	if e.enc == nil {
		return (len(text) + 3) / 4
	}
	return len(e.enc.Encode(text, nil, nil))
}
