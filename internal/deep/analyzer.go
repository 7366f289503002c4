// internal/deep/analyzer.go
package deep

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/user/gardencalm/internal/emotion"
	"github.com/user/gardencalm/internal/types"
	"github.com/user/gardencalm/pkg/llm"
)

const analyzeTimeout = 30 * time.Second

// LLMAnalyzer runs the expensive secondary pass through a chat-completion
// provider, reading the whole emotional arc instead of a single message.
type LLMAnalyzer struct {
	provider llm.Provider
	log      *slog.Logger
	timeout  time.Duration
}

func NewLLMAnalyzer(provider llm.Provider, logger *slog.Logger) *LLMAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMAnalyzer{
		provider: provider,
		log:      logger.With("component", "deep"),
		timeout:  analyzeTimeout,
	}
}

// Analyze produces a free-text insight over the session's deep context.
func (a *LLMAnalyzer) Analyze(ctx context.Context, userID types.UserID, dc types.DeepContext) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.provider.Complete(ctx, []llm.Message{
		{Role: "system", Content: deepSystemPrompt},
		{Role: "user", Content: renderDeepContext(dc)},
	})
	if err != nil {
		return "", fmt.Errorf("deep analyze: %w", err)
	}

	insight := strings.TrimSpace(resp.Content)
	if insight == "" {
		return "", fmt.Errorf("deep analyze: empty insight")
	}
	a.log.Debug("deep analysis complete", "user", userID, "tokens", resp.Usage.TotalTokens)
	return insight, nil
}

const deepSystemPrompt = `You are the reflective layer of a wellness companion.
You receive a session's emotional timeline, a condensed snapshot, and rolling metrics.
Write a short, warm observation (3-5 sentences) about what the user seems to be going through
and one gentle, concrete thing that could help. Speak to the user directly. No lists, no headers.`

func renderDeepContext(dc types.DeepContext) string {
	var b strings.Builder

	b.WriteString("Emotional timeline:\n")
	for _, p := range dc.Timeline {
		fmt.Fprintf(&b, "[%s] %s (%.2f): %s\n",
			p.At.Format("15:04"), emotion.Name(p.Code), p.Confidence, p.Message)
	}

	if dc.Snapshot != "" {
		b.WriteString("\n")
		b.WriteString(dc.Snapshot)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nSession metrics: %d messages since last deep look, blend score %.1f, short streak %d.\n",
		dc.Metrics.MessagesSinceDeep, dc.Metrics.BlendScore, dc.Metrics.ShortStreak)
	return b.String()
}
