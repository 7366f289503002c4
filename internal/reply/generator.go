// internal/reply/generator.go
package reply

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

const replyTimeout = 20 * time.Second

// LLMGenerator composes replies through a chat-completion provider, steered
// by the emotion profile's tone and the per-message hint.
type LLMGenerator struct {
	provider llm.Provider
	log      *slog.Logger
	timeout  time.Duration
}

func NewLLMGenerator(provider llm.Provider, logger *slog.Logger) *LLMGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMGenerator{
		provider: provider,
		log:      logger.With("component", "reply"),
		timeout:  replyTimeout,
	}
}

func (g *LLMGenerator) Reply(ctx context.Context, text string, rc types.ReplyContext) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	messages := make([]llm.Message, 0, len(rc.RecentMessages)+2)
	messages = append(messages, llm.Message{Role: "system", Content: replyPrompt(rc)})
	for _, msg := range rc.RecentMessages {
		messages = append(messages, llm.Message{Role: string(msg.Role), Content: msg.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: text})

	resp, err := g.provider.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	out := strings.TrimSpace(resp.Content)
	if out == "" {
		return "", fmt.Errorf("generate reply: empty response")
	}
	return out, nil
}

func replyPrompt(rc types.ReplyContext) string {
	var b strings.Builder
	b.WriteString("You are a calm, warm wellness companion. Reply in 1-3 short sentences.\n")

	if profile, ok := emotion.Lookup(rc.Emotion); ok {
		fmt.Fprintf(&b, "The user currently reads as %s. Tone: %s. Avoid: %s.\n",
			profile.Name, profile.Tone, profile.Avoid)
	}
	if rc.Brief != "" {
		fmt.Fprintf(&b, "Context so far: %s\n", rc.Brief)
	}
	if rc.Hint != "" {
		fmt.Fprintf(&b, "Guidance for this reply: %s\n", rc.Hint)
	}
	if rc.Insight != "" {
		fmt.Fprintf(&b, "Keep in mind: %s\n", rc.Insight)
	}
	return b.String()
}

// TemplateGenerator is the offline fallback: it answers straight from the
// emotion profile's example phrasing. Used when no provider is configured
// and by the local chat command.
type TemplateGenerator struct{}

func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

func (g *TemplateGenerator) Reply(ctx context.Context, text string, rc types.ReplyContext) (string, error) {
	profile, ok := emotion.Lookup(rc.Emotion)
	if !ok || profile.Example == "" {
		return "I'm here with you. Tell me more.", nil
	}
	if rc.Hint != "" {
		return fmt.Sprintf("%s (%s)", profile.Example, rc.Hint), nil
	}
	return profile.Example, nil
}

// SuggestionText renders the meditation offer for an emotion.
func SuggestionText(code emotion.Code) string {
	name := emotion.Name(code)
	return fmt.Sprintf("It sounds like %s keeps coming back. Would a short guided meditation help right now?", strings.ToLower(name))
}
