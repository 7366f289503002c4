// internal/classify/llm.go
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/user/gardencalm/internal/emotion"
	"github.com/user/gardencalm/internal/types"
	"github.com/user/gardencalm/pkg/llm"
)

const classifyTimeout = 10 * time.Second

// LLMClassifier classifies one message per call through a chat-completion
// provider. Errors bubble up so the caller can substitute the keyword
// fallback; this type never degrades silently.
type LLMClassifier struct {
	provider llm.Provider
	log      *slog.Logger
	timeout  time.Duration
}

func NewLLMClassifier(provider llm.Provider, logger *slog.Logger) *LLMClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMClassifier{
		provider: provider,
		log:      logger.With("component", "classifier"),
		timeout:  classifyTimeout,
	}
}

// rawVerdict is the JSON shape the model is instructed to return.
type rawVerdict struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
	Hint       string  `json:"hint"`
	Insight    string  `json:"insight"`
	Snapshot   string  `json:"snapshot"`
}

func (c *LLMClassifier) Classify(ctx context.Context, text string, recent []types.Message) (types.Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]llm.Message, 0, len(recent)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt()})
	for _, msg := range recent {
		messages = append(messages, llm.Message{Role: string(msg.Role), Content: msg.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: text})

	resp, err := c.provider.Complete(ctx, messages)
	if err != nil {
		return types.Classification{}, fmt.Errorf("classify: %w", err)
	}

	cls, err := parseVerdict(resp.Content)
	if err != nil {
		return types.Classification{}, err
	}
	c.log.Debug("classified", "emotion", cls.Code, "confidence", cls.Confidence)
	return cls, nil
}

// parseVerdict extracts and validates the JSON verdict from model output,
// tolerating code fences and surrounding prose.
func parseVerdict(content string) (types.Classification, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return types.Classification{}, fmt.Errorf("no JSON object in classifier output")
	}

	var raw rawVerdict
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return types.Classification{}, fmt.Errorf("parse classifier output: %w", err)
	}

	code := emotion.Code(strings.ToUpper(strings.TrimSpace(raw.Emotion)))
	if !emotion.Valid(code) {
		return types.Classification{}, fmt.Errorf("unknown emotion code %q", raw.Emotion)
	}

	confidence := raw.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return types.Classification{
		Code:       code,
		Confidence: confidence,
		Hint:       limitWords(raw.Hint, maxHintWords),
		Insight:    limitWords(raw.Insight, maxInsightWords),
		Snapshot:   limitWords(raw.Snapshot, maxSnapshotWords),
	}, nil
}

func systemPrompt() string {
	var b strings.Builder
	b.WriteString("You classify the emotional state behind one chat message from a wellness companion user.\n")
	b.WriteString("Valid emotion codes:\n")
	for _, code := range emotion.All {
		fmt.Fprintf(&b, "- %s: %s\n", code, emotion.Name(code))
	}
	b.WriteString("\nRespond with only a JSON object:\n")
	b.WriteString(`{"emotion":"<code>","confidence":<0..1>,"hint":"<reply guidance, max 15 words>",`)
	b.WriteString(`"insight":"<observation about the user, max 20 words>",`)
	b.WriteString(`"snapshot":"<third-person scene description, max 30 words>"}`)
	return b.String()
}
