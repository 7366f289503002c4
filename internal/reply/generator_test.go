// internal/reply/generator_test.go
package reply

import (
	"context"
	"strings"
	"testing"

	"github.com/user/gardencalm/internal/emotion"
	"github.com/user/gardencalm/internal/types"
	"github.com/user/gardencalm/pkg/llm"
)

type stubProvider struct {
	reply string
	got   []llm.Message
}

func (p *stubProvider) Complete(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	p.got = messages
	return &llm.Response{Content: p.reply}, nil
}

func TestLLMGeneratorBuildsPrompt(t *testing.T) {
	provider := &stubProvider{reply: "I'm right here with you."}
	g := NewLLMGenerator(provider, nil)

	rc := types.ReplyContext{
		RecentMessages: []types.Message{{Role: types.RoleUser, Content: "earlier"}},
		Brief:          "user tense before a deadline",
		Emotion:        emotion.Anxiety,
		Hint:           "stay steady",
		Insight:        "deadline pressure",
	}
	out, err := g.Reply(context.Background(), "I can't calm down", rc)
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if out != "I'm right here with you." {
		t.Errorf("reply = %q", out)
	}

	if len(provider.got) != 3 {
		t.Fatalf("messages = %d, want 3", len(provider.got))
	}
	system := provider.got[0].Content
	for _, want := range []string{"Anxiety/Panic", "Warm, steady", "Dismiss fear", "user tense before a deadline", "stay steady", "deadline pressure"} {
		if !strings.Contains(system, want) {
			t.Errorf("system prompt missing %q:\n%s", want, system)
		}
	}
	if provider.got[2].Content != "I can't calm down" {
		t.Errorf("user message = %q", provider.got[2].Content)
	}
}

func TestTemplateGeneratorUsesProfile(t *testing.T) {
	g := NewTemplateGenerator()

	out, err := g.Reply(context.Background(), "so anxious", types.ReplyContext{Emotion: emotion.Anxiety})
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if !strings.Contains(out, "breathe") {
		t.Errorf("reply = %q", out)
	}

	out, _ = g.Reply(context.Background(), "hm", types.ReplyContext{Emotion: emotion.Code("??")})
	if out == "" {
		t.Error("unknown emotion produced empty reply")
	}
}

func TestSuggestionText(t *testing.T) {
	text := SuggestionText(emotion.Anxiety)
	if !strings.Contains(text, "anxiety/panic") || !strings.Contains(text, "meditation") {
		t.Errorf("suggestion text = %q", text)
	}
}
