package telegram

import (
	"strings"
	"testing"

	"github.com/user/gardencalm/internal/types"
)

func TestSplitMessage(t *testing.T) {
	short := "Hello world"
	parts := splitMessage(short)
	if len(parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(parts))
	}
	if parts[0] != short {
		t.Errorf("expected %q, got %q", short, parts[0])
	}
}

func TestSplitMessageLong(t *testing.T) {
	long := strings.Repeat("a", 5000)
	parts := splitMessage(long)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if len(parts[0]) != maxTelegramMessage {
		t.Errorf("expected first part length %d, got %d", maxTelegramMessage, len(parts[0]))
	}
}

func TestTelegramUserID(t *testing.T) {
	if got := telegramUserID(12345); got != "telegram:12345" {
		t.Errorf("expected 'telegram:12345', got %q", got)
	}
}

func TestDeliverInsightUnknownChat(t *testing.T) {
	a := &Adapter{chats: make(map[types.UserID]int64)}
	if err := a.DeliverInsight("telegram:999", "insight"); err == nil {
		t.Fatal("expected error for unknown chat")
	}
}

func TestRememberChat(t *testing.T) {
	a := &Adapter{chats: make(map[types.UserID]int64)}
	a.rememberChat("telegram:42", 4242)

	a.mu.Lock()
	chatID := a.chats["telegram:42"]
	a.mu.Unlock()
	if chatID != 4242 {
		t.Errorf("chat id = %d", chatID)
	}
}
