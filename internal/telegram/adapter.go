package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/gardencalm/internal/empathy"
	"github.com/user/gardencalm/internal/reply"
	"github.com/user/gardencalm/internal/types"
)

const maxTelegramMessage = 4096

// Generator produces the companion's reply for one analyzed message.
type Generator interface {
	Reply(ctx context.Context, text string, rc types.ReplyContext) (string, error)
}

// Adapter bridges Telegram long-polling to the session engine.
type Adapter struct {
	bot      *tgbotapi.BotAPI
	orch     *empathy.Orchestrator
	gen      Generator
	fallback *reply.TemplateGenerator
	log      *slog.Logger

	mu    sync.Mutex
	chats map[types.UserID]int64
}

// New creates a Telegram adapter.
func New(token string, orch *empathy.Orchestrator, gen Generator, logger *slog.Logger) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		bot:      bot,
		orch:     orch,
		gen:      gen,
		fallback: reply.NewTemplateGenerator(),
		log:      logger.With("component", "telegram"),
		chats:    make(map[types.UserID]int64),
	}, nil
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := telegramUserID(msg.From.ID)
	a.rememberChat(userID, msg.Chat.ID)

	if msg.IsCommand() {
		a.handleCommand(ctx, msg, userID)
		return
	}

	chatID := msg.Chat.ID
	result, err := a.orch.AnalyzeMessage(ctx, userID, msg.Text)
	if err != nil {
		a.log.Error("analyze failed", "user", userID, "error", err)
		a.sendResponse(chatID, "Sorry, something went wrong. Let's try again in a moment.")
		return
	}

	out, err := a.gen.Reply(ctx, msg.Text, result.Reply)
	if err != nil {
		a.log.Warn("reply generation failed, using template", "error", err)
		out, _ = a.fallback.Reply(ctx, msg.Text, result.Reply)
	}
	a.sendResponse(chatID, out)

	if result.Suggestion.Suggest {
		a.sendResponse(chatID, reply.SuggestionText(result.Suggestion.Code)+
			"\n\nReply /accept to start or /decline to keep talking.")
	}
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message, userID types.UserID) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		a.sendResponse(chatID, "Hi, I'm GardenCalm. I'm here to listen. "+
			"Tell me how you're feeling, and I'll suggest a short meditation when it might help.")

	case "accept":
		summary := a.orch.OnMeditationAccepted(ctx, userID)
		a.sendResponse(chatID, "Wonderful. Find a comfortable position and follow your breath for a few minutes.\n\n"+summary)

	case "decline":
		a.orch.OnMeditationDeclined(userID)
		a.sendResponse(chatID, "That's okay. I'm here whenever you want to keep talking.")

	case "status":
		a.sendResponse(chatID, a.renderStatus(userID))

	case "summary":
		a.sendResponse(chatID, a.orch.RequestLongSummary(userID))

	default:
		a.sendResponse(chatID, "Unknown command. Available: /start, /accept, /decline, /status, /summary")
	}
}

func (a *Adapter) renderStatus(userID types.UserID) string {
	readiness := a.orch.Readiness(userID)
	recs := a.orch.Recommended(userID, 3)

	var b strings.Builder
	if readiness.Ready {
		b.WriteString("A meditation could help right now.\n")
	} else {
		b.WriteString("No meditation needed at the moment.\n")
	}
	if len(recs) == 0 {
		b.WriteString("No emotional signal yet. Tell me what's on your mind.")
		return b.String()
	}
	b.WriteString("What I'm hearing most:\n")
	for _, rec := range recs {
		fmt.Fprintf(&b, "- %s (%.1f)\n", rec.Code, rec.Score)
	}
	return strings.TrimRight(b.String(), "\n")
}

// DeliverInsight is registered with the delivery registry under the
// "telegram:" prefix. It reaches users seen during this process lifetime.
func (a *Adapter) DeliverInsight(userID types.UserID, insight string) error {
	a.mu.Lock()
	chatID, ok := a.chats[userID]
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("no known chat for %s", userID)
	}
	a.sendResponse(chatID, insight)
	return nil
}

func (a *Adapter) rememberChat(userID types.UserID, chatID int64) {
	a.mu.Lock()
	a.chats[userID] = chatID
	a.mu.Unlock()
}

func (a *Adapter) sendResponse(chatID int64, text string) {
	parts := splitMessage(text)
	for _, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := a.bot.Send(msg); err != nil {
			// Retry without markdown if it fails
			msg.ParseMode = ""
			if _, err := a.bot.Send(msg); err != nil {
				a.log.Error("send message failed", "error", err)
			}
		}
	}
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

func telegramUserID(id int64) types.UserID {
	return types.UserID("telegram:" + strconv.FormatInt(id, 10))
}
