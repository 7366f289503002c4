package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/gardencalm/internal/classify"
	"github.com/user/gardencalm/internal/empathy"
	"github.com/user/gardencalm/internal/reply"
	"github.com/user/gardencalm/internal/session"
	"github.com/user/gardencalm/internal/types"
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

// chatCmd is an offline REPL: keyword classification, templated replies, no
// network. Useful for trying the scoring and suggestion behavior.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat locally without an LLM",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	// An empty script always falls through to the keyword fallback.
	orch := empathy.NewOrchestrator(cfg.EmpathyConfig(), empathy.Deps{
		Store:      session.NewMemoryStore(),
		Classifier: classify.NewScripted(),
		Fallback:   classify.Fallback,
	})
	gen := reply.NewTemplateGenerator()

	const userID = types.UserID("local:repl")
	ctx := context.Background()

	fmt.Println("GardenCalm local chat. Commands: /accept, /decline, /status, /quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return nil
		case "/accept":
			fmt.Println(orch.OnMeditationAccepted(ctx, userID))
			continue
		case "/decline":
			orch.OnMeditationDeclined(userID)
			fmt.Println("Okay, let's keep talking.")
			continue
		case "/status":
			printStatus(orch, userID)
			continue
		}

		result, err := orch.AnalyzeMessage(ctx, userID, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		out, _ := gen.Reply(ctx, line, result.Reply)
		fmt.Println(out)
		if result.Suggestion.Suggest {
			fmt.Println(reply.SuggestionText(result.Suggestion.Code))
		}
		if result.Escalation.Escalate {
			fmt.Printf("(taking a closer look: %s)\n", result.Escalation.Reason)
		}
	}
}

func printStatus(orch *empathy.Orchestrator, userID types.UserID) {
	readiness := orch.Readiness(userID)
	fmt.Printf("ready=%v score=%.2f reason=%s\n", readiness.Ready, readiness.Score, readiness.Reason)
	for _, rec := range orch.Recommended(userID, 3) {
		fmt.Printf("  %s %.2f\n", rec.Code, rec.Score)
	}
}
