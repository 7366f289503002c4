package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/gardencalm/internal/api"
	"github.com/user/gardencalm/internal/classify"
	"github.com/user/gardencalm/internal/deep"
	"github.com/user/gardencalm/internal/delivery"
	"github.com/user/gardencalm/internal/empathy"
	"github.com/user/gardencalm/internal/maintenance"
	"github.com/user/gardencalm/internal/reply"
	"github.com/user/gardencalm/internal/session"
	"github.com/user/gardencalm/internal/telegram"
	"github.com/user/gardencalm/internal/tokens"
	"github.com/user/gardencalm/internal/types"
	"github.com/user/gardencalm/pkg/llm"
	"github.com/user/gardencalm/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gardencalm daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "gardencalm.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func newStore(kind, dataDir string) (types.SessionStore, error) {
	if kind == "file" {
		return session.NewFileStore(dataDir)
	}
	return session.NewMemoryStore(), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	// Session store
	store, err := newStore(cfg.Store, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("create session store: %w", err)
	}

	// LLM provider
	provider := openai.New(&llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})

	classifier := classify.NewLLMClassifier(provider, slog.Default())
	generator := reply.NewLLMGenerator(provider, slog.Default())
	estimator := tokens.NewEstimator(cfg.LLM.Model)

	// Deep-analysis pipeline
	queue := deep.NewQueue(int64(cfg.MaxConcurrentDeep))
	deliveryReg := delivery.NewRegistry()
	analyzer := deep.NewLLMAnalyzer(provider, slog.Default())
	deep.NewWorker(queue, analyzer, deep.DefaultRetryPolicy(), func(userID types.UserID, insight string) {
		if err := deliveryReg.Deliver(userID, insight); err != nil {
			slog.Error("insight delivery failed", "user", userID, "error", err)
		}
	}, slog.Default())

	// Orchestrator
	orch := empathy.NewOrchestrator(cfg.EmpathyConfig(), empathy.Deps{
		Store:      store,
		Classifier: classifier,
		Fallback:   classify.Fallback,
		Scheduler:  queue,
		Tokens:     estimator.Count,
		Logger:     slog.Default(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue.Start(ctx)
	defer queue.Stop()

	// HTTP and websocket API
	server := api.NewServer(orch, generator, slog.Default())
	deliveryReg.Register("api:", server.DeliverInsight)
	go func() {
		if err := server.Run(cfg.Server.Addr); err != nil {
			slog.Error("http server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	// Telegram adapter
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, orch, generator, slog.Default())
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		go adapter.Start(ctx)
		deliveryReg.Register("telegram:", adapter.DeliverInsight)
		slog.Info("telegram adapter started")
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// Session janitor
	janitor := maintenance.New(cfg.CleanupSchedule, func() error {
		return orch.Cleanup(ctx)
	}, slog.Default())
	if err := janitor.Start(); err != nil {
		return fmt.Errorf("start janitor: %w", err)
	}
	defer janitor.Stop()

	slog.Info("gardencalm started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"store", cfg.Store,
		"addr", cfg.Server.Addr,
		"max_concurrent_deep", cfg.MaxConcurrentDeep,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"pid_file", pidPath,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
