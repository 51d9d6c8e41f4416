package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/franklin001/feishu-sentinel/internal/biz/domain"
	"github.com/franklin001/feishu-sentinel/internal/biz/usecase"
	"github.com/franklin001/feishu-sentinel/internal/conf"
	"github.com/franklin001/feishu-sentinel/internal/data"
	"github.com/franklin001/feishu-sentinel/internal/infra/feishu"
	"github.com/franklin001/feishu-sentinel/mcpserver"
)

// Standalone MCP server exposing sentinel operations over stdio. Talks to
// the Feishu REST API directly; it does not consume message events, so it
// can run next to the main bot without competing for them.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := conf.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)
	repos, err := data.NewRepositories(feishuClient, cfg)
	if err != nil {
		log.Fatalf("Failed to create repositories: %v", err)
	}

	analyzeUC := usecase.NewAnalyzeUsecase(repos.Message, repos.Sentiment, repos.Export)
	moderationUC := usecase.NewModerationUsecase(repos.TopicState, repos.Topic, cfg.Moderation.ConfidenceThreshold)

	callbacks := &mcpserver.Callbacks{
		SetTopic:   moderationUC.SetTopic,
		GetTopic:   moderationUC.GetTopic,
		ClearTopic: moderationUC.ClearTopic,
		Analyze: func(ctx context.Context, chatID, window string) (string, error) {
			minutes, err := domain.ParseWindow(window)
			if err != nil {
				return "", err
			}
			if err := domain.CheckWindowBounds(minutes, cfg.Analyze.MinWindowMinutes, cfg.Analyze.MaxWindowMinutes); err != nil {
				return "", err
			}
			since := time.Now().UTC().Add(-time.Duration(minutes) * time.Minute)
			summary, err := analyzeUC.Analyze(ctx, chatID, since)
			if err != nil {
				return "", err
			}
			return domain.FormatSummary(summary, domain.FormatMinutes(minutes)), nil
		},
	}

	srv := mcpserver.NewServer(callbacks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	fmt.Fprintln(os.Stderr, "[SentinelMCP] Serving on stdio")
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("MCP server error: %v", err)
	}
}
