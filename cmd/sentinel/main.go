package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/franklin001/feishu-sentinel/internal/biz"
	"github.com/franklin001/feishu-sentinel/internal/biz/usecase"
	"github.com/franklin001/feishu-sentinel/internal/conf"
	"github.com/franklin001/feishu-sentinel/internal/data"
	"github.com/franklin001/feishu-sentinel/internal/infra/feishu"
	"github.com/franklin001/feishu-sentinel/internal/server"
	"github.com/franklin001/feishu-sentinel/internal/service"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := conf.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Initialize clients
	feishuClient := feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)

	// Initialize repository layer
	repos, err := data.NewRepositories(feishuClient, cfg)
	if err != nil {
		log.Fatalf("Failed to create repositories: %v", err)
	}

	fmt.Printf("[Sentinel] Data directory: %s\n", cfg.DataDir)
	if cfg.TopicDBPath != "" {
		fmt.Printf("[Sentinel] Topic DB: %s\n", cfg.TopicDBPath)
	} else {
		fmt.Println("[Sentinel] Topics are in-memory and reset on restart")
	}

	// Initialize usecase layer
	ucs := &biz.Usecases{
		Analyze:    usecase.NewAnalyzeUsecase(repos.Message, repos.Sentiment, repos.Export),
		Moderation: usecase.NewModerationUsecase(repos.TopicState, repos.Topic, cfg.Moderation.ConfidenceThreshold),
	}

	// Initialize service layer
	analyzeSvc := service.NewAnalyzeService(ucs.Analyze, repos.Message,
		cfg.Analyze.DefaultWindow, cfg.Analyze.MinWindowMinutes, cfg.Analyze.MaxWindowMinutes)
	moderationSvc := service.NewModerationService(ucs.Moderation, repos.Message, repos.Audit,
		cfg.Moderation.CountdownSeconds)

	// Initialize server
	srv := server.NewSentinelServer(feishuClient, analyzeSvc, moderationSvc)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		srv.Stop()
		os.Exit(0)
	}()

	fmt.Println("Starting Feishu Sentinel...")
	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
