package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/franklin001/feishu-sentinel/internal/biz/domain"
	"github.com/franklin001/feishu-sentinel/internal/biz/repo"
	"github.com/franklin001/feishu-sentinel/internal/biz/usecase"
)

// AnalyzeService handles the analyze command: parse the requested window,
// run the sentiment flow and post the summary back to the chat.
type AnalyzeService struct {
	analyzeUC   *usecase.AnalyzeUsecase
	messageRepo repo.MessageRepo

	defaultWindow string
	minMinutes    int
	maxMinutes    int

	now func() time.Time // injectable for tests
}

// NewAnalyzeService creates a new analyze service
func NewAnalyzeService(
	analyzeUC *usecase.AnalyzeUsecase,
	messageRepo repo.MessageRepo,
	defaultWindow string,
	minMinutes, maxMinutes int,
) *AnalyzeService {
	return &AnalyzeService{
		analyzeUC:     analyzeUC,
		messageRepo:   messageRepo,
		defaultWindow: defaultWindow,
		minMinutes:    minMinutes,
		maxMinutes:    maxMinutes,
		now:           time.Now,
	}
}

// HandleAnalyze runs a sentiment analysis over the requested window and
// posts the result to the chat. arg is the raw command argument; empty
// means the configured default window.
func (s *AnalyzeService) HandleAnalyze(ctx context.Context, chatID, arg string) {
	window := strings.TrimSpace(arg)
	if window == "" {
		window = s.defaultWindow
	}

	minutes, err := domain.ParseWindow(window)
	if err != nil {
		s.send(ctx, chatID, "❌ Invalid window format. Use forms like `15m`, `24h` or `7d`.")
		return
	}
	if err := domain.CheckWindowBounds(minutes, s.minMinutes, s.maxMinutes); err != nil {
		s.send(ctx, chatID, fmt.Sprintf("⚠️ %s.", err.Error()))
		return
	}

	label := domain.FormatMinutes(minutes)
	s.send(ctx, chatID, fmt.Sprintf("🕒 Fetching messages from the last %s...", label))

	since := s.now().UTC().Add(-time.Duration(minutes) * time.Minute)
	summary, err := s.analyzeUC.Analyze(ctx, chatID, since)
	if errors.Is(err, usecase.ErrNoMessages) {
		s.send(ctx, chatID, "⚠️ No messages found.")
		return
	}
	if err != nil {
		fmt.Printf("[Analyze] Analysis failed for chat %s: %v\n", chatID, err)
		s.send(ctx, chatID, "Failed to analyze messages, please try again.")
		return
	}

	s.send(ctx, chatID, domain.FormatSummary(summary, label))
	s.send(ctx, chatID, "✅ Sentiment analysis complete.")
}

func (s *AnalyzeService) send(ctx context.Context, chatID, text string) {
	if err := s.messageRepo.SendText(ctx, chatID, text); err != nil {
		fmt.Printf("[Analyze] Failed to send message: %v\n", err)
	}
}
