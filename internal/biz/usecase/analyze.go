package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/franklin001/feishu-sentinel/internal/biz/domain"
	"github.com/franklin001/feishu-sentinel/internal/biz/repo"
)

// ErrNoMessages is returned when a window holds no usable messages after
// filtering. Callers render a benign notice, not an error.
var ErrNoMessages = errors.New("no messages in window")

// AnalyzeUsecase runs the sentiment analysis flow: collect a message window,
// classify every message, fold the verdicts into a summary and write the
// export.
type AnalyzeUsecase struct {
	messageRepo repo.MessageRepo
	classifier  repo.ClassifierRepo
	exportRepo  repo.SentimentExportRepo
}

// NewAnalyzeUsecase creates a new analyze usecase
func NewAnalyzeUsecase(
	messageRepo repo.MessageRepo,
	classifier repo.ClassifierRepo,
	exportRepo repo.SentimentExportRepo,
) *AnalyzeUsecase {
	return &AnalyzeUsecase{
		messageRepo: messageRepo,
		classifier:  classifier,
		exportRepo:  exportRepo,
	}
}

// Collect fetches the channel history since the cutoff and drops
// non-substantive entries: automated senders, command invocations and
// empty-after-trim texts. Message text is trimmed before classification.
func (uc *AnalyzeUsecase) Collect(ctx context.Context, chatID string, since time.Time) ([]domain.Message, error) {
	history, err := uc.messageRepo.GetHistorySince(ctx, chatID, since)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	var eligible []domain.Message
	for _, msg := range history {
		if !msg.InWindow(since) {
			continue
		}
		if !msg.IsSubstantive() {
			continue
		}
		msg.Content = strings.TrimSpace(msg.Content)
		eligible = append(eligible, msg)
	}
	return eligible, nil
}

// Analyze classifies every message in the window exactly once, in the order
// the source yields them, writes the export and returns the summary.
// Returns ErrNoMessages when nothing in the window is eligible. Any failure
// before aggregation completes discards all partial work.
func (uc *AnalyzeUsecase) Analyze(ctx context.Context, chatID string, since time.Time) (domain.Summary, error) {
	messages, err := uc.Collect(ctx, chatID, since)
	if err != nil {
		return domain.Summary{}, err
	}

	var batch []domain.Classified
	for _, msg := range messages {
		label, confidence, err := uc.classifier.Classify(ctx, msg.Content)
		if err != nil {
			return domain.Summary{}, fmt.Errorf("classify message: %w", err)
		}
		batch = append(batch, domain.Classified{Message: msg, Label: label, Confidence: confidence})
	}

	summary, ok := domain.Summarize(batch)
	if !ok {
		return domain.Summary{}, ErrNoMessages
	}

	if uc.exportRepo != nil {
		if err := uc.exportRepo.WriteExport(ctx, batch); err != nil {
			return domain.Summary{}, fmt.Errorf("write export: %w", err)
		}
	}
	return summary, nil
}
