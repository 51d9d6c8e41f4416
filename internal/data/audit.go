package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/franklin001/feishu-sentinel/internal/biz/domain"
	"github.com/franklin001/feishu-sentinel/internal/biz/repo"
)

const (
	exportFileName = "analyzed_messages.csv"
	auditFileName  = "filtered_messages.csv"
)

// sentimentExportRepo writes the analyze export. The file is rewritten
// wholesale on every run.
type sentimentExportRepo struct {
	path string
	mu   sync.Mutex
}

// NewSentimentExportRepo creates the sentiment export repository
func NewSentimentExportRepo(dataDir string) (repo.SentimentExportRepo, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &sentimentExportRepo{path: filepath.Join(dataDir, exportFileName)}, nil
}

func (r *sentimentExportRepo) WriteExport(ctx context.Context, batch []domain.Classified) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "author", "message", "sentiment", "confidence"}); err != nil {
		f.Close()
		return fmt.Errorf("failed to write export header: %w", err)
	}
	for _, c := range batch {
		record := []string{
			c.Message.CreateTime.UTC().Format(time.RFC3339),
			c.Message.SenderName,
			c.Message.Content,
			c.Label,
			strconv.FormatFloat(c.Confidence, 'f', 4, 64),
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return fmt.Errorf("failed to write export record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush export: %w", err)
	}
	return f.Close()
}

// moderationAuditRepo appends moderation decisions to an append-only CSV.
// The running process never reads it back.
type moderationAuditRepo struct {
	path string
	mu   sync.Mutex
}

// NewModerationAuditRepo creates the moderation audit repository
func NewModerationAuditRepo(dataDir string) (repo.ModerationAuditRepo, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &moderationAuditRepo{path: filepath.Join(dataDir, auditFileName)}, nil
}

func (r *moderationAuditRepo) Append(ctx context.Context, when time.Time, msg domain.Message, decision domain.Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit file: %w", err)
	}

	w := csv.NewWriter(f)
	record := []string{
		when.UTC().Format(time.RFC3339),
		msg.SenderName,
		msg.Content,
		decision.Predicted,
		fmt.Sprintf("%.4f", decision.Confidence*100),
		decision.Allowed,
	}
	if err := w.Write(record); err != nil {
		f.Close()
		return fmt.Errorf("failed to write audit record: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush audit record: %w", err)
	}
	return f.Close()
}
