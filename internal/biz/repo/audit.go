package repo

import (
	"context"
	"time"

	"github.com/franklin001/feishu-sentinel/internal/biz/domain"
)

// SentimentExportRepo persists the per-run sentiment export. Each analyze
// run overwrites the previous export wholesale.
type SentimentExportRepo interface {
	WriteExport(ctx context.Context, batch []domain.Classified) error
}

// ModerationAuditRepo appends moderation decisions. Append-only; the running
// process never reads the file back.
type ModerationAuditRepo interface {
	Append(ctx context.Context, when time.Time, msg domain.Message, decision domain.Decision) error
}
