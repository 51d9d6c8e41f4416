package repo

import (
	"context"
	"errors"
	"time"

	"github.com/franklin001/feishu-sentinel/internal/biz/domain"
)

// ErrMessageNotFound is returned by Delete when the target message is
// already gone. Moderation swallows it: message absence is the goal.
var ErrMessageNotFound = errors.New("message not found")

// MessageRepo is the chat transport interface.
// Responsible for history fetches and reply/edit/delete via the Feishu API.
type MessageRepo interface {
	// GetHistorySince fetches the channel messages created at or after since,
	// oldest first. The underlying source is paginated; implementations must
	// not assume a bound on its length.
	GetHistorySince(ctx context.Context, chatID string, since time.Time) ([]domain.Message, error)

	// SendText sends a text message to a chat.
	SendText(ctx context.Context, chatID, text string) error

	// Reply replies to a message and returns the reply's message ID, so the
	// caller can edit it later.
	Reply(ctx context.Context, msgID, text string) (string, error)

	// UpdateText replaces the text content of a previously sent message.
	UpdateText(ctx context.Context, msgID, text string) error

	// Delete removes a message. Returns ErrMessageNotFound when it is
	// already gone.
	Delete(ctx context.Context, msgID string) error
}
