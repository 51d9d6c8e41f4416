package data

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/franklin001/feishu-sentinel/internal/biz/domain"
	"github.com/franklin001/feishu-sentinel/internal/biz/repo"
	"github.com/franklin001/feishu-sentinel/internal/infra/feishu"
)

// feishuRepo implements the message repository over the Feishu API
type feishuRepo struct {
	client *feishu.Client
}

// NewFeishuRepo creates a new Feishu message repository
func NewFeishuRepo(client *feishu.Client) repo.MessageRepo {
	return &feishuRepo{client: client}
}

// GetHistorySince fetches channel history at or after since, oldest first
func (r *feishuRepo) GetHistorySince(ctx context.Context, chatID string, since time.Time) ([]domain.Message, error) {
	msgs, err := r.client.GetChatHistorySince(chatID, since)
	if err != nil {
		return nil, err
	}

	// Resolve sender names from the member list
	members, _ := r.client.GetChatMembers(chatID)
	memberMap := make(map[string]string, len(members))
	for _, m := range members {
		memberMap[m.MemberID] = m.Name
	}

	var result []domain.Message
	for _, m := range msgs {
		// Feishu timestamps are millisecond strings; parse to an absolute
		// instant so cutoff comparisons are timezone-independent.
		createTime := time.Now().UTC()
		if m.CreateTime != "" {
			if ms, err := strconv.ParseInt(m.CreateTime, 10, 64); err == nil {
				createTime = time.UnixMilli(ms).UTC()
			}
		}

		senderID := ""
		senderName := ""
		isBot := false
		if m.Sender != nil {
			senderID = m.Sender.SenderID
			senderName = memberMap[senderID]
			if senderName == "" {
				senderName = senderID
			}
			isBot = m.Sender.SenderType == "bot" || m.Sender.SenderType == "app"
		}

		result = append(result, domain.Message{
			ID:         m.MsgID,
			ChatID:     chatID,
			Content:    m.Content,
			SenderID:   senderID,
			SenderName: senderName,
			CreateTime: createTime,
			IsBot:      isBot,
		})
	}
	return result, nil
}

// SendText sends a text message to a chat
func (r *feishuRepo) SendText(ctx context.Context, chatID, text string) error {
	return r.client.SendText(chatID, text)
}

// Reply replies to a message and returns the reply's message ID
func (r *feishuRepo) Reply(ctx context.Context, msgID, text string) (string, error) {
	return r.client.ReplyText(msgID, text)
}

// UpdateText replaces the text of a previously sent message
func (r *feishuRepo) UpdateText(ctx context.Context, msgID, text string) error {
	err := r.client.UpdateText(msgID, text)
	if errors.Is(err, feishu.ErrMessageNotFound) {
		return repo.ErrMessageNotFound
	}
	return err
}

// Delete removes a message from the chat
func (r *feishuRepo) Delete(ctx context.Context, msgID string) error {
	err := r.client.DeleteMessage(msgID)
	if errors.Is(err, feishu.ErrMessageNotFound) {
		return repo.ErrMessageNotFound
	}
	return err
}
