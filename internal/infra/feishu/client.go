package feishu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
)

// ErrMessageNotFound marks a delete/edit against a message that no longer
// exists on the Feishu side.
var ErrMessageNotFound = errors.New("feishu: message not found")

// Lark reports this code when the target message has been recalled or
// removed before the API call lands.
const codeMessageNotFound = 230011

// Message represents a received Feishu message
type Message struct {
	ChatID     string
	MsgID      string
	MsgType    string // text, post, image, ...
	ChatType   string // p2p (private), group
	Content    string // Text content extracted from the message body
	Sender     *Sender
	CreateTime int64 // Milliseconds Unix timestamp from Feishu
}

// Sender represents the message sender
type Sender struct {
	SenderID   string
	SenderType string // user, bot, app
	TenantKey  string
}

// ChatMember represents a member in a chat
type ChatMember struct {
	MemberID   string `json:"member_id"`
	MemberType string `json:"member_type"` // user, bot
	Name       string `json:"name"`
}

// HistoryMessage represents a message from chat history
type HistoryMessage struct {
	MsgID      string `json:"message_id"`
	MsgType    string `json:"msg_type"`
	Content    string `json:"content"`
	CreateTime string `json:"create_time"`
	Sender     *Sender
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *Message)

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	onMessage MessageHandler
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
	}
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// Start connects to Feishu via WebSocket and starts listening for messages
func (c *Client) Start() error {
	c.ctx, c.cancel = context.WithCancel(context.Background())

	// Register event handler
	// Note: Must return quickly so SDK can send ACK, otherwise Feishu will retry due to timeout
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
			go c.handleMessage(event)
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	fmt.Println("[Feishu] Starting WebSocket connection...")

	// Start WebSocket (blocking)
	return c.wsCli.Start(c.ctx)
}

// Stop disconnects from Feishu
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// handleMessage processes incoming Feishu messages
func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	rawMsg := event.Event.Message
	if rawMsg == nil {
		return
	}

	msg := &Message{
		ChatID:  *rawMsg.ChatId,
		MsgID:   *rawMsg.MessageId,
		MsgType: *rawMsg.MessageType,
	}

	if rawMsg.CreateTime != nil {
		if ts, err := strconv.ParseInt(*rawMsg.CreateTime, 10, 64); err == nil {
			msg.CreateTime = ts
		}
	}
	if rawMsg.ChatType != nil {
		msg.ChatType = *rawMsg.ChatType
	}

	if event.Event.Sender != nil {
		msg.Sender = &Sender{}
		if event.Event.Sender.SenderId != nil && event.Event.Sender.SenderId.OpenId != nil {
			msg.Sender.SenderID = *event.Event.Sender.SenderId.OpenId
		}
		if event.Event.Sender.SenderType != nil {
			msg.Sender.SenderType = *event.Event.Sender.SenderType
		}
		if event.Event.Sender.TenantKey != nil {
			msg.Sender.TenantKey = *event.Event.Sender.TenantKey
		}
	}

	if rawMsg.Content != nil && msg.MsgType == "text" {
		msg.Content = parseTextContent(*rawMsg.Content)
	}

	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

// parseTextContent extracts the text field from a Feishu text message body
func parseTextContent(content string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return content
	}
	return parsed.Text
}

// SendText sends a text message to a chat
func (c *Client) SendText(chatID, text string) error {
	content := map[string]string{"text": text}
	contentJSON, _ := json.Marshal(content)

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(context.Background(), req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: %s", resp.Msg)
	}
	return nil
}

// ReplyText replies to a specific message and returns the reply's message ID
func (c *Client) ReplyText(msgID, text string) (string, error) {
	content := map[string]string{"text": text}
	contentJSON, _ := json.Marshal(content)

	req := larkim.NewReplyMessageReqBuilder().
		MessageId(msgID).
		Body(larkim.NewReplyMessageReqBodyBuilder().
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Reply(context.Background(), req)
	if err != nil {
		return "", fmt.Errorf("reply failed: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("reply error: %s", resp.Msg)
	}
	if resp.Data == nil || resp.Data.MessageId == nil {
		return "", fmt.Errorf("reply response missing message id")
	}
	return *resp.Data.MessageId, nil
}

// UpdateText replaces the text content of a previously sent message
func (c *Client) UpdateText(msgID, text string) error {
	content := map[string]string{"text": text}
	contentJSON, _ := json.Marshal(content)

	req := larkim.NewUpdateMessageReqBuilder().
		MessageId(msgID).
		Body(larkim.NewUpdateMessageReqBodyBuilder().
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Update(context.Background(), req)
	if err != nil {
		return fmt.Errorf("update message failed: %w", err)
	}
	if !resp.Success() {
		if resp.Code == codeMessageNotFound {
			return ErrMessageNotFound
		}
		return fmt.Errorf("update message error: %s", resp.Msg)
	}
	return nil
}

// DeleteMessage removes a message from the chat
func (c *Client) DeleteMessage(msgID string) error {
	req := larkim.NewDeleteMessageReqBuilder().
		MessageId(msgID).
		Build()

	resp, err := c.larkCli.Im.Message.Delete(context.Background(), req)
	if err != nil {
		return fmt.Errorf("delete message failed: %w", err)
	}
	if !resp.Success() {
		if resp.Code == codeMessageNotFound {
			return ErrMessageNotFound
		}
		return fmt.Errorf("delete message error: %s", resp.Msg)
	}
	return nil
}

// GetChatHistorySince retrieves chat messages created at or after since.
// Pages through the history newest-first and stops once a page crosses the
// cutoff. Returns messages in chronological order (oldest first).
func (c *Client) GetChatHistorySince(chatID string, since time.Time) ([]*HistoryMessage, error) {
	sinceMilli := since.UnixMilli()
	var messages []*HistoryMessage
	pageToken := ""

	for {
		builder := larkim.NewListMessageReqBuilder().
			ContainerIdType("chat").
			ContainerId(chatID).
			SortType("ByCreateTimeDesc"). // newest first, so the cutoff terminates paging
			PageSize(50)
		if pageToken != "" {
			builder = builder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Im.Message.List(context.Background(), builder.Build())
		if err != nil {
			return nil, fmt.Errorf("get chat history failed: %w", err)
		}
		if !resp.Success() {
			return nil, fmt.Errorf("get chat history error: %s", resp.Msg)
		}

		crossedCutoff := false
		for _, item := range resp.Data.Items {
			msg := &HistoryMessage{
				MsgID:      *item.MessageId,
				MsgType:    *item.MsgType,
				CreateTime: *item.CreateTime,
			}

			if ms, err := strconv.ParseInt(msg.CreateTime, 10, 64); err == nil && ms < sinceMilli {
				crossedCutoff = true
				break
			}

			if item.Body != nil && item.Body.Content != nil {
				rawContent := *item.Body.Content
				if *item.MsgType == "text" {
					msg.Content = parseTextContent(rawContent)
				} else {
					msg.Content = rawContent
				}
			}

			if item.Sender != nil {
				msg.Sender = &Sender{}
				if item.Sender.Id != nil {
					msg.Sender.SenderID = *item.Sender.Id
				}
				if item.Sender.SenderType != nil {
					msg.Sender.SenderType = *item.Sender.SenderType
				}
				if item.Sender.TenantKey != nil {
					msg.Sender.TenantKey = *item.Sender.TenantKey
				}
			}

			messages = append(messages, msg)
		}

		if crossedCutoff || resp.Data.HasMore == nil || !*resp.Data.HasMore || resp.Data.PageToken == nil {
			break
		}
		pageToken = *resp.Data.PageToken
	}

	// Reverse to chronological order (oldest first, newest last)
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	fmt.Printf("[Feishu] Retrieved %d messages from chat %s\n", len(messages), chatID)
	return messages, nil
}

// GetChatMembers retrieves members of a chat (group)
// Uses pagination to get all members
func (c *Client) GetChatMembers(chatID string) ([]*ChatMember, error) {
	var members []*ChatMember
	pageToken := ""

	for {
		builder := larkim.NewGetChatMembersReqBuilder().
			ChatId(chatID).
			MemberIdType("open_id").
			PageSize(100)
		if pageToken != "" {
			builder = builder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Im.ChatMembers.Get(context.Background(), builder.Build())
		if err != nil {
			return nil, fmt.Errorf("get chat members failed: %w", err)
		}
		if !resp.Success() {
			return nil, fmt.Errorf("get chat members error: %s", resp.Msg)
		}

		for _, item := range resp.Data.Items {
			member := &ChatMember{}
			if item.MemberId != nil {
				member.MemberID = *item.MemberId
			}
			if item.MemberIdType != nil {
				member.MemberType = *item.MemberIdType
			}
			if item.Name != nil {
				member.Name = *item.Name
			}
			members = append(members, member)
		}

		if resp.Data.PageToken == nil || *resp.Data.PageToken == "" {
			break
		}
		pageToken = *resp.Data.PageToken
	}

	return members, nil
}
