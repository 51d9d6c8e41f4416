package server

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/franklin001/feishu-sentinel/internal/biz/domain"
	"github.com/franklin001/feishu-sentinel/internal/infra/feishu"
	"github.com/franklin001/feishu-sentinel/internal/service"
)

// SentinelServer receives Feishu message events and routes them: commands
// go to their handlers, everything else runs through topic moderation.
type SentinelServer struct {
	feishuClient  *feishu.Client
	analyzeSvc    *service.AnalyzeService
	moderationSvc *service.ModerationService

	// Message deduplication cache. Feishu redelivers events on slow ACKs.
	seenMsgsMu sync.RWMutex
	seenMsgs   map[string]time.Time // msgID -> timestamp
}

// NewSentinelServer creates a new sentinel server
func NewSentinelServer(
	feishuClient *feishu.Client,
	analyzeSvc *service.AnalyzeService,
	moderationSvc *service.ModerationService,
) *SentinelServer {
	return &SentinelServer{
		feishuClient:  feishuClient,
		analyzeSvc:    analyzeSvc,
		moderationSvc: moderationSvc,
		seenMsgs:      make(map[string]time.Time),
	}
}

// Start starts the server
func (s *SentinelServer) Start() error {
	s.feishuClient.OnMessage(s.handleMessage)
	return s.feishuClient.Start()
}

// Stop stops the server
func (s *SentinelServer) Stop() {
	s.feishuClient.Stop()
	s.moderationSvc.Stop()
}

// handleMessage handles Feishu messages
func (s *SentinelServer) handleMessage(msg *feishu.Message) {
	if msg.MsgType != "text" {
		return
	}

	fmt.Printf("[Server] Received %s from %s: %s\n",
		msg.MsgType, msg.ChatID, truncate(msg.Content, 50))

	// Message deduplication: check if already processed
	if s.isMessageSeen(msg.MsgID) {
		fmt.Printf("[Server] Duplicate message ignored: %s\n", msg.MsgID)
		return
	}
	s.markMessageSeen(msg.MsgID)

	ctx := context.Background()

	trimmed := strings.TrimSpace(msg.Content)
	if strings.HasPrefix(trimmed, domain.CommandPrefix) {
		s.dispatchCommand(ctx, msg, trimmed)
		return
	}

	inbound := toDomainMessage(msg)
	inbound.SenderName = s.resolveSenderName(msg)
	if err := s.moderationSvc.HandleMessage(ctx, inbound); err != nil {
		fmt.Printf("[Server] Moderation error: %v\n", err)
	}
}

// resolveSenderName looks the sender up in the chat member list. Falls
// back to the sender ID when the lookup fails.
func (s *SentinelServer) resolveSenderName(msg *feishu.Message) string {
	if msg.Sender == nil {
		return ""
	}
	members, err := s.feishuClient.GetChatMembers(msg.ChatID)
	if err == nil {
		for _, m := range members {
			if m.MemberID == msg.Sender.SenderID {
				return m.Name
			}
		}
	}
	return msg.Sender.SenderID
}

// dispatchCommand routes a "!" command to its handler. Unknown commands
// are ignored, matching how chat bots usually share a channel.
func (s *SentinelServer) dispatchCommand(ctx context.Context, msg *feishu.Message, trimmed string) {
	name, arg := splitCommand(trimmed)

	switch name {
	case "analyze":
		s.analyzeSvc.HandleAnalyze(ctx, msg.ChatID, arg)
	case "topicset":
		s.moderationSvc.HandleTopicSet(ctx, msg.ChatID, msg.MsgID, arg)
	case "topicget":
		s.moderationSvc.HandleTopicGet(ctx, msg.ChatID, msg.MsgID)
	case "topiclist":
		s.moderationSvc.HandleTopicList(ctx, msg.MsgID)
	case "topicclear":
		s.moderationSvc.HandleTopicClear(ctx, msg.ChatID, msg.MsgID)
	default:
		fmt.Printf("[Server] Unknown command ignored: %s\n", name)
	}
}

// splitCommand separates "!name arg..." into a lowercased name and the raw
// remainder.
func splitCommand(trimmed string) (string, string) {
	body := strings.TrimPrefix(trimmed, domain.CommandPrefix)
	parts := strings.SplitN(body, " ", 2)
	name := strings.ToLower(strings.TrimSpace(parts[0]))
	arg := ""
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}
	return name, arg
}

func toDomainMessage(msg *feishu.Message) *domain.Message {
	inbound := &domain.Message{
		ID:         msg.MsgID,
		ChatID:     msg.ChatID,
		Content:    msg.Content,
		CreateTime: time.UnixMilli(msg.CreateTime).UTC(),
	}
	if msg.Sender != nil {
		inbound.SenderID = msg.Sender.SenderID
		inbound.IsBot = msg.Sender.SenderType == "bot" || msg.Sender.SenderType == "app"
	}
	return inbound
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// isMessageSeen checks if a message has been processed
func (s *SentinelServer) isMessageSeen(msgID string) bool {
	s.seenMsgsMu.RLock()
	defer s.seenMsgsMu.RUnlock()
	_, exists := s.seenMsgs[msgID]
	return exists
}

// markMessageSeen marks a message as processed
func (s *SentinelServer) markMessageSeen(msgID string) {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()
	s.seenMsgs[msgID] = time.Now()

	// Clean up expired records (older than 5 minutes) while holding the lock
	cutoff := time.Now().Add(-5 * time.Minute)
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}
}
