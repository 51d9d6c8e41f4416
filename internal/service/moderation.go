package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/franklin001/feishu-sentinel/internal/biz/domain"
	"github.com/franklin001/feishu-sentinel/internal/biz/repo"
	"github.com/franklin001/feishu-sentinel/internal/biz/usecase"
)

// ModerationService enforces the per-channel topic filter. Off-topic
// messages get a warning reply; confident verdicts also start a visible
// countdown that ends with the message being deleted. Countdowns are
// cancellable: clearing the channel's topic filter aborts them.
type ModerationService struct {
	moderationUC *usecase.ModerationUsecase
	messageRepo  repo.MessageRepo
	auditRepo    repo.ModerationAuditRepo

	countdownSeconds int
	tick             time.Duration // 1s in production, shortened in tests

	// Active countdowns keyed by target message ID, at most one per target.
	countdowns map[string]*countdown
	mu         sync.Mutex
	wg         sync.WaitGroup
}

type countdown struct {
	chatID string
	cancel context.CancelFunc
}

// NewModerationService creates a new moderation service
func NewModerationService(
	moderationUC *usecase.ModerationUsecase,
	messageRepo repo.MessageRepo,
	auditRepo repo.ModerationAuditRepo,
	countdownSeconds int,
) *ModerationService {
	return &ModerationService{
		moderationUC:     moderationUC,
		messageRepo:      messageRepo,
		auditRepo:        auditRepo,
		countdownSeconds: countdownSeconds,
		tick:             time.Second,
		countdowns:       make(map[string]*countdown),
	}
}

// HandleMessage evaluates an inbound message against the channel's topic
// filter and carries out the resulting action. Returns nil for allowed
// messages and for channels without a filter.
func (s *ModerationService) HandleMessage(ctx context.Context, msg *domain.Message) error {
	decision, err := s.moderationUC.Evaluate(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to evaluate message: %w", err)
	}
	if decision == nil || decision.Action == domain.ActionAllow {
		return nil
	}

	warnID, err := s.messageRepo.Reply(ctx, msg.ID, warnText(decision, s.countdownSeconds))
	if err != nil {
		return fmt.Errorf("failed to post warning: %w", err)
	}

	// Record the decision before any countdown starts so the audit trail
	// survives even if the process dies mid-countdown.
	if err := s.auditRepo.Append(ctx, time.Now().UTC(), *msg, *decision); err != nil {
		fmt.Printf("[Moderation] Failed to append audit record: %v\n", err)
	}

	if decision.Action != domain.ActionWarnAndDelete {
		return nil
	}

	s.startCountdown(msg.ChatID, msg.ID, warnID, *decision)
	return nil
}

// AbortChannel cancels every active countdown in the given chat. Called
// when the channel's topic filter is cleared.
func (s *ModerationService) AbortChannel(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cd := range s.countdowns {
		if cd.chatID == chatID {
			cd.cancel()
		}
	}
}

// Stop cancels all countdowns and waits for their goroutines to drain.
func (s *ModerationService) Stop() {
	s.mu.Lock()
	for _, cd := range s.countdowns {
		cd.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
	fmt.Println("[Moderation] Stopped")
}

func (s *ModerationService) startCountdown(chatID, targetID, warnID string, decision domain.Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.countdowns[targetID]; exists {
		// The target is already counting down, e.g. a redelivered event.
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.countdowns[targetID] = &countdown{chatID: chatID, cancel: cancel}

	s.wg.Add(1)
	go s.runCountdown(ctx, targetID, warnID, decision)
}

func (s *ModerationService) runCountdown(ctx context.Context, targetID, warnID string, decision domain.Decision) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		if cd, ok := s.countdowns[targetID]; ok {
			cd.cancel()
			delete(s.countdowns, targetID)
		}
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	editCtx := context.Background()

	for i := s.countdownSeconds; i > 0; i-- {
		text := fmt.Sprintf("⚠️ Off-topic (Predicted: %s, Confidence: %.2f%%). Deleting in %d seconds...",
			decision.Predicted, decision.Confidence*100, i)
		if err := s.messageRepo.UpdateText(editCtx, warnID, text); err != nil {
			fmt.Printf("[Moderation] Failed to update countdown: %v\n", err)
		}

		select {
		case <-ctx.Done():
			if err := s.messageRepo.UpdateText(editCtx, warnID, "🧹 Topic filter cleared, countdown aborted."); err != nil {
				fmt.Printf("[Moderation] Failed to update aborted warning: %v\n", err)
			}
			return
		case <-ticker.C:
		}
	}

	err := s.messageRepo.Delete(editCtx, targetID)
	if errors.Is(err, repo.ErrMessageNotFound) {
		// Already gone. No terminal edit in that case.
		return
	}
	if err != nil {
		fmt.Printf("[Moderation] Failed to delete message %s: %v\n", targetID, err)
		return
	}

	text := fmt.Sprintf("✅ Message deleted (Predicted: %s, Confidence: %.2f%%)",
		decision.Predicted, decision.Confidence*100)
	if err := s.messageRepo.UpdateText(editCtx, warnID, text); err != nil {
		fmt.Printf("[Moderation] Failed to update terminal warning: %v\n", err)
	}
}

func warnText(d *domain.Decision, seconds int) string {
	base := fmt.Sprintf("⚠️ Off-topic (Predicted: %s, Confidence: %.2f%%). ", d.Predicted, d.Confidence*100)
	if d.Action == domain.ActionWarnAndDelete {
		return base + fmt.Sprintf("Message will be deleted in %d seconds.", seconds)
	}
	return base + "Low confidence — message will NOT be auto-deleted."
}

// HandleTopicSet handles the topicset command.
func (s *ModerationService) HandleTopicSet(ctx context.Context, chatID, msgID, arg string) {
	canonical, err := s.moderationUC.SetTopic(ctx, chatID, arg)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTopic) {
			s.reply(ctx, msgID, fmt.Sprintf("❌ Invalid topic. Choose from: %s", strings.Join(domain.TopicLabels, ", ")))
			return
		}
		fmt.Printf("[Moderation] Failed to set topic: %v\n", err)
		s.reply(ctx, msgID, "Failed to set topic, please try again.")
		return
	}
	s.reply(ctx, msgID, fmt.Sprintf("✅ Topic for this channel set to **%s**.", canonical))
}

// HandleTopicGet handles the topicget command.
func (s *ModerationService) HandleTopicGet(ctx context.Context, chatID, msgID string) {
	topic, ok, err := s.moderationUC.GetTopic(ctx, chatID)
	if err != nil {
		fmt.Printf("[Moderation] Failed to get topic: %v\n", err)
		s.reply(ctx, msgID, "Failed to look up the topic, please try again.")
		return
	}
	if !ok {
		s.reply(ctx, msgID, "ℹ️ No topic is set for this channel yet. Use `!topicset <topic>` to set one.")
		return
	}
	s.reply(ctx, msgID, fmt.Sprintf("ℹ️ Current topic for this channel is **%s**.", topic))
}

// HandleTopicList handles the topiclist command.
func (s *ModerationService) HandleTopicList(ctx context.Context, msgID string) {
	s.reply(ctx, msgID, fmt.Sprintf("📌 Available topics: %s", strings.Join(domain.TopicLabels, ", ")))
}

// HandleTopicClear handles the topicclear command. Clearing the filter
// also aborts any countdown still running in the chat.
func (s *ModerationService) HandleTopicClear(ctx context.Context, chatID, msgID string) {
	cleared, err := s.moderationUC.ClearTopic(ctx, chatID)
	if err != nil {
		fmt.Printf("[Moderation] Failed to clear topic: %v\n", err)
		s.reply(ctx, msgID, "Failed to clear the topic, please try again.")
		return
	}
	if !cleared {
		s.reply(ctx, msgID, "ℹ️ No topic is currently set for this channel.")
		return
	}
	s.AbortChannel(chatID)
	s.reply(ctx, msgID, "🧹 Topic filter cleared for this channel. All messages are now allowed.")
}

func (s *ModerationService) reply(ctx context.Context, msgID, text string) {
	if _, err := s.messageRepo.Reply(ctx, msgID, text); err != nil {
		fmt.Printf("[Moderation] Failed to reply: %v\n", err)
	}
}
