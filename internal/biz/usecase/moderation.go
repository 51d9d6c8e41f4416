package usecase

import (
	"context"
	"fmt"

	"github.com/franklin001/feishu-sentinel/internal/biz/domain"
	"github.com/franklin001/feishu-sentinel/internal/biz/repo"
)

// ModerationUsecase owns the per-channel topic state and the per-message
// moderation decision.
type ModerationUsecase struct {
	topicRepo  repo.TopicRepo
	classifier repo.ClassifierRepo
	threshold  float64
}

// NewModerationUsecase creates a new moderation usecase
func NewModerationUsecase(topicRepo repo.TopicRepo, classifier repo.ClassifierRepo, threshold float64) *ModerationUsecase {
	return &ModerationUsecase{
		topicRepo:  topicRepo,
		classifier: classifier,
		threshold:  threshold,
	}
}

// SetTopic canonicalizes and stores the allowed topic for a channel. An
// unrecognized name returns ErrInvalidTopic and leaves the state unchanged.
func (uc *ModerationUsecase) SetTopic(ctx context.Context, chatID, name string) (string, error) {
	canonical, ok := domain.CanonicalTopic(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidTopic, name)
	}
	if err := uc.topicRepo.Set(ctx, chatID, canonical); err != nil {
		return "", fmt.Errorf("store topic: %w", err)
	}
	return canonical, nil
}

// GetTopic returns the channel's allowed topic, if any.
func (uc *ModerationUsecase) GetTopic(ctx context.Context, chatID string) (string, bool, error) {
	return uc.topicRepo.Get(ctx, chatID)
}

// ClearTopic removes the channel's filter. Reports whether one was set.
func (uc *ModerationUsecase) ClearTopic(ctx context.Context, chatID string) (bool, error) {
	_, had, err := uc.topicRepo.Get(ctx, chatID)
	if err != nil {
		return false, err
	}
	if !had {
		return false, nil
	}
	if err := uc.topicRepo.Clear(ctx, chatID); err != nil {
		return false, fmt.Errorf("clear topic: %w", err)
	}
	return true, nil
}

// Threshold returns the configured confidence gate.
func (uc *ModerationUsecase) Threshold() float64 {
	return uc.threshold
}

// Evaluate classifies a live message against the channel's allowed topic.
// Returns nil when the channel has no filter or the message is not
// substantive (automated sender, command invocation, empty text).
func (uc *ModerationUsecase) Evaluate(ctx context.Context, msg *domain.Message) (*domain.Decision, error) {
	if !msg.IsSubstantive() {
		return nil, nil
	}

	allowed, ok, err := uc.topicRepo.Get(ctx, msg.ChatID)
	if err != nil {
		return nil, fmt.Errorf("read topic: %w", err)
	}
	if !ok {
		return nil, nil
	}

	predicted, confidence, err := uc.classifier.Classify(ctx, msg.Content)
	if err != nil {
		return nil, fmt.Errorf("classify message: %w", err)
	}

	decision := domain.Decide(predicted, confidence, allowed, uc.threshold)
	return &decision, nil
}
