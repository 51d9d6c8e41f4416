package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/franklin001/feishu-sentinel/internal/biz/domain"
)

type mockTopicRepo struct {
	topics map[string]string
}

func newMockTopicRepo() *mockTopicRepo {
	return &mockTopicRepo{topics: make(map[string]string)}
}

func (m *mockTopicRepo) Get(ctx context.Context, chatID string) (string, bool, error) {
	topic, ok := m.topics[chatID]
	return topic, ok, nil
}

func (m *mockTopicRepo) Set(ctx context.Context, chatID, topic string) error {
	m.topics[chatID] = topic
	return nil
}

func (m *mockTopicRepo) Clear(ctx context.Context, chatID string) error {
	delete(m.topics, chatID)
	return nil
}

type fixedClassifier struct {
	label      string
	confidence float64
}

func (f *fixedClassifier) Classify(ctx context.Context, text string) (string, float64, error) {
	return f.label, f.confidence, nil
}

func liveMessage(chatID, content string) *domain.Message {
	return &domain.Message{
		ID:         "msg-1",
		ChatID:     chatID,
		Content:    content,
		SenderName: "alice",
		CreateTime: time.Now().UTC(),
	}
}

func TestModerationUsecase_TopicLifecycle(t *testing.T) {
	ctx := context.Background()
	topics := newMockTopicRepo()
	uc := NewModerationUsecase(topics, &fixedClassifier{}, 0.6)

	canonical, err := uc.SetTopic(ctx, "chat-1", "sports")
	if err != nil {
		t.Fatalf("SetTopic returned error: %v", err)
	}
	if canonical != "Sports" {
		t.Errorf("canonical = %q, want Sports", canonical)
	}

	topic, ok, _ := uc.GetTopic(ctx, "chat-1")
	if !ok || topic != "Sports" {
		t.Errorf("GetTopic = (%q, %v), want (Sports, true)", topic, ok)
	}

	had, err := uc.ClearTopic(ctx, "chat-1")
	if err != nil || !had {
		t.Errorf("ClearTopic = (%v, %v), want (true, nil)", had, err)
	}
	if _, ok, _ := uc.GetTopic(ctx, "chat-1"); ok {
		t.Error("topic still set after clear")
	}

	// Clearing again reports nothing was set
	had, err = uc.ClearTopic(ctx, "chat-1")
	if err != nil || had {
		t.Errorf("second ClearTopic = (%v, %v), want (false, nil)", had, err)
	}
}

func TestModerationUsecase_SetTopic_Invalid(t *testing.T) {
	ctx := context.Background()
	topics := newMockTopicRepo()
	uc := NewModerationUsecase(topics, &fixedClassifier{}, 0.6)

	uc.SetTopic(ctx, "chat-1", "Business")

	if _, err := uc.SetTopic(ctx, "chat-1", "politics"); !errors.Is(err, domain.ErrInvalidTopic) {
		t.Fatalf("expected ErrInvalidTopic, got %v", err)
	}

	// Rejected set leaves state unchanged
	topic, ok, _ := uc.GetTopic(ctx, "chat-1")
	if !ok || topic != "Business" {
		t.Errorf("state changed after rejected set: (%q, %v)", topic, ok)
	}
}

func TestModerationUsecase_Evaluate(t *testing.T) {
	ctx := context.Background()

	t.Run("no filter set", func(t *testing.T) {
		uc := NewModerationUsecase(newMockTopicRepo(), &fixedClassifier{"World", 0.9}, 0.6)
		d, err := uc.Evaluate(ctx, liveMessage("chat-1", "hello"))
		if err != nil || d != nil {
			t.Errorf("expected nil decision without a filter, got (%v, %v)", d, err)
		}
	})

	t.Run("skips command and bot messages", func(t *testing.T) {
		topics := newMockTopicRepo()
		topics.Set(ctx, "chat-1", "Sports")
		uc := NewModerationUsecase(topics, &fixedClassifier{"World", 0.9}, 0.6)

		if d, _ := uc.Evaluate(ctx, liveMessage("chat-1", "!topicget")); d != nil {
			t.Error("command message should not be evaluated")
		}
		bot := liveMessage("chat-1", "hello")
		bot.IsBot = true
		if d, _ := uc.Evaluate(ctx, bot); d != nil {
			t.Error("bot message should not be evaluated")
		}
	})

	t.Run("confident mismatch", func(t *testing.T) {
		topics := newMockTopicRepo()
		topics.Set(ctx, "chat-1", "Sports")
		uc := NewModerationUsecase(topics, &fixedClassifier{"World", 0.9}, 0.6)

		d, err := uc.Evaluate(ctx, liveMessage("chat-1", "election news"))
		if err != nil {
			t.Fatalf("Evaluate returned error: %v", err)
		}
		if d == nil || d.Action != domain.ActionWarnAndDelete {
			t.Fatalf("expected WarnAndDelete, got %+v", d)
		}
		if d.Allowed != "Sports" || d.Predicted != "World" {
			t.Errorf("decision labels wrong: %+v", d)
		}
	})

	t.Run("low confidence mismatch", func(t *testing.T) {
		topics := newMockTopicRepo()
		topics.Set(ctx, "chat-1", "Sports")
		uc := NewModerationUsecase(topics, &fixedClassifier{"World", 0.3}, 0.6)

		d, _ := uc.Evaluate(ctx, liveMessage("chat-1", "election news"))
		if d == nil || d.Action != domain.ActionWarnOnly {
			t.Fatalf("expected WarnOnly, got %+v", d)
		}
	})

	t.Run("on-topic", func(t *testing.T) {
		topics := newMockTopicRepo()
		topics.Set(ctx, "chat-1", "Sports")
		uc := NewModerationUsecase(topics, &fixedClassifier{"Sports", 0.2}, 0.6)

		d, _ := uc.Evaluate(ctx, liveMessage("chat-1", "great match"))
		if d == nil || d.Action != domain.ActionAllow {
			t.Fatalf("expected Allow, got %+v", d)
		}
	})
}
