package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/franklin001/feishu-sentinel/internal/biz/domain"
	"github.com/franklin001/feishu-sentinel/internal/biz/repo"
	"github.com/franklin001/feishu-sentinel/internal/biz/usecase"
)

type sentMessage struct {
	id   string
	text string
}

// mockTransport records all outbound traffic. Countdowns touch it from
// their own goroutines, so every method locks.
type mockTransport struct {
	mu        sync.Mutex
	nextID    int
	sent      []string
	replies   []sentMessage
	edits     []sentMessage
	deleted   []string
	deleteErr error
	history   []domain.Message
}

func (m *mockTransport) GetHistorySince(ctx context.Context, chatID string, since time.Time) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history, nil
}

func (m *mockTransport) SendText(ctx context.Context, chatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, text)
	return nil
}

func (m *mockTransport) Reply(ctx context.Context, msgID, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := fmt.Sprintf("reply-%d", m.nextID)
	m.replies = append(m.replies, sentMessage{id: id, text: text})
	return id, nil
}

func (m *mockTransport) UpdateText(ctx context.Context, msgID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, sentMessage{id: msgID, text: text})
	return nil
}

func (m *mockTransport) Delete(ctx context.Context, msgID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, msgID)
	return nil
}

func (m *mockTransport) snapshotReplies() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.replies...)
}

func (m *mockTransport) snapshotEdits() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.edits...)
}

func (m *mockTransport) snapshotDeleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

type mockTopics struct {
	mu     sync.Mutex
	topics map[string]string
}

func newMockTopics() *mockTopics {
	return &mockTopics{topics: make(map[string]string)}
}

func (m *mockTopics) Get(ctx context.Context, chatID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	topic, ok := m.topics[chatID]
	return topic, ok, nil
}

func (m *mockTopics) Set(ctx context.Context, chatID, topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics[chatID] = topic
	return nil
}

func (m *mockTopics) Clear(ctx context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.topics, chatID)
	return nil
}

type stubClassifier struct {
	label string
	conf  float64
	calls int
}

func (c *stubClassifier) Classify(ctx context.Context, text string) (string, float64, error) {
	c.calls++
	return c.label, c.conf, nil
}

type auditRecord struct {
	msg      domain.Message
	decision domain.Decision
}

type recordingAudit struct {
	mu      sync.Mutex
	records []auditRecord
}

func (a *recordingAudit) Append(ctx context.Context, when time.Time, msg domain.Message, decision domain.Decision) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, auditRecord{msg: msg, decision: decision})
	return nil
}

func (a *recordingAudit) snapshot() []auditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]auditRecord(nil), a.records...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func liveMessage(id string) *domain.Message {
	return &domain.Message{
		ID:         id,
		ChatID:     "chat-1",
		Content:    "the stock market rallied today",
		SenderID:   "u1",
		SenderName: "alice",
		CreateTime: time.Now().UTC(),
	}
}

func newModerationFixture(classifier repo.ClassifierRepo, threshold float64) (*ModerationService, *mockTransport, *mockTopics, *recordingAudit) {
	transport := &mockTransport{}
	topics := newMockTopics()
	audit := &recordingAudit{}
	uc := usecase.NewModerationUsecase(topics, classifier, threshold)
	svc := NewModerationService(uc, transport, audit, 10)
	svc.tick = time.Millisecond
	return svc, transport, topics, audit
}

func TestHandleMessage_NoFilterDoesNothing(t *testing.T) {
	classifier := &stubClassifier{label: domain.TopicSports, conf: 0.9}
	svc, transport, _, _ := newModerationFixture(classifier, 0)
	defer svc.Stop()

	if err := svc.HandleMessage(context.Background(), liveMessage("msg-1")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if classifier.calls != 0 {
		t.Errorf("classifier called %d times without a filter", classifier.calls)
	}
	if len(transport.snapshotReplies()) != 0 {
		t.Error("expected no replies without a filter")
	}
}

func TestHandleMessage_SkipsBotsAndCommands(t *testing.T) {
	classifier := &stubClassifier{label: domain.TopicWorld, conf: 0.9}
	svc, transport, topics, _ := newModerationFixture(classifier, 0)
	defer svc.Stop()

	topics.Set(context.Background(), "chat-1", domain.TopicSports)

	bot := liveMessage("msg-bot")
	bot.IsBot = true
	cmd := liveMessage("msg-cmd")
	cmd.Content = "!topicget"

	for _, msg := range []*domain.Message{bot, cmd} {
		if err := svc.HandleMessage(context.Background(), msg); err != nil {
			t.Fatalf("HandleMessage(%s): %v", msg.ID, err)
		}
	}
	if classifier.calls != 0 {
		t.Errorf("classifier called %d times for bot/command messages", classifier.calls)
	}
	if len(transport.snapshotReplies()) != 0 {
		t.Error("expected no warnings for bot/command messages")
	}
}

func TestHandleMessage_OnTopicAllowed(t *testing.T) {
	classifier := &stubClassifier{label: domain.TopicBusiness, conf: 0.95}
	svc, transport, topics, audit := newModerationFixture(classifier, 0)
	defer svc.Stop()

	topics.Set(context.Background(), "chat-1", domain.TopicBusiness)

	if err := svc.HandleMessage(context.Background(), liveMessage("msg-1")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(transport.snapshotReplies()) != 0 {
		t.Error("expected no warning for an on-topic message")
	}
	if len(audit.snapshot()) != 0 {
		t.Error("expected no audit record for an on-topic message")
	}
}

func TestHandleMessage_LowConfidenceWarnsOnly(t *testing.T) {
	classifier := &stubClassifier{label: domain.TopicWorld, conf: 0.4}
	svc, transport, topics, audit := newModerationFixture(classifier, 0.8)
	defer svc.Stop()

	topics.Set(context.Background(), "chat-1", domain.TopicSports)

	if err := svc.HandleMessage(context.Background(), liveMessage("msg-1")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	replies := transport.snapshotReplies()
	if len(replies) != 1 {
		t.Fatalf("expected 1 warning reply, got %d", len(replies))
	}
	if !strings.Contains(replies[0].text, "NOT be auto-deleted") {
		t.Errorf("warning should mention no auto-delete, got %q", replies[0].text)
	}
	if len(audit.snapshot()) != 1 {
		t.Errorf("expected 1 audit record, got %d", len(audit.snapshot()))
	}

	// Give a would-be countdown room to tick, then confirm nothing happened.
	time.Sleep(20 * time.Millisecond)
	if len(transport.snapshotEdits()) != 0 {
		t.Error("expected no countdown edits for a low-confidence verdict")
	}
	if len(transport.snapshotDeleted()) != 0 {
		t.Error("expected no deletion for a low-confidence verdict")
	}
}

func TestHandleMessage_CountdownDeletes(t *testing.T) {
	classifier := &stubClassifier{label: domain.TopicSciTech, conf: 0.87}
	svc, transport, topics, audit := newModerationFixture(classifier, 0)
	defer svc.Stop()

	topics.Set(context.Background(), "chat-1", domain.TopicBusiness)

	if err := svc.HandleMessage(context.Background(), liveMessage("msg-1")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	replies := transport.snapshotReplies()
	if len(replies) != 1 {
		t.Fatalf("expected 1 warning reply, got %d", len(replies))
	}
	if !strings.Contains(replies[0].text, "deleted in 10 seconds") {
		t.Errorf("warning should announce the countdown, got %q", replies[0].text)
	}

	records := audit.snapshot()
	if len(records) != 1 {
		t.Fatalf("expected the audit record before the countdown, got %d", len(records))
	}
	if records[0].decision.Predicted != domain.TopicSciTech || records[0].decision.Allowed != domain.TopicBusiness {
		t.Errorf("unexpected audit decision: %+v", records[0].decision)
	}

	waitFor(t, "message deletion", func() bool {
		return len(transport.snapshotDeleted()) == 1
	})
	if got := transport.snapshotDeleted()[0]; got != "msg-1" {
		t.Errorf("deleted %q, want msg-1", got)
	}

	waitFor(t, "terminal edit", func() bool {
		edits := transport.snapshotEdits()
		return len(edits) > 0 && strings.Contains(edits[len(edits)-1].text, "Message deleted")
	})

	edits := transport.snapshotEdits()
	countdownEdits := 0
	for _, e := range edits {
		if strings.Contains(e.text, "Deleting in") {
			countdownEdits++
		}
	}
	if countdownEdits != 10 {
		t.Errorf("expected 10 countdown edits, got %d", countdownEdits)
	}
	if !strings.Contains(edits[0].text, "Deleting in 10 seconds") {
		t.Errorf("first edit should start at 10, got %q", edits[0].text)
	}
	for _, e := range edits {
		if e.id != replies[0].id {
			t.Errorf("edit targeted %q, want the warning %q", e.id, replies[0].id)
		}
	}
}

func TestHandleMessage_DeleteNotFoundSwallowed(t *testing.T) {
	classifier := &stubClassifier{label: domain.TopicWorld, conf: 0.9}
	svc, transport, topics, _ := newModerationFixture(classifier, 0)
	defer svc.Stop()

	transport.deleteErr = repo.ErrMessageNotFound
	topics.Set(context.Background(), "chat-1", domain.TopicSports)

	if err := svc.HandleMessage(context.Background(), liveMessage("msg-1")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	waitFor(t, "countdown to finish", func() bool {
		edits := transport.snapshotEdits()
		return len(edits) >= 10 && strings.Contains(edits[9].text, "Deleting in 1 seconds")
	})
	// Let the final delete attempt land.
	time.Sleep(20 * time.Millisecond)

	for _, e := range transport.snapshotEdits() {
		if strings.Contains(e.text, "Message deleted") {
			t.Errorf("no terminal edit expected when the target is already gone, got %q", e.text)
		}
	}
}

func TestHandleTopicClear_AbortsCountdown(t *testing.T) {
	classifier := &stubClassifier{label: domain.TopicWorld, conf: 0.9}
	svc, transport, topics, _ := newModerationFixture(classifier, 0)
	defer svc.Stop()

	svc.tick = 50 * time.Millisecond
	topics.Set(context.Background(), "chat-1", domain.TopicSports)

	if err := svc.HandleMessage(context.Background(), liveMessage("msg-1")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	waitFor(t, "countdown to start", func() bool {
		return len(transport.snapshotEdits()) > 0
	})

	svc.HandleTopicClear(context.Background(), "chat-1", "msg-cmd")

	waitFor(t, "aborted edit", func() bool {
		edits := transport.snapshotEdits()
		return strings.Contains(edits[len(edits)-1].text, "countdown aborted")
	})
	if len(transport.snapshotDeleted()) != 0 {
		t.Error("aborted countdown must not delete the message")
	}
	if _, ok, _ := topics.Get(context.Background(), "chat-1"); ok {
		t.Error("topic should be cleared")
	}

	replies := transport.snapshotReplies()
	last := replies[len(replies)-1].text
	if !strings.Contains(last, "Topic filter cleared") {
		t.Errorf("expected clear confirmation, got %q", last)
	}
}

func TestTopicCommands(t *testing.T) {
	classifier := &stubClassifier{label: domain.TopicWorld, conf: 0.9}
	svc, transport, _, _ := newModerationFixture(classifier, 0)
	defer svc.Stop()

	ctx := context.Background()

	lastReply := func() string {
		replies := transport.snapshotReplies()
		if len(replies) == 0 {
			t.Fatal("expected a reply")
		}
		return replies[len(replies)-1].text
	}

	svc.HandleTopicGet(ctx, "chat-1", "m1")
	if !strings.Contains(lastReply(), "No topic is set") {
		t.Errorf("unexpected topicget reply: %q", lastReply())
	}

	svc.HandleTopicClear(ctx, "chat-1", "m2")
	if !strings.Contains(lastReply(), "No topic is currently set") {
		t.Errorf("unexpected topicclear reply: %q", lastReply())
	}

	svc.HandleTopicSet(ctx, "chat-1", "m3", "finance")
	if !strings.Contains(lastReply(), "Invalid topic") {
		t.Errorf("unexpected invalid topicset reply: %q", lastReply())
	}

	svc.HandleTopicSet(ctx, "chat-1", "m4", "business")
	if !strings.Contains(lastReply(), "set to **Business**") {
		t.Errorf("unexpected topicset reply: %q", lastReply())
	}

	svc.HandleTopicGet(ctx, "chat-1", "m5")
	if !strings.Contains(lastReply(), "**Business**") {
		t.Errorf("unexpected topicget reply: %q", lastReply())
	}

	svc.HandleTopicList(ctx, "m6")
	if !strings.Contains(lastReply(), "World, Sports, Business, Sci/Tech") {
		t.Errorf("unexpected topiclist reply: %q", lastReply())
	}

	svc.HandleTopicClear(ctx, "chat-1", "m7")
	if !strings.Contains(lastReply(), "All messages are now allowed") {
		t.Errorf("unexpected topicclear reply: %q", lastReply())
	}
}
