package data

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/franklin001/feishu-sentinel/internal/biz/domain"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func TestSentimentExportRepo_OverwritesWholesale(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewSentimentExportRepo(dir)
	if err != nil {
		t.Fatalf("NewSentimentExportRepo: %v", err)
	}

	ctx := context.Background()
	when := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	first := []domain.Classified{
		{Message: domain.Message{SenderName: "alice", Content: "great", CreateTime: when}, Label: domain.SentimentPositive, Confidence: 0.9},
		{Message: domain.Message{SenderName: "bob", Content: "meh", CreateTime: when}, Label: domain.SentimentNeutral, Confidence: 0.5},
	}
	if err := repo.WriteExport(ctx, first); err != nil {
		t.Fatalf("first WriteExport: %v", err)
	}

	second := []domain.Classified{
		{Message: domain.Message{SenderName: "carol", Content: "bad", CreateTime: when}, Label: domain.SentimentNegative, Confidence: 0.8},
	}
	if err := repo.WriteExport(ctx, second); err != nil {
		t.Fatalf("second WriteExport: %v", err)
	}

	rows := readCSV(t, filepath.Join(dir, exportFileName))
	if len(rows) != 2 { // header + one record: the second run replaced the first
		t.Fatalf("expected 2 rows after overwrite, got %d: %v", len(rows), rows)
	}
	if rows[0][0] != "timestamp" || rows[0][3] != "sentiment" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][1] != "carol" || rows[1][3] != domain.SentimentNegative {
		t.Errorf("unexpected record: %v", rows[1])
	}
}

func TestModerationAuditRepo_Appends(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewModerationAuditRepo(dir)
	if err != nil {
		t.Fatalf("NewModerationAuditRepo: %v", err)
	}

	ctx := context.Background()
	when := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	msg := domain.Message{SenderName: "alice", Content: "election news"}
	decision := domain.Decision{Predicted: "World", Confidence: 0.9, Allowed: "Sports", Action: domain.ActionWarnAndDelete}

	if err := repo.Append(ctx, when, msg, decision); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	if err := repo.Append(ctx, when.Add(time.Minute), msg, decision); err != nil {
		t.Fatalf("second Append: %v", err)
	}

	rows := readCSV(t, filepath.Join(dir, auditFileName))
	if len(rows) != 2 {
		t.Fatalf("expected 2 appended rows, got %d", len(rows))
	}
	if rows[0][3] != "World" || rows[0][5] != "Sports" {
		t.Errorf("unexpected audit record: %v", rows[0])
	}
	if rows[0][4] != "90.0000" {
		t.Errorf("confidence column = %q, want percent with 4 decimals", rows[0][4])
	}
}

func TestMemoryTopicRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTopicRepo()

	if _, ok, _ := repo.Get(ctx, "chat-1"); ok {
		t.Error("expected no topic initially")
	}

	if err := repo.Set(ctx, "chat-1", "Sports"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	topic, ok, _ := repo.Get(ctx, "chat-1")
	if !ok || topic != "Sports" {
		t.Errorf("Get = (%q, %v), want (Sports, true)", topic, ok)
	}

	if err := repo.Clear(ctx, "chat-1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := repo.Get(ctx, "chat-1"); ok {
		t.Error("expected topic cleared")
	}
}
