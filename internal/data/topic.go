package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/franklin001/feishu-sentinel/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// memoryTopicRepo keeps channel topics in process memory. This is the
// default: topics do not survive a restart.
type memoryTopicRepo struct {
	mu     sync.RWMutex
	topics map[string]string
}

// NewMemoryTopicRepo creates an in-memory topic repository
func NewMemoryTopicRepo() repo.TopicRepo {
	return &memoryTopicRepo{topics: make(map[string]string)}
}

func (r *memoryTopicRepo) Get(ctx context.Context, chatID string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	topic, ok := r.topics[chatID]
	return topic, ok, nil
}

func (r *memoryTopicRepo) Set(ctx context.Context, chatID, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics[chatID] = topic
	return nil
}

func (r *memoryTopicRepo) Clear(ctx context.Context, chatID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.topics, chatID)
	return nil
}

// sqliteTopicRepo persists channel topics so they survive restarts.
// Enabled by setting TOPIC_DB_PATH; it serves the same interface as the
// in-memory store.
type sqliteTopicRepo struct {
	db *sql.DB
}

// NewSQLiteTopicRepo creates a SQLite-backed topic repository
func NewSQLiteTopicRepo(dbPath string) (repo.TopicRepo, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS channel_topics (
			chat_id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &sqliteTopicRepo{db: db}, nil
}

func (r *sqliteTopicRepo) Get(ctx context.Context, chatID string) (string, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT topic FROM channel_topics WHERE chat_id = ?`, chatID)

	var topic string
	err := row.Scan(&topic)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query topic: %w", err)
	}
	return topic, true, nil
}

func (r *sqliteTopicRepo) Set(ctx context.Context, chatID, topic string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO channel_topics (chat_id, topic, updated_at)
		VALUES (?, ?, ?)
	`, chatID, topic, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save topic: %w", err)
	}
	return nil
}

func (r *sqliteTopicRepo) Clear(ctx context.Context, chatID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM channel_topics WHERE chat_id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("failed to clear topic: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (r *sqliteTopicRepo) Close() error {
	return r.db.Close()
}
