package data

import (
	"github.com/franklin001/feishu-sentinel/internal/biz/repo"
	"github.com/franklin001/feishu-sentinel/internal/conf"
	"github.com/franklin001/feishu-sentinel/internal/infra/classifier"
	"github.com/franklin001/feishu-sentinel/internal/infra/feishu"
)

// Repositories contains all repositories
type Repositories struct {
	Message    repo.MessageRepo
	Sentiment  repo.ClassifierRepo
	Topic      repo.ClassifierRepo
	TopicState repo.TopicRepo
	Export     repo.SentimentExportRepo
	Audit      repo.ModerationAuditRepo
}

// NewRepositories creates all repositories
func NewRepositories(feishuClient *feishu.Client, cfg *conf.Config) (*Repositories, error) {
	exportRepo, err := NewSentimentExportRepo(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	auditRepo, err := NewModerationAuditRepo(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	// In-memory topics by default; SQLite keeps them across restarts
	var topicState repo.TopicRepo
	if cfg.TopicDBPath != "" {
		topicState, err = NewSQLiteTopicRepo(cfg.TopicDBPath)
		if err != nil {
			return nil, err
		}
	} else {
		topicState = NewMemoryTopicRepo()
	}

	sentimentClient := classifier.NewClient(cfg.Classifier.APIKey, cfg.Classifier.BaseURL, cfg.Classifier.SentimentModel)
	topicClient := classifier.NewClient(cfg.Classifier.APIKey, cfg.Classifier.BaseURL, cfg.Classifier.TopicModel)

	return &Repositories{
		Message:    NewFeishuRepo(feishuClient),
		Sentiment:  NewSentimentClassifier(sentimentClient, cfg.Prompts.Sentiment.SystemPrompt),
		Topic:      NewTopicClassifier(topicClient, cfg.Prompts.Topic.SystemPrompt),
		TopicState: topicState,
		Export:     exportRepo,
		Audit:      auditRepo,
	}, nil
}
