package data

import (
	"context"
	"fmt"
	"strings"

	"github.com/franklin001/feishu-sentinel/internal/biz/domain"
	"github.com/franklin001/feishu-sentinel/internal/biz/repo"
	"github.com/franklin001/feishu-sentinel/internal/infra/classifier"
)

// classifierRepo implements a classification oracle on a chat-completion
// model. One instance per label set: sentiment and topic.
type classifierRepo struct {
	client *classifier.Client
	prompt string
	labels []string
}

// NewSentimentClassifier creates the sentiment oracle
func NewSentimentClassifier(client *classifier.Client, prompt string) repo.ClassifierRepo {
	return &classifierRepo{
		client: client,
		prompt: prompt,
		labels: domain.SentimentLabels,
	}
}

// NewTopicClassifier creates the topic oracle
func NewTopicClassifier(client *classifier.Client, prompt string) repo.ClassifierRepo {
	return &classifierRepo{
		client: client,
		prompt: prompt,
		labels: domain.TopicLabels,
	}
}

// Classify invokes the model and snaps the returned label to the canonical
// label set. A label outside the set is an oracle fault, not a decision.
func (r *classifierRepo) Classify(ctx context.Context, text string) (string, float64, error) {
	label, confidence, err := r.client.Classify(ctx, r.prompt, text)
	if err != nil {
		return "", 0, err
	}

	for _, canonical := range r.labels {
		if strings.EqualFold(canonical, label) {
			return canonical, confidence, nil
		}
	}
	return "", 0, fmt.Errorf("unexpected label %q from classifier", label)
}
