package classifier

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Client wraps an OpenAI-compatible chat completion endpoint used as a
// zero-shot text classifier. The system prompt pins the label set and the
// reply format; the model answers with "<label> <confidence>".
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a new classifier client. baseURL is optional and allows
// pointing at any OpenAI-compatible endpoint.
func NewClient(apiKey, baseURL, model string) *Client {
	if model == "" {
		model = "gpt-4o-mini"
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Classify sends the text against the given system prompt and parses the
// model's verdict. The input text is never modified.
func (c *Client) Classify(ctx context.Context, systemPrompt, text string) (string, float64, error) {
	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(cctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.1, // Low temperature for deterministic verdicts
		MaxTokens:   20,  // Short response needed for "<label> <confidence>"
	})
	if err != nil {
		return "", 0, fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", 0, fmt.Errorf("no response choices")
	}

	return parseVerdict(resp.Choices[0].Message.Content)
}

// parseVerdict parses replies of the form "Sci/Tech 0.87". The label may
// contain spaces; the confidence is the last field and is clamped to [0,1].
func parseVerdict(reply string) (string, float64, error) {
	fields := strings.Fields(strings.TrimSpace(reply))
	if len(fields) < 2 {
		return "", 0, fmt.Errorf("malformed verdict %q", reply)
	}

	confidence, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed confidence in %q: %w", reply, err)
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	label := strings.Join(fields[:len(fields)-1], " ")
	return label, confidence, nil
}
