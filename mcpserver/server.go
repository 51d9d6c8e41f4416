package mcpserver

import (
	"context"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/franklin001/feishu-sentinel/internal/biz/domain"
)

// SentinelMCPServer exposes topic moderation and sentiment analysis as MCP
// tools, so an agent can drive the same operations the chat commands do.
type SentinelMCPServer struct {
	server *mcp.Server
}

// SetTopicCallback stores the allowed topic for a chat and returns the
// canonical label.
type SetTopicCallback func(ctx context.Context, chatID, topic string) (string, error)

// GetTopicCallback returns the chat's allowed topic and whether one is set.
type GetTopicCallback func(ctx context.Context, chatID string) (string, bool, error)

// ClearTopicCallback removes the chat's filter and reports whether one
// existed.
type ClearTopicCallback func(ctx context.Context, chatID string) (bool, error)

// AnalyzeCallback runs a sentiment analysis over a window like "24h" and
// returns the formatted report.
type AnalyzeCallback func(ctx context.Context, chatID, window string) (string, error)

// Callbacks holds the callback functions for MCP tools
type Callbacks struct {
	SetTopic   SetTopicCallback
	GetTopic   GetTopicCallback
	ClearTopic ClearTopicCallback
	Analyze    AnalyzeCallback
}

var (
	globalCallbacks *Callbacks
	serverMu        sync.Mutex
)

// NewServer creates a new sentinel MCP server
func NewServer(callbacks *Callbacks) *SentinelMCPServer {
	serverMu.Lock()
	defer serverMu.Unlock()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "sentinel-tools",
		Version: "v1.0.0",
	}, nil)

	s := &SentinelMCPServer{server: server}
	globalCallbacks = callbacks
	s.registerTools()
	return s
}

// registerTools registers all sentinel MCP tools
func (s *SentinelMCPServer) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sentinel_set_topic",
		Description: "Set the allowed topic for a chat. Valid topics: World, Sports, Business, Sci/Tech (case-insensitive).",
	}, handleSetTopic)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sentinel_get_topic",
		Description: "Get the currently allowed topic for a chat, if any.",
	}, handleGetTopic)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sentinel_clear_topic",
		Description: "Clear the topic filter for a chat. All messages are allowed afterwards and any pending deletion countdowns are aborted.",
	}, handleClearTopic)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sentinel_list_topics",
		Description: "List the topics a filter can be set to.",
	}, handleListTopics)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sentinel_analyze_sentiment",
		Description: "Run a sentiment analysis over recent chat messages. The window accepts forms like 90m, 24h or 7d.",
	}, handleAnalyze)
}

// SetTopicInput is the input for the set_topic tool
type SetTopicInput struct {
	ChatID string `json:"chat_id" jsonschema:"description=The Feishu chat ID"`
	Topic  string `json:"topic" jsonschema:"description=The allowed topic: World, Sports, Business or Sci/Tech"`
}

// SetTopicOutput is the output for the set_topic tool
type SetTopicOutput struct {
	Success bool   `json:"success"`
	Topic   string `json:"topic,omitempty"`
	Error   string `json:"error,omitempty"`
}

func handleSetTopic(ctx context.Context, req *mcp.CallToolRequest, input SetTopicInput) (*mcp.CallToolResult, SetTopicOutput, error) {
	if globalCallbacks == nil || globalCallbacks.SetTopic == nil {
		return nil, SetTopicOutput{Error: "callback not configured"}, nil
	}

	canonical, err := globalCallbacks.SetTopic(ctx, input.ChatID, input.Topic)
	if err != nil {
		return nil, SetTopicOutput{Error: err.Error()}, nil
	}
	return nil, SetTopicOutput{Success: true, Topic: canonical}, nil
}

// GetTopicInput is the input for the get_topic tool
type GetTopicInput struct {
	ChatID string `json:"chat_id" jsonschema:"description=The Feishu chat ID"`
}

// GetTopicOutput is the output for the get_topic tool
type GetTopicOutput struct {
	Topic string `json:"topic,omitempty"`
	Set   bool   `json:"set"`
	Error string `json:"error,omitempty"`
}

func handleGetTopic(ctx context.Context, req *mcp.CallToolRequest, input GetTopicInput) (*mcp.CallToolResult, GetTopicOutput, error) {
	if globalCallbacks == nil || globalCallbacks.GetTopic == nil {
		return nil, GetTopicOutput{Error: "callback not configured"}, nil
	}

	topic, ok, err := globalCallbacks.GetTopic(ctx, input.ChatID)
	if err != nil {
		return nil, GetTopicOutput{Error: err.Error()}, nil
	}
	return nil, GetTopicOutput{Topic: topic, Set: ok}, nil
}

// ClearTopicInput is the input for the clear_topic tool
type ClearTopicInput struct {
	ChatID string `json:"chat_id" jsonschema:"description=The Feishu chat ID"`
}

// ClearTopicOutput is the output for the clear_topic tool
type ClearTopicOutput struct {
	Success bool   `json:"success"`
	Cleared bool   `json:"cleared"`
	Error   string `json:"error,omitempty"`
}

func handleClearTopic(ctx context.Context, req *mcp.CallToolRequest, input ClearTopicInput) (*mcp.CallToolResult, ClearTopicOutput, error) {
	if globalCallbacks == nil || globalCallbacks.ClearTopic == nil {
		return nil, ClearTopicOutput{Error: "callback not configured"}, nil
	}

	cleared, err := globalCallbacks.ClearTopic(ctx, input.ChatID)
	if err != nil {
		return nil, ClearTopicOutput{Error: err.Error()}, nil
	}
	return nil, ClearTopicOutput{Success: true, Cleared: cleared}, nil
}

// ListTopicsInput is empty - no input needed
type ListTopicsInput struct{}

// ListTopicsOutput contains the canonical topic labels
type ListTopicsOutput struct {
	Topics []string `json:"topics"`
}

func handleListTopics(ctx context.Context, req *mcp.CallToolRequest, input ListTopicsInput) (*mcp.CallToolResult, ListTopicsOutput, error) {
	return nil, ListTopicsOutput{Topics: append([]string(nil), domain.TopicLabels...)}, nil
}

// AnalyzeInput is the input for the analyze_sentiment tool
type AnalyzeInput struct {
	ChatID string `json:"chat_id" jsonschema:"description=The Feishu chat ID"`
	Window string `json:"window,omitempty" jsonschema:"description=The analysis window, e.g. 90m, 24h or 7d (default 24h)"`
}

// AnalyzeOutput is the output for the analyze_sentiment tool
type AnalyzeOutput struct {
	Report string `json:"report,omitempty"`
	Error  string `json:"error,omitempty"`
}

func handleAnalyze(ctx context.Context, req *mcp.CallToolRequest, input AnalyzeInput) (*mcp.CallToolResult, AnalyzeOutput, error) {
	if globalCallbacks == nil || globalCallbacks.Analyze == nil {
		return nil, AnalyzeOutput{Error: "callback not configured"}, nil
	}

	window := strings.TrimSpace(input.Window)
	if window == "" {
		window = "24h"
	}

	report, err := globalCallbacks.Analyze(ctx, input.ChatID, window)
	if err != nil {
		return nil, AnalyzeOutput{Error: err.Error()}, nil
	}
	return nil, AnalyzeOutput{Report: report}, nil
}

// Run starts the MCP server with stdio transport
func (s *SentinelMCPServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// GetServer returns the underlying MCP server
func (s *SentinelMCPServer) GetServer() *mcp.Server {
	return s.server
}
