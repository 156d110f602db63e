package llm

import (
	"context"
	"fmt"
	"strings"
)

// Message is one chat-completion message.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a completed model request to invoke one tool.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the tool name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// FragmentHandler receives streaming text fragments.
type FragmentHandler func(fragment string) error

// StopCheck reports whether generation should halt. Checked on every
// received chunk; when it flips, the upstream stream is closed early and
// the streamer returns without error so downstream stages drain cleanly.
type StopCheck func() bool

// Streamer produces one assistant reply as incremental fragments.
type Streamer interface {
	StreamChat(ctx context.Context, messages []Message, stopped StopCheck, onFragment FragmentHandler) error
}

// Host describes one OpenAI-compatible chat endpoint.
type Host struct {
	BaseURL      string
	DefaultModel string
}

var hosts = map[string]Host{
	"openai":     {BaseURL: "https://api.openai.com/v1", DefaultModel: "gpt-4o-mini"},
	"openrouter": {BaseURL: "https://openrouter.ai/api/v1", DefaultModel: "meta-llama/llama-3.1-70b-instruct"},
}

// LookupHost resolves a named OpenAI-compatible endpoint.
func LookupHost(name string) (Host, bool) {
	h, ok := hosts[strings.ToLower(strings.TrimSpace(name))]
	return h, ok
}

// Config controls streamer construction.
type Config struct {
	Provider      string
	Model         string
	OpenAIKey     string
	OpenRouterKey string
	OllamaURL     string
	OllamaModel   string
	Tools         *ToolRegistry
}

// NewStreamer builds the configured chat backend. Missing credentials fail
// here, before any turn starts.
func NewStreamer(cfg Config) (Streamer, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "openai", "openrouter":
		host, _ := LookupHost(provider)
		key := cfg.OpenAIKey
		if provider == "openrouter" {
			key = cfg.OpenRouterKey
		}
		if strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("%s API key is required", provider)
		}
		model := strings.TrimSpace(cfg.Model)
		if model == "" {
			model = host.DefaultModel
		}
		return NewOpenAIStreamer(host.BaseURL, key, model, cfg.Tools), nil
	case "ollama":
		model := strings.TrimSpace(cfg.Model)
		if model == "" {
			model = cfg.OllamaModel
		}
		return NewOllamaStreamer(cfg.OllamaURL, model)
	case "mock":
		return NewMockStreamer(), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
