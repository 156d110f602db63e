package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ariavoice/aria/internal/reliability"
)

// OpenAIStreamer speaks the OpenAI chat-completions protocol over
// server-sent events. OpenRouter exposes the same wire format, so the same
// client serves both hosts.
type OpenAIStreamer struct {
	baseURL string
	apiKey  string
	model   string
	tools   *ToolRegistry
	client  *http.Client
}

func NewOpenAIStreamer(baseURL, apiKey, model string, tools *ToolRegistry) *OpenAIStreamer {
	return &OpenAIStreamer{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  apiKey,
		model:   model,
		tools:   tools,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type chatRequest struct {
	Model       string       `json:"model"`
	Messages    []Message    `json:"messages"`
	Tools       []ToolSchema `json:"tools,omitempty"`
	Stream      bool         `json:"stream"`
	Temperature float64      `json:"temperature"`
	TopP        float64      `json:"top_p"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// StreamChat runs one assistant turn. When the model asks for tools, the
// calls are executed and a follow-up completion is streamed without the
// tool list so the reply always ends in plain text.
func (s *OpenAIStreamer) StreamChat(ctx context.Context, messages []Message, stopped StopCheck, onFragment FragmentHandler) error {
	msgs := append([]Message(nil), messages...)
	withTools := s.tools != nil && s.tools.Len() > 0

	for {
		calls, err := s.streamOnce(ctx, msgs, withTools, stopped, onFragment)
		if err != nil {
			return err
		}
		if len(calls) == 0 || (stopped != nil && stopped()) {
			return nil
		}

		msgs = append(msgs, Message{Role: "assistant", ToolCalls: calls})
		for _, call := range calls {
			result, err := s.tools.Invoke(ctx, call.Function.Name, call.Function.Arguments)
			if err != nil {
				msgs = append(msgs, Message{Role: "assistant", Content: "[Error]: " + err.Error()})
				continue
			}
			msgs = append(msgs, Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    result,
			})
		}
		withTools = false
	}
}

func (s *OpenAIStreamer) streamOnce(ctx context.Context, messages []Message, withTools bool, stopped StopCheck, onFragment FragmentHandler) ([]ToolCall, error) {
	req := chatRequest{
		Model:       s.model,
		Messages:    messages,
		Stream:      true,
		Temperature: 0.7,
		TopP:        1.0,
	}
	if withTools {
		req.Tools = s.tools.Schemas()
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	res, err := s.connect(ctx, payload)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	scanner := bufio.NewScanner(res.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var calls []ToolCall
	halted := false
	for scanner.Scan() {
		if stopped != nil && stopped() {
			halted = true
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if line == "[DONE]" {
			break
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		for _, tc := range delta.ToolCalls {
			for tc.Index >= len(calls) {
				calls = append(calls, ToolCall{Type: "function"})
			}
			cur := &calls[tc.Index]
			if tc.ID != "" {
				cur.ID = tc.ID
			}
			if tc.Function.Name != "" {
				cur.Function.Name = tc.Function.Name
			}
			cur.Function.Arguments += tc.Function.Arguments
		}

		if delta.Content != "" && onFragment != nil {
			if err := onFragment(delta.Content); err != nil {
				return nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil && !halted {
		return nil, fmt.Errorf("stream read: %w", err)
	}
	if halted {
		return nil, nil
	}
	return calls, nil
}

func (s *OpenAIStreamer) connect(ctx context.Context, payload []byte) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(reliability.ExponentialBackoff(attempt, 250*time.Millisecond, 2*time.Second)):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream")
		httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

		res, err := s.client.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("send request: %w", err)
			continue
		}
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
			res.Body.Close()
			lastErr = fmt.Errorf("chat completion status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
			if reliability.IsRetryableHTTPStatus(res.StatusCode) {
				continue
			}
			return nil, lastErr
		}
		return res, nil
	}
	return nil, lastErr
}
