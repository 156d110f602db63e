package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// OllamaStreamer runs chat turns against a local Ollama daemon. Tool calls
// are not wired for this backend; replies are plain streamed text.
type OllamaStreamer struct {
	client *api.Client
	model  string
}

func NewOllamaStreamer(rawURL, model string) (*OllamaStreamer, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		rawURL = "http://localhost:11434"
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url: %w", err)
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("ollama model is required")
	}
	return &OllamaStreamer{
		client: api.NewClient(parsed, &http.Client{Timeout: 5 * time.Minute}),
		model:  model,
	}, nil
}

// Available pings the daemon so startup can fail before the first turn.
func (s *OllamaStreamer) Available(ctx context.Context) error {
	return s.client.Heartbeat(ctx)
}

var errHalted = errors.New("chat halted")

func (s *OllamaStreamer) StreamChat(ctx context.Context, messages []Message, stopped StopCheck, onFragment FragmentHandler) error {
	msgs := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, api.Message{Role: m.Role, Content: m.Content})
	}

	stream := true
	req := &api.ChatRequest{
		Model:    s.model,
		Messages: msgs,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": 0.7,
			"top_p":       1.0,
		},
	}

	err := s.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if stopped != nil && stopped() {
			return errHalted
		}
		if resp.Message.Content != "" && onFragment != nil {
			return onFragment(resp.Message.Content)
		}
		return nil
	})
	if errors.Is(err, errHalted) {
		return nil
	}
	return err
}
