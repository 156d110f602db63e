package llm

import (
	"context"
	"strings"
	"testing"
)

func TestNewStreamerMock(t *testing.T) {
	s, err := NewStreamer(Config{Provider: "mock"})
	if err != nil {
		t.Fatalf("NewStreamer() error = %v", err)
	}

	var fragments []string
	err = s.StreamChat(context.Background(), []Message{{Role: "user", Content: "hello"}}, nil, func(f string) error {
		fragments = append(fragments, f)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}
	got := strings.Join(fragments, "")
	if !strings.Contains(got, "I heard you say: hello.") {
		t.Fatalf("unexpected mock reply: %q", got)
	}
	if len(fragments) < 2 {
		t.Fatalf("mock should stream multiple fragments, got %d", len(fragments))
	}
}

func TestNewStreamerRequiresKey(t *testing.T) {
	for _, provider := range []string{"openai", "openrouter"} {
		if _, err := NewStreamer(Config{Provider: provider}); err == nil {
			t.Fatalf("NewStreamer(%q) expected missing key error", provider)
		}
	}
}

func TestNewStreamerUnsupportedProvider(t *testing.T) {
	if _, err := NewStreamer(Config{Provider: "telepathy"}); err == nil {
		t.Fatalf("NewStreamer() expected unsupported provider error")
	}
}

func TestNewStreamerDefaultsModelFromHost(t *testing.T) {
	s, err := NewStreamer(Config{Provider: "openai", OpenAIKey: "k"})
	if err != nil {
		t.Fatalf("NewStreamer() error = %v", err)
	}
	oa, ok := s.(*OpenAIStreamer)
	if !ok {
		t.Fatalf("streamer type = %T, want *OpenAIStreamer", s)
	}
	if oa.model != "gpt-4o-mini" {
		t.Fatalf("model = %q, want gpt-4o-mini", oa.model)
	}
	if oa.baseURL != "https://api.openai.com/v1" {
		t.Fatalf("baseURL = %q", oa.baseURL)
	}
}

func TestLookupHost(t *testing.T) {
	h, ok := LookupHost("OpenRouter")
	if !ok {
		t.Fatalf("LookupHost() should resolve openrouter")
	}
	if h.BaseURL != "https://openrouter.ai/api/v1" {
		t.Fatalf("BaseURL = %q", h.BaseURL)
	}
	if _, ok := LookupHost("nowhere"); ok {
		t.Fatalf("LookupHost() resolved unknown host")
	}
}

func TestMockStreamerStop(t *testing.T) {
	s := NewMockStreamer()
	var fragments []string
	err := s.StreamChat(context.Background(), []Message{{Role: "user", Content: "hello"}},
		func() bool { return true },
		func(f string) error {
			fragments = append(fragments, f)
			return nil
		})
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}
	if len(fragments) != 0 {
		t.Fatalf("fragments = %d, want 0 after stop", len(fragments))
	}
}

func TestMockStreamerNoUserMessage(t *testing.T) {
	s := NewMockStreamer()
	var got strings.Builder
	err := s.StreamChat(context.Background(), nil, nil, func(f string) error {
		got.WriteString(f)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}
	if !strings.Contains(got.String(), "I am listening.") {
		t.Fatalf("unexpected reply: %q", got.String())
	}
}
