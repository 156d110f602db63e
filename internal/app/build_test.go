package app

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ariavoice/aria/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		BindAddr:            ":0",
		MetricsNamespace:    fmt.Sprintf("test_app_%d", time.Now().UnixNano()),
		AllowAnyOrigin:      true,
		SegmentationEnabled: true,
		SegmentDelimiters:   config.DefaultDelimiters,
		SegmentMaxChars:     50,
		LLMProvider:         "mock",
		TTSProvider:         "mock",
		STTProvider:         "mock",
		FrontendPlayback:    true,
		PlaybackSampleRate:  24000,
		STTSampleRate:       16000,
	}
}

func TestBuildWiresMockPipeline(t *testing.T) {
	res, err := Build(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	t.Cleanup(func() { _ = res.Cleanup() })

	if res.API == nil {
		t.Fatalf("API = nil, want server")
	}
	if res.Orchestrator == nil {
		t.Fatalf("Orchestrator = nil, want pipeline")
	}
	if res.Info.LLM != "mock" {
		t.Fatalf("Info.LLM = %q, want mock", res.Info.LLM)
	}
	if res.Info.TTS != "mock" {
		t.Fatalf("Info.TTS = %q, want mock", res.Info.TTS)
	}
	if res.Info.History != "in-memory ring" {
		t.Fatalf("Info.History = %q, want in-memory ring", res.Info.History)
	}
	if res.Info.Wakeword != "disabled" {
		t.Fatalf("Info.Wakeword = %q, want disabled", res.Info.Wakeword)
	}
}

func TestBuildDegradesMissingCredentialsToMocks(t *testing.T) {
	cfg := testConfig()
	cfg.LLMProvider = "openai"
	cfg.TTSProvider = "azure"
	cfg.STTProvider = "deepgram"

	res, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	t.Cleanup(func() { _ = res.Cleanup() })

	if !strings.HasPrefix(res.Info.LLM, "mock (") {
		t.Fatalf("Info.LLM = %q, want mock fallback", res.Info.LLM)
	}
	if !strings.HasPrefix(res.Info.TTS, "mock (") {
		t.Fatalf("Info.TTS = %q, want mock fallback", res.Info.TTS)
	}
	if !strings.HasPrefix(res.Info.STT, "mock (") {
		t.Fatalf("Info.STT = %q, want mock fallback", res.Info.STT)
	}
}

func TestBuildCleanupIsReentrantSafe(t *testing.T) {
	res, err := Build(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if err := res.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if err := res.Cleanup(); err != nil {
		t.Fatalf("second Cleanup() error = %v", err)
	}
}

func TestLocalControlURL(t *testing.T) {
	tests := []struct {
		bind string
		want string
	}{
		{":8000", "http://localhost:8000"},
		{"", "http://localhost:8000"},
		{"127.0.0.1:9001", "http://127.0.0.1:9001"},
	}
	for _, tt := range tests {
		if got := localControlURL(tt.bind); got != tt.want {
			t.Fatalf("localControlURL(%q) = %q, want %q", tt.bind, got, tt.want)
		}
	}
}
