package stt

import (
	"context"
	"fmt"
	"strings"

	"github.com/ariavoice/aria/internal/observability"
)

// Transcript is one recognition event. Interim hypotheses replace each
// other as the user speaks; a final transcript is a committed utterance
// ready to be forwarded to the client.
type Transcript struct {
	Text  string
	Final bool
}

// Engine is the transcription collaborator for the turn pipeline.
// StartListening and PauseListening are idempotent; transcripts arrive on
// the Transcripts channel only while listening.
type Engine interface {
	StartListening(ctx context.Context) error
	PauseListening()
	IsListening() bool
	Transcripts() <-chan Transcript
	Close() error
}

// AudioSource feeds mono 16-bit frames to a streaming recognizer. The
// default microphone capturer satisfies it; tests substitute scripted
// sources.
type AudioSource interface {
	Start() error
	Frames() <-chan []int16
	Pause()
	Resume()
	Close() error
}

type Config struct {
	Provider   string
	APIKey     string
	Model      string
	Language   string
	SampleRate int

	// Source overrides the default microphone, mainly for tests.
	Source  AudioSource
	Metrics *observability.Metrics
}

// NewEngine builds the configured transcription backend.
func NewEngine(cfg Config) (Engine, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "deepgram":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("deepgram API key is required")
		}
		return NewDeepgramEngine(DeepgramConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Language:   cfg.Language,
			SampleRate: cfg.SampleRate,
			Source:     cfg.Source,
			Metrics:    cfg.Metrics,
		}), nil
	case "mock":
		return NewMockEngine(), nil
	default:
		return nil, fmt.Errorf("unsupported stt provider %q", cfg.Provider)
	}
}
