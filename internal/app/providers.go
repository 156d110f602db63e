package app

import (
	"fmt"

	"github.com/ariavoice/aria/internal/config"
	"github.com/ariavoice/aria/internal/llm"
	"github.com/ariavoice/aria/internal/observability"
	"github.com/ariavoice/aria/internal/stt"
	"github.com/ariavoice/aria/internal/voice"
)

type llmSetup struct {
	streamer llm.Streamer
	detail   string
}

// resolveStreamer builds the model client for the configured provider. A
// missing key degrades to the mock streamer so the server still answers,
// audibly wrong rather than silently down.
func resolveStreamer(cfg config.Config) llmSetup {
	tools := llm.DefaultTools(cfg.OpenWeatherAPIKey)

	switch cfg.LLMProvider {
	case "mock":
		return llmSetup{streamer: llm.NewMockStreamer(), detail: "mock"}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return llmSetup{streamer: llm.NewMockStreamer(), detail: "mock (OPENAI_API_KEY not set)"}
		}
	case "openrouter":
		if cfg.OpenRouterAPIKey == "" {
			return llmSetup{streamer: llm.NewMockStreamer(), detail: "mock (OPENROUTER_API_KEY not set)"}
		}
	}

	streamer, err := llm.NewStreamer(llm.Config{
		Provider:      cfg.LLMProvider,
		Model:         cfg.LLMModel,
		OpenAIKey:     cfg.OpenAIAPIKey,
		OpenRouterKey: cfg.OpenRouterAPIKey,
		OllamaURL:     cfg.OllamaURL,
		OllamaModel:   cfg.OllamaModel,
		Tools:         tools,
	})
	if err != nil {
		return llmSetup{streamer: llm.NewMockStreamer(), detail: fmt.Sprintf("mock (%v)", err)}
	}
	return llmSetup{streamer: streamer, detail: cfg.LLMProvider}
}

type ttsSetup struct {
	provider voice.Provider
	detail   string
}

// resolveTTS builds the synthesis provider, chaining the configured
// fallback behind the primary when both are available.
func resolveTTS(cfg config.Config) ttsSetup {
	primary := buildTTSProvider(cfg, cfg.TTSProvider)
	detail := cfg.TTSProvider
	if primary == nil {
		primary = voice.NewMockProvider()
		detail = fmt.Sprintf("mock (%s credentials not set)", cfg.TTSProvider)
	}

	if cfg.TTSFallbackProvider != "" {
		if fallback := buildTTSProvider(cfg, cfg.TTSFallbackProvider); fallback != nil {
			return ttsSetup{
				provider: voice.NewFailoverProvider(primary, fallback),
				detail:   fmt.Sprintf("%s with %s fallback", detail, cfg.TTSFallbackProvider),
			}
		}
	}
	return ttsSetup{provider: primary, detail: detail}
}

func buildTTSProvider(cfg config.Config, name string) voice.Provider {
	switch name {
	case "azure":
		if cfg.AzureSpeechKey == "" {
			return nil
		}
		return voice.NewAzureProvider(voice.AzureConfig{
			Key:          cfg.AzureSpeechKey,
			Region:       cfg.AzureSpeechRegion,
			Voice:        cfg.AzureTTSVoice,
			OutputFormat: cfg.AzureTTSOutputFormat,
			Rate:         cfg.AzureProsodyRate,
			Pitch:        cfg.AzureProsodyPitch,
			Volume:       cfg.AzureProsodyVolume,
		})
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil
		}
		return voice.NewOpenAIProvider(voice.OpenAITTSConfig{
			APIKey:     cfg.OpenAIAPIKey,
			Model:      cfg.OpenAITTSModel,
			Voice:      cfg.OpenAITTSVoice,
			Speed:      cfg.OpenAITTSSpeed,
			Format:     cfg.OpenAITTSFormat,
			ChunkSize:  cfg.OpenAITTSChunkSize,
			BufferSize: cfg.OpenAITTSBufferSize,
		})
	case "mock":
		return voice.NewMockProvider()
	default:
		return nil
	}
}

type sttSetup struct {
	engine stt.Engine
	detail string
}

// resolveEngine builds speech capture, falling back to the in-process mock
// when the recognizer cannot be constructed.
func resolveEngine(cfg config.Config, metrics *observability.Metrics) sttSetup {
	engine, err := stt.NewEngine(stt.Config{
		Provider:   cfg.STTProvider,
		APIKey:     cfg.DeepgramAPIKey,
		Model:      cfg.STTModel,
		Language:   cfg.STTLanguage,
		SampleRate: cfg.STTSampleRate,
		Metrics:    metrics,
	})
	if err != nil {
		return sttSetup{engine: stt.NewMockEngine(), detail: fmt.Sprintf("mock (%v)", err)}
	}
	return sttSetup{engine: engine, detail: cfg.STTProvider}
}
