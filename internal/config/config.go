package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice pipeline service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	FirstAudioSLO    time.Duration

	AllowAnyOrigin bool

	SegmentationEnabled bool
	SegmentDelimiters   []string
	SegmentMaxChars     int

	LLMProvider     string
	LLMModel        string
	LLMSystemPrompt string

	OpenAIAPIKey      string
	OpenRouterAPIKey  string
	OpenWeatherAPIKey string
	OllamaURL         string
	OllamaModel       string

	TTSProvider         string
	TTSFallbackProvider string
	TTSEnabled          bool

	AzureSpeechKey       string
	AzureSpeechRegion    string
	AzureTTSVoice        string
	AzureTTSOutputFormat string
	AzureProsodyRate     string
	AzureProsodyPitch    string
	AzureProsodyVolume   string

	OpenAITTSModel      string
	OpenAITTSVoice      string
	OpenAITTSSpeed      float64
	OpenAITTSFormat     string
	OpenAITTSChunkSize  int
	OpenAITTSBufferSize int

	PlaybackSampleRate int
	FrontendPlayback   bool

	STTProvider       string
	STTLanguage       string
	STTModel          string
	STTSampleRate     int
	STTAutoStart      bool
	STTInterimResults bool

	DeepgramAPIKey string

	WakewordEnabled     bool
	PicovoiceAccessKey  string
	WakewordStopModel   string
	WakewordSensitivity float64

	DatabaseURL      string
	HistoryRedactPII bool
}

// DefaultDelimiters are the phrase boundaries used when SEGMENT_DELIMITERS is unset.
var DefaultDelimiters = []string{"\n", ". ", "? ", "! ", "* "}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8000"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "aria"),
		// The bundled web client is served from another origin during development.
		AllowAnyOrigin:      true,
		SegmentationEnabled: true,
		SegmentDelimiters:   delimitersFromEnv("SEGMENT_DELIMITERS", DefaultDelimiters),
		SegmentMaxChars:     50,
		LLMProvider:         envOrDefault("LLM_PROVIDER", "openai"),
		// Empty model means "use the provider's default".
		LLMModel: envTrimmed("LLM_MODEL"),
		LLMSystemPrompt: envOrDefault("LLM_SYSTEM_PROMPT",
			"You are Aria, a helpful voice assistant. Keep replies short and conversational."),
		OpenAIAPIKey:        envTrimmed("OPENAI_API_KEY"),
		OpenRouterAPIKey:    envTrimmed("OPENROUTER_API_KEY"),
		OpenWeatherAPIKey:   envTrimmed("OPENWEATHER_API_KEY"),
		OllamaURL:           envOrDefault("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:         envOrDefault("OLLAMA_MODEL", "llama3.2"),
		TTSProvider:         envOrDefault("TTS_PROVIDER", "azure"),
		TTSFallbackProvider: envTrimmed("TTS_FALLBACK_PROVIDER"),
		TTSEnabled:          false,
		AzureSpeechKey:      envTrimmed("AZURE_SPEECH_KEY"),
		AzureSpeechRegion:   envOrDefault("AZURE_SPEECH_REGION", "eastus"),
		AzureTTSVoice:       envOrDefault("AZURE_TTS_VOICE", "en-US-KaiNeural"),
		// Raw PCM keeps the playback path format-free end to end.
		AzureTTSOutputFormat: envOrDefault("AZURE_TTS_OUTPUT_FORMAT", "raw-24khz-16bit-mono-pcm"),
		AzureProsodyRate:     envOrDefault("AZURE_TTS_PROSODY_RATE", "1.0"),
		AzureProsodyPitch:    envOrDefault("AZURE_TTS_PROSODY_PITCH", "0%"),
		AzureProsodyVolume:   envOrDefault("AZURE_TTS_PROSODY_VOLUME", "default"),
		OpenAITTSModel:       envOrDefault("OPENAI_TTS_MODEL", "tts-1"),
		OpenAITTSVoice:       envOrDefault("OPENAI_TTS_VOICE", "alloy"),
		OpenAITTSSpeed:       1.0,
		OpenAITTSFormat:      envOrDefault("OPENAI_TTS_FORMAT", "pcm"),
		OpenAITTSChunkSize:   1024,
		OpenAITTSBufferSize:  16 * 1024,
		PlaybackSampleRate:   24000,
		FrontendPlayback:     true,
		STTProvider:          envOrDefault("STT_PROVIDER", "deepgram"),
		STTLanguage:          envOrDefault("STT_LANGUAGE", "en-US"),
		STTModel:             envOrDefault("STT_MODEL", "nova-3"),
		STTSampleRate:        16000,
		STTAutoStart:         false,
		STTInterimResults:    false,
		DeepgramAPIKey:       envTrimmed("DEEPGRAM_API_KEY"),
		WakewordEnabled:      false,
		PicovoiceAccessKey:   envTrimmed("PICOVOICE_API_KEY"),
		WakewordStopModel:    envTrimmed("WAKEWORD_STOP_MODEL"),
		WakewordSensitivity:  0.5,
		DatabaseURL:          envTrimmed("DATABASE_URL"),
		HistoryRedactPII:     true,
		ShutdownTimeout:      15 * time.Second,
		FirstAudioSLO:        700 * time.Millisecond,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.FirstAudioSLO, err = durationFromEnv("APP_FIRST_AUDIO_SLO", cfg.FirstAudioSLO)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.SegmentationEnabled, err = boolFromEnv("SEGMENTATION_ENABLED", cfg.SegmentationEnabled)
	if err != nil {
		return Config{}, err
	}
	cfg.SegmentMaxChars, err = intFromEnv("SEGMENT_MAX_CHARS", cfg.SegmentMaxChars)
	if err != nil {
		return Config{}, err
	}
	cfg.TTSEnabled, err = boolFromEnv("TTS_ENABLED", cfg.TTSEnabled)
	if err != nil {
		return Config{}, err
	}
	cfg.OpenAITTSSpeed, err = floatFromEnv("OPENAI_TTS_SPEED", cfg.OpenAITTSSpeed)
	if err != nil {
		return Config{}, err
	}
	cfg.OpenAITTSChunkSize, err = intFromEnv("OPENAI_TTS_CHUNK_SIZE", cfg.OpenAITTSChunkSize)
	if err != nil {
		return Config{}, err
	}
	cfg.OpenAITTSBufferSize, err = intFromEnv("OPENAI_TTS_BUFFER_SIZE", cfg.OpenAITTSBufferSize)
	if err != nil {
		return Config{}, err
	}
	cfg.PlaybackSampleRate, err = intFromEnv("AUDIO_PLAYBACK_RATE", cfg.PlaybackSampleRate)
	if err != nil {
		return Config{}, err
	}
	cfg.FrontendPlayback, err = boolFromEnv("FRONTEND_PLAYBACK", cfg.FrontendPlayback)
	if err != nil {
		return Config{}, err
	}
	cfg.STTSampleRate, err = intFromEnv("STT_SAMPLE_RATE", cfg.STTSampleRate)
	if err != nil {
		return Config{}, err
	}
	cfg.STTAutoStart, err = boolFromEnv("STT_AUTO_START", cfg.STTAutoStart)
	if err != nil {
		return Config{}, err
	}
	cfg.STTInterimResults, err = boolFromEnv("STT_INTERIM_RESULTS", cfg.STTInterimResults)
	if err != nil {
		return Config{}, err
	}
	cfg.WakewordEnabled, err = boolFromEnv("WAKEWORD_ENABLED", cfg.WakewordEnabled)
	if err != nil {
		return Config{}, err
	}
	cfg.WakewordSensitivity, err = floatFromEnv("WAKEWORD_SENSITIVITY", cfg.WakewordSensitivity)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryRedactPII, err = boolFromEnv("HISTORY_REDACT_PII", cfg.HistoryRedactPII)
	if err != nil {
		return Config{}, err
	}

	if cfg.SegmentMaxChars <= 0 {
		return Config{}, fmt.Errorf("SEGMENT_MAX_CHARS must be positive")
	}
	if len(cfg.SegmentDelimiters) == 0 {
		return Config{}, fmt.Errorf("SEGMENT_DELIMITERS must name at least one delimiter")
	}
	switch cfg.LLMProvider {
	case "openai", "openrouter", "ollama", "mock":
	default:
		return Config{}, fmt.Errorf("LLM_PROVIDER must be one of openai, openrouter, ollama, mock")
	}
	switch cfg.TTSProvider {
	case "azure", "openai", "mock":
	default:
		return Config{}, fmt.Errorf("TTS_PROVIDER must be one of azure, openai, mock")
	}
	switch cfg.TTSFallbackProvider {
	case "", "azure", "openai", "mock":
	default:
		return Config{}, fmt.Errorf("TTS_FALLBACK_PROVIDER must be one of azure, openai, mock")
	}
	if cfg.TTSFallbackProvider == cfg.TTSProvider {
		return Config{}, fmt.Errorf("TTS_FALLBACK_PROVIDER must differ from TTS_PROVIDER")
	}
	switch cfg.STTProvider {
	case "deepgram", "mock":
	default:
		return Config{}, fmt.Errorf("STT_PROVIDER must be one of deepgram, mock")
	}
	if cfg.STTSampleRate <= 0 {
		return Config{}, fmt.Errorf("STT_SAMPLE_RATE must be positive")
	}
	switch cfg.OpenAITTSFormat {
	case "pcm", "mp3", "wav":
	default:
		return Config{}, fmt.Errorf("OPENAI_TTS_FORMAT must be one of pcm, mp3, wav")
	}
	if cfg.OpenAITTSSpeed < 0.25 || cfg.OpenAITTSSpeed > 4.0 {
		return Config{}, fmt.Errorf("OPENAI_TTS_SPEED must be within [0.25, 4.0]")
	}
	if cfg.OpenAITTSChunkSize <= 0 {
		return Config{}, fmt.Errorf("OPENAI_TTS_CHUNK_SIZE must be positive")
	}
	if cfg.OpenAITTSBufferSize < cfg.OpenAITTSChunkSize {
		return Config{}, fmt.Errorf("OPENAI_TTS_BUFFER_SIZE must be at least OPENAI_TTS_CHUNK_SIZE")
	}
	if cfg.PlaybackSampleRate <= 0 {
		return Config{}, fmt.Errorf("AUDIO_PLAYBACK_RATE must be positive")
	}
	if cfg.WakewordSensitivity < 0 || cfg.WakewordSensitivity > 1 {
		return Config{}, fmt.Errorf("WAKEWORD_SENSITIVITY must be within [0, 1]")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// delimitersFromEnv parses a "|"-separated delimiter list. The token "\n"
// stands for a literal newline so shells can express it. Entries keep their
// surrounding spaces, which matter for boundaries like ". ".
func delimitersFromEnv(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ReplaceAll(p, `\n`, "\n")
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
