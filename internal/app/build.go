package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ariavoice/aria/internal/config"
	"github.com/ariavoice/aria/internal/history"
	"github.com/ariavoice/aria/internal/httpapi"
	"github.com/ariavoice/aria/internal/observability"
	"github.com/ariavoice/aria/internal/stt"
	"github.com/ariavoice/aria/internal/voice"
	"github.com/ariavoice/aria/internal/wakeword"
)

// ProviderInfo describes what each concern resolved to, for startup logs.
// Detail strings name the fallback reason when a provider degraded.
type ProviderInfo struct {
	LLM      string
	TTS      string
	STT      string
	History  string
	Playback string
	Wakeword string
}

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Orchestrator *voice.Orchestrator
	Metrics      *observability.Metrics
	Info         ProviderInfo

	// Cleanup releases external resources (devices, engines, DB) on shutdown.
	Cleanup func() error
}

// Build wires the full pipeline: model streamer, synthesis provider, speech
// capture, conversation store, control surface and wake word detector.
// Providers with missing credentials degrade to mocks rather than failing
// startup; the Info strings say so and the caller logs them.
func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := history.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("history store init failed: %w", err)
	}
	historyDetail := "in-memory ring"
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		historyDetail = "postgres"
	}

	llmSetup := resolveStreamer(cfg)
	ttsSetup := resolveTTS(cfg)
	sttSetup := resolveEngine(cfg, metrics)

	broadcast := stt.NewBroadcaster()
	control := stt.NewControl(ctx, sttSetup.engine, broadcast)

	// The listening gauge tracks every broadcastable state change; this
	// observer never fails, so pruning never drops it.
	broadcast.Attach(func(listening bool) error {
		if listening {
			metrics.Listening.Set(1)
		} else {
			metrics.Listening.Set(0)
		}
		return nil
	})

	orchestrator := voice.NewOrchestrator(
		llmSetup.streamer,
		ttsSetup.provider,
		control,
		voice.NewSignals(),
		metrics,
		cfg.SegmentDelimiters,
		cfg.SegmentationEnabled,
		cfg.SegmentMaxChars,
		cfg.TTSEnabled,
	)

	api := httpapi.New(cfg, orchestrator, sttSetup.engine, control, broadcast, store, metrics)

	playbackDetail := "frontend"
	if !cfg.FrontendPlayback {
		if err := api.EnableLocalPlayback(); err != nil {
			playbackDetail = fmt.Sprintf("local unavailable (%v)", err)
		} else {
			playbackDetail = "local device"
		}
	}

	detector, wakewordDetail := resolveWakeword(cfg, metrics)

	if cfg.STTAutoStart {
		control.Resume()
	}

	cleanup := func() error {
		var errs []string
		if detector != nil {
			if err := detector.Close(); err != nil {
				errs = append(errs, err.Error())
			}
		}
		if err := api.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := sttSetup.engine.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := store.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Orchestrator: orchestrator,
		Metrics:      metrics,
		Info: ProviderInfo{
			LLM:      llmSetup.detail,
			TTS:      ttsSetup.detail,
			STT:      sttSetup.detail,
			History:  historyDetail,
			Playback: playbackDetail,
			Wakeword: wakewordDetail,
		},
		Cleanup: cleanup,
	}, nil
}

// resolveWakeword builds and starts the detector when it is enabled and has
// a key. Failures disable the feature instead of blocking startup; a voice
// server without a wake word still serves every other path.
func resolveWakeword(cfg config.Config, metrics *observability.Metrics) (*wakeword.Detector, string) {
	if !cfg.WakewordEnabled {
		return nil, "disabled"
	}
	if strings.TrimSpace(cfg.PicovoiceAccessKey) == "" {
		return nil, "disabled (PICOVOICE_API_KEY not set)"
	}
	detector, err := wakeword.New(wakeword.Config{
		AccessKey:   cfg.PicovoiceAccessKey,
		StopModel:   cfg.WakewordStopModel,
		Sensitivity: cfg.WakewordSensitivity,
		ControlURL:  localControlURL(cfg.BindAddr),
		Metrics:     metrics,
	})
	if err != nil {
		return nil, fmt.Sprintf("disabled (%v)", err)
	}
	if err := detector.Start(); err != nil {
		_ = detector.Close()
		return nil, fmt.Sprintf("disabled (%v)", err)
	}
	return detector, "listening"
}

// localControlURL turns the bind address into a loopback base URL the wake
// word detector can post to.
func localControlURL(bindAddr string) string {
	addr := strings.TrimSpace(bindAddr)
	if addr == "" {
		addr = ":8000"
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
