package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ariavoice/aria/internal/config"
	"github.com/ariavoice/aria/internal/history"
	"github.com/ariavoice/aria/internal/llm"
	"github.com/ariavoice/aria/internal/observability"
	"github.com/ariavoice/aria/internal/protocol"
	"github.com/ariavoice/aria/internal/stt"
	"github.com/ariavoice/aria/internal/voice"
)

// Turner runs one assistant turn against the prepared conversation and
// carries the per-turn stop signals and the synthesis on/off flag.
type Turner interface {
	RunTurn(ctx context.Context, messages []llm.Message, sink voice.TurnSink) (voice.TurnResult, error)
	SetTTSEnabled(enabled bool)
	TTSEnabled() bool
	Signals() *voice.Signals
}

type Server struct {
	cfg       config.Config
	turner    Turner
	engine    stt.Engine
	control   *stt.Control
	broadcast *stt.Broadcaster
	store     history.Store
	playback  *playbackState
	metrics   *observability.Metrics
	upgrader  websocket.Upgrader
}

func New(cfg config.Config, turner Turner, engine stt.Engine, control *stt.Control, broadcast *stt.Broadcaster, store history.Store, metrics *observability.Metrics) *Server {
	s := &Server{
		cfg:       cfg,
		turner:    turner,
		engine:    engine,
		control:   control,
		broadcast: broadcast,
		store:     store,
		playback:  newPlaybackState(cfg.PlaybackSampleRate),
		metrics:   metrics,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		// Only same-origin browsers may drive the microphone session unless
		// the deployment opted into any-origin mode. Non-browser clients
		// omit Origin and are allowed.
		CheckOrigin: func(r *http.Request) bool {
			return s.originAllowed(r)
		},
	}
	return s
}

func (s *Server) originAllowed(r *http.Request) bool {
	if s.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.cors)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/ws/chat", s.handleChatWS)

	r.Route("/api", func(r chi.Router) {
		r.Post("/start-stt", s.handleStartSTT)
		r.Post("/pause-stt", s.handlePauseSTT)
		r.Post("/toggle-audio", s.handleToggleAudio)
		r.Post("/toggle-tts", s.handleToggleTTS)
		r.Get("/tts-enabled", s.handleTTSEnabled)
		r.Post("/stop-tts", s.handleStopTTS)
		r.Post("/stop-generation", s.handleStopGeneration)
		r.Get("/history", s.handleHistory)
		r.Get("/perf", s.handlePerf)
		r.Post("/perf/reset", s.handlePerfReset)
	})

	return r
}

// EnableLocalPlayback opens the output device ahead of the first turn, for
// deployments that play synthesized audio on the server host.
func (s *Server) EnableLocalPlayback() error {
	return s.playback.enable()
}

// Close releases the local playback device if one is open.
func (s *Server) Close() error {
	return s.playback.Close()
}

// cors mirrors the browser client's needs: reflect allowed origins, answer
// preflight directly. No library here because the policy is two headers and
// an OPTIONS short-circuit.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := strings.TrimSpace(r.Header.Get("Origin")); origin != "" && s.originAllowed(r) {
			h := w.Header()
			if s.cfg.AllowAnyOrigin {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ready",
		"listening":    s.control.Listening(),
		"tts_enabled":  s.turner.TTSEnabled(),
		"tts_provider": s.cfg.TTSProvider,
		"stt_provider": s.cfg.STTProvider,
	})
}

func (s *Server) handleStartSTT(w http.ResponseWriter, _ *http.Request) {
	s.control.Resume()
	respondJSON(w, http.StatusOK, protocol.Detail{Detail: "STT is now ON."})
}

func (s *Server) handlePauseSTT(w http.ResponseWriter, _ *http.Request) {
	s.control.Pause()
	respondJSON(w, http.StatusOK, protocol.Detail{Detail: "STT is now OFF."})
}

func (s *Server) handleToggleAudio(w http.ResponseWriter, _ *http.Request) {
	playing, err := s.playback.toggle()
	if err != nil {
		respondJSON(w, http.StatusInternalServerError,
			protocol.Detail{Detail: fmt.Sprintf("Failed to toggle audio playback: %v", err)})
		return
	}
	respondJSON(w, http.StatusOK, protocol.ToggleResult{AudioPlaying: &playing})
}

func (s *Server) handleToggleTTS(w http.ResponseWriter, _ *http.Request) {
	enabled := !s.turner.TTSEnabled()
	s.turner.SetTTSEnabled(enabled)
	// Clients drive their speaker icon off the listening broadcast, so
	// re-announce the current state alongside the flipped flag.
	s.broadcast.Broadcast(s.control.Listening())
	respondJSON(w, http.StatusOK, protocol.ToggleResult{TTSEnabled: &enabled})
}

func (s *Server) handleTTSEnabled(w http.ResponseWriter, _ *http.Request) {
	enabled := s.turner.TTSEnabled()
	respondJSON(w, http.StatusOK, protocol.ToggleResult{TTSEnabled: &enabled})
}

func (s *Server) handleStopTTS(w http.ResponseWriter, _ *http.Request) {
	s.turner.Signals().StopTTS()
	s.metrics.StopSignals.WithLabelValues("tts").Inc()
	respondJSON(w, http.StatusOK,
		protocol.Detail{Detail: "TTS stop event triggered. Ongoing TTS tasks should exit soon."})
}

func (s *Server) handleStopGeneration(w http.ResponseWriter, _ *http.Request) {
	s.turner.Signals().StopGeneration()
	s.metrics.StopSignals.WithLabelValues("generation").Inc()
	respondJSON(w, http.StatusOK,
		protocol.Detail{Detail: "Generation stop event triggered. Ongoing text generation will exit soon."})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
