package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"

	"github.com/ariavoice/aria/internal/audio"
	"github.com/ariavoice/aria/internal/observability"
	"github.com/ariavoice/aria/internal/reliability"
)

const (
	deepgramListenURL         = "wss://api.deepgram.com/v1/listen"
	deepgramHandshakeTimeout  = 10 * time.Second
	deepgramKeepAliveInterval = 5 * time.Second
	deepgramDialAttempts      = 3
)

type DeepgramConfig struct {
	APIKey     string
	Model      string
	Language   string
	SampleRate int

	// Endpoint overrides the live API URL, for tests.
	Endpoint string

	// Source overrides the default microphone. When nil the engine opens
	// the default capture device on first start.
	Source  AudioSource
	Metrics *observability.Metrics
}

// DeepgramEngine streams microphone audio to the Deepgram live API and
// aggregates its results into committed utterances. Final segments
// accumulate until the service flags the speech as finished, an
// utterance-end event arrives, or the text itself reads as finished and
// the hold window passes.
type DeepgramEngine struct {
	cfg DeepgramConfig
	agg *utteranceAggregator

	transcripts chan Transcript

	mu            sync.Mutex
	session       *deepgramSession
	source        AudioSource
	ownSource     bool
	sourceStarted bool
	closed        bool

	interimMu   sync.Mutex
	lastInterim string
}

func NewDeepgramEngine(cfg DeepgramConfig) *DeepgramEngine {
	if cfg.Model == "" {
		cfg.Model = "nova-3"
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	e := &DeepgramEngine{
		cfg:         cfg,
		transcripts: make(chan Transcript, 64),
		source:      cfg.Source,
	}
	e.agg = newUtteranceAggregator(func(text string) {
		e.clearInterim()
		e.deliver(Transcript{Text: text, Final: true})
	})
	return e
}

func (e *DeepgramEngine) Transcripts() <-chan Transcript { return e.transcripts }

func (e *DeepgramEngine) IsListening() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil
}

// StartListening dials the live API and starts pumping capture frames.
// Calling it while already listening is a no-op.
func (e *DeepgramEngine) StartListening(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("stt engine closed")
	}
	if e.session != nil {
		return nil
	}

	if e.source == nil {
		src, err := audio.NewCapturer(e.cfg.SampleRate, e.cfg.SampleRate/50)
		if err != nil {
			return fmt.Errorf("open capture device: %w", err)
		}
		e.source = src
		e.ownSource = true
	}

	conn, err := e.dial(ctx)
	if err != nil {
		e.countError("dial")
		return err
	}

	if !e.sourceStarted {
		if err := e.source.Start(); err != nil {
			conn.Close()
			return err
		}
		e.sourceStarted = true
	} else {
		e.source.Resume()
	}

	s := newDeepgramSession(conn)
	e.session = s
	e.agg.reset()
	e.clearInterim()
	go e.readLoop(s)
	go e.pumpAudio(s, e.source.Frames())
	go e.keepAlive(s)
	return nil
}

// PauseListening tears the live session down. Pausing twice is a no-op.
func (e *DeepgramEngine) PauseListening() {
	e.mu.Lock()
	s := e.session
	e.session = nil
	src := e.source
	e.mu.Unlock()
	if s == nil {
		return
	}
	if src != nil {
		src.Pause()
	}
	s.shutdown()
}

func (e *DeepgramEngine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	s := e.session
	e.session = nil
	src := e.source
	own := e.ownSource
	e.mu.Unlock()

	if s != nil {
		s.shutdown()
		<-s.done
	}
	if src != nil && own {
		return src.Close()
	}
	return nil
}

func (e *DeepgramEngine) dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint := e.cfg.Endpoint
	if endpoint == "" {
		endpoint = deepgramListenURL
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse listen url: %w", err)
	}
	q := u.Query()
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(e.cfg.SampleRate))
	q.Set("channels", "1")
	q.Set("model", e.cfg.Model)
	q.Set("language", e.cfg.Language)
	q.Set("smart_format", "true")
	q.Set("interim_results", "true")
	q.Set("utterance_end_ms", "1000")
	q.Set("endpointing", "300")
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: deepgramHandshakeTimeout}
	conn, res, err := dialer.DialContext(ctx, u.String(),
		http.Header{"Authorization": {"Token " + e.cfg.APIKey}})
	if err != nil {
		if res != nil {
			return nil, fmt.Errorf("deepgram dial status %d: %w", res.StatusCode, err)
		}
		return nil, fmt.Errorf("deepgram dial: %w", err)
	}
	return conn, nil
}

func (e *DeepgramEngine) readLoop(s *deepgramSession) {
	defer close(s.done)
	conn := s.current()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
			}
			e.countError("socket")
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && !reliability.IsRetryableSocketClose(closeErr.Code) {
				e.dropSession(s)
				return
			}
			next, redialErr := e.redial(s)
			if redialErr != nil {
				e.dropSession(s)
				return
			}
			conn = next
			continue
		}
		e.handleMessage(msg)
	}
}

// redial replaces a dropped connection while the engine is still meant to
// be listening.
func (e *DeepgramEngine) redial(s *deepgramSession) (*websocket.Conn, error) {
	var lastErr error
	for attempt := 0; attempt < deepgramDialAttempts; attempt++ {
		select {
		case <-s.stop:
			return nil, errors.New("listening stopped")
		case <-time.After(reliability.ExponentialBackoff(attempt, 250*time.Millisecond, 2*time.Second)):
		}
		conn, err := e.dial(context.Background())
		if err == nil {
			s.swap(conn)
			return conn, nil
		}
		e.countError("dial")
		lastErr = err
	}
	return nil, lastErr
}

func (e *DeepgramEngine) dropSession(s *deepgramSession) {
	e.mu.Lock()
	if e.session == s {
		e.session = nil
		if e.source != nil {
			e.source.Pause()
		}
	}
	e.mu.Unlock()
	e.agg.reset()
	e.clearInterim()
}

func (e *DeepgramEngine) pumpAudio(s *deepgramSession, frames <-chan []int16) {
	for {
		select {
		case <-s.stop:
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if err := s.write(websocket.BinaryMessage, audio.Int16ToBytes(frame)); err != nil {
				// Mic data is perishable; drop the frame and let the read
				// loop decide whether the connection is coming back.
				continue
			}
			s.lastAudio.Store(time.Now().UnixNano())
		}
	}
}

func (e *DeepgramEngine) keepAlive(s *deepgramSession) {
	ticker := time.NewTicker(deepgramKeepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			last := time.Unix(0, s.lastAudio.Load())
			if time.Since(last) < deepgramKeepAliveInterval {
				continue
			}
			_ = s.writeJSON(struct {
				Type string `json:"type"`
			}{Type: "KeepAlive"})
		}
	}
}

func (e *DeepgramEngine) handleMessage(msg []byte) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &head); err != nil {
		e.countError("decode")
		return
	}

	switch api.TypeResponse(head.Type) {
	case api.TypeMessageResponse:
		var resp api.MessageResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			e.countError("decode")
			return
		}
		if len(resp.Channel.Alternatives) == 0 {
			return
		}
		alt := resp.Channel.Alternatives[0]
		text := strings.TrimSpace(alt.Transcript)
		if text == "" {
			return
		}
		if resp.IsFinal {
			e.clearInterim()
			e.agg.addFinal(text, float64(alt.Confidence), resp.SpeechFinal)
			return
		}
		preview := e.agg.preview(text)
		if e.setInterim(preview) {
			e.deliver(Transcript{Text: preview})
		}
	case api.TypeUtteranceEndResponse:
		e.agg.utteranceEnd()
	}
}

// deliver hands a transcript to the consumer, dropping it when the
// consumer lags rather than stalling the socket reader.
func (e *DeepgramEngine) deliver(t Transcript) {
	select {
	case e.transcripts <- t:
		if e.cfg.Metrics != nil {
			label := "interim"
			if t.Final {
				label = "final"
			}
			e.cfg.Metrics.STTEvents.WithLabelValues(label).Inc()
		}
	default:
		if e.cfg.Metrics != nil {
			e.cfg.Metrics.STTEvents.WithLabelValues("dropped").Inc()
		}
	}
}

func (e *DeepgramEngine) setInterim(text string) bool {
	e.interimMu.Lock()
	defer e.interimMu.Unlock()
	if text == e.lastInterim {
		return false
	}
	e.lastInterim = text
	return true
}

func (e *DeepgramEngine) clearInterim() {
	e.interimMu.Lock()
	e.lastInterim = ""
	e.interimMu.Unlock()
}

func (e *DeepgramEngine) countError(code string) {
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.ProviderErrors.WithLabelValues("deepgram", code).Inc()
	}
}

type deepgramSession struct {
	mu   sync.Mutex
	conn *websocket.Conn

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	lastAudio atomic.Int64
}

func newDeepgramSession(conn *websocket.Conn) *deepgramSession {
	s := &deepgramSession{
		conn: conn,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	s.lastAudio.Store(time.Now().UnixNano())
	return s
}

func (s *deepgramSession) current() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *deepgramSession) swap(conn *websocket.Conn) {
	s.mu.Lock()
	old := s.conn
	s.conn = conn
	s.mu.Unlock()
	old.Close()
}

func (s *deepgramSession) write(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

func (s *deepgramSession) writeJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// shutdown flushes the service's buffered audio and closes the socket.
func (s *deepgramSession) shutdown() {
	s.stopOnce.Do(func() {
		_ = s.writeJSON(struct {
			Type string `json:"type"`
		}{Type: string(api.TypeCloseStreamResponse)})
		close(s.stop)
		s.mu.Lock()
		s.conn.Close()
		s.mu.Unlock()
	})
}
