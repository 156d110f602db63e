package voice

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// AzureConfig carries the speech service credentials and voice shaping for
// the neural synthesis websocket.
type AzureConfig struct {
	Key          string
	Region       string
	Voice        string
	OutputFormat string
	Rate         string
	Pitch        string
	Volume       string
	// Endpoint overrides the region-derived websocket URL. Used by tests.
	Endpoint string
}

type AzureProvider struct {
	cfg AzureConfig
}

func NewAzureProvider(cfg AzureConfig) *AzureProvider {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "eastus"
	}
	if strings.TrimSpace(cfg.Voice) == "" {
		cfg.Voice = "en-US-KaiNeural"
	}
	if strings.TrimSpace(cfg.OutputFormat) == "" {
		cfg.OutputFormat = "raw-24khz-16bit-mono-pcm"
	}
	cfg.Rate = normalizeProsodyRate(cfg.Rate)
	cfg.Pitch = normalizeProsodyPitch(cfg.Pitch)
	cfg.Volume = normalizeProsodyVolume(cfg.Volume)
	return &AzureProvider{cfg: cfg}
}

func (p *AzureProvider) Name() string { return "azure" }

const (
	azureSynthesisTimeout = 30 * time.Second

	azureSpeechConfigBody = `{"context":{"system":{"name":"aria","version":"1.0.0"},"os":{"platform":"Go","name":"aria","version":"1.0.0"}}}`

	azureSynthesisContextTemplate = `{"synthesis":{"audio":{"metadataOptions":{"sentenceBoundaryEnabled":false,"wordBoundaryEnabled":false},"outputFormat":"%s"}}}`
)

var errSynthesisStopped = errors.New("synthesis stopped")

func (p *AzureProvider) Stream(ctx context.Context, phrases <-chan string, chunks chan<- []byte, stopped func() bool) error {
	defer close(chunks)

	sess, err := p.dial(ctx)
	if err != nil {
		for range phrases {
		}
		return err
	}
	defer sess.Close()

	if err := sess.writeText(azureTextMessage("speech.config", "", "application/json; charset=utf-8", azureSpeechConfigBody)); err != nil {
		for range phrases {
		}
		return fmt.Errorf("send speech.config: %w", err)
	}

	var firstErr error
	degraded := false
	for phrase := range phrases {
		if degraded || (stopped != nil && stopped()) {
			continue
		}
		text := sanitizeSpeechText(phrase)
		if text == "" {
			continue
		}
		if err := p.speak(ctx, sess, text, chunks, stopped); err != nil {
			if errors.Is(err, errSynthesisStopped) {
				continue
			}
			if firstErr == nil {
				firstErr = err
			}
			degraded = true
		}
	}
	return firstErr
}

func (p *AzureProvider) speak(ctx context.Context, sess *azureSession, text string, chunks chan<- []byte, stopped func() bool) error {
	requestID := strings.ReplaceAll(uuid.NewString(), "-", "")

	contextBody := fmt.Sprintf(azureSynthesisContextTemplate, p.cfg.OutputFormat)
	if err := sess.writeText(azureTextMessage("synthesis.context", requestID, "application/json; charset=utf-8", contextBody)); err != nil {
		return fmt.Errorf("send synthesis.context: %w", err)
	}
	if err := sess.writeText(azureTextMessage("ssml", requestID, "application/ssml+xml", p.buildSSML(text))); err != nil {
		return fmt.Errorf("send ssml: %w", err)
	}

	deadline := time.NewTimer(azureSynthesisTimeout)
	defer deadline.Stop()
	for {
		select {
		case <-ctx.Done():
			sess.Close()
			return ctx.Err()
		case <-deadline.C:
			sess.Close()
			return fmt.Errorf("synthesis timed out after %s", azureSynthesisTimeout)
		case evt, ok := <-sess.events:
			if !ok {
				return fmt.Errorf("speech socket closed")
			}
			switch evt.path {
			case "audio":
				if stopped != nil && stopped() {
					sess.Close()
					return errSynthesisStopped
				}
				chunks <- evt.audio
			case "turn.end":
				return nil
			}
		}
	}
}

func (p *AzureProvider) buildSSML(text string) string {
	return fmt.Sprintf(
		"<speak version='1.0' xml:lang='en-US'><voice name='%s'><prosody rate='%s' pitch='%s' volume='%s'>%s</prosody></voice></speak>",
		p.cfg.Voice, p.cfg.Rate, p.cfg.Pitch, p.cfg.Volume, escapeSSML(text),
	)
}

func (p *AzureProvider) endpoint() string {
	if strings.TrimSpace(p.cfg.Endpoint) != "" {
		return strings.TrimRight(strings.TrimSpace(p.cfg.Endpoint), "/")
	}
	return "wss://" + p.cfg.Region + ".tts.speech.microsoft.com/cognitiveservices/websocket/v1"
}

func (p *AzureProvider) dial(ctx context.Context) (*azureSession, error) {
	u := p.endpoint() + "?X-ConnectionId=" + strings.ReplaceAll(uuid.NewString(), "-", "")
	headers := http.Header{}
	headers.Set("Ocp-Apim-Subscription-Key", p.cfg.Key)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, headers)
	if err != nil {
		return nil, fmt.Errorf("dial speech websocket: %w", err)
	}

	sess := &azureSession{
		conn:   conn,
		events: make(chan azureEvent, 256),
		closed: make(chan struct{}),
	}
	go sess.readLoop()
	return sess, nil
}

type azureEvent struct {
	path  string
	audio []byte
}

type azureSession struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	events    chan azureEvent
	closed    chan struct{}
}

func (s *azureSession) writeText(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// readLoop owns the events channel and closes it on exit. Sends race the
// closed signal so an abandoned request can never wedge the reader.
func (s *azureSession) readLoop() {
	defer close(s.events)
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var evt azureEvent
		switch msgType {
		case websocket.BinaryMessage:
			path, payload := parseAzureBinaryFrame(data)
			if !strings.EqualFold(path, "audio") || len(payload) == 0 {
				continue
			}
			evt = azureEvent{path: "audio", audio: payload}
		case websocket.TextMessage:
			path := parseAzureTextFramePath(data)
			if !strings.EqualFold(path, "turn.end") {
				continue
			}
			evt = azureEvent{path: "turn.end"}
		default:
			continue
		}

		select {
		case s.events <- evt:
		case <-s.closed:
			return
		}
	}
}

func (s *azureSession) Close() error {
	var retErr error
	s.closeOnce.Do(func() {
		close(s.closed)
		retErr = s.conn.Close()
	})
	return retErr
}

func azureTextMessage(path, requestID, contentType, body string) []byte {
	var b strings.Builder
	b.WriteString("Path: " + path + "\r\n")
	if requestID != "" {
		b.WriteString("X-RequestId: " + requestID + "\r\n")
	}
	b.WriteString("X-Timestamp: " + time.Now().UTC().Format("2006-01-02T15:04:05.000Z") + "\r\n")
	b.WriteString("Content-Type: " + contentType + "\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// parseAzureBinaryFrame splits a binary frame into its header block and
// audio payload. The first two bytes carry the header length big-endian.
func parseAzureBinaryFrame(data []byte) (path string, payload []byte) {
	if len(data) < 2 {
		return "", nil
	}
	headerLen := int(binary.BigEndian.Uint16(data[:2]))
	if 2+headerLen > len(data) {
		return "", nil
	}
	return azureHeaderValue(string(data[2:2+headerLen]), "Path"), data[2+headerLen:]
}

func parseAzureTextFramePath(data []byte) string {
	text := string(data)
	if idx := strings.Index(text, "\r\n\r\n"); idx >= 0 {
		text = text[:idx]
	}
	return azureHeaderValue(text, "Path")
}

func azureHeaderValue(headers, name string) string {
	for _, line := range strings.Split(headers, "\r\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(key), name) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func normalizeProsodyRate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "1.0"
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		if v < 0.5 {
			return "0.5"
		}
		if v > 2.0 {
			return "2.0"
		}
	}
	return raw
}

func normalizeProsodyPitch(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "0%"
	}
	return raw
}

func normalizeProsodyVolume(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "default"
	}
	return raw
}
