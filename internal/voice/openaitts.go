package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hajimehoshi/go-mp3"

	"github.com/ariavoice/aria/internal/audio"
)

// OpenAITTSConfig shapes the chunked HTTP synthesis backend.
type OpenAITTSConfig struct {
	APIKey     string
	Model      string
	Voice      string
	Speed      float64
	Format     string
	ChunkSize  int
	BufferSize int
	// BaseURL overrides the API host. Used by tests.
	BaseURL string
}

type OpenAIProvider struct {
	cfg    OpenAITTSConfig
	client *http.Client
}

func NewOpenAIProvider(cfg OpenAITTSConfig) *OpenAIProvider {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "tts-1"
	}
	if strings.TrimSpace(cfg.Voice) == "" {
		cfg.Voice = "alloy"
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1.0
	}
	if strings.TrimSpace(cfg.Format) == "" {
		cfg.Format = "pcm"
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1024
	}
	if cfg.BufferSize < cfg.ChunkSize {
		cfg.BufferSize = 16 * 1024
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OpenAIProvider{
		cfg: cfg,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed"`
}

func (p *OpenAIProvider) Stream(ctx context.Context, phrases <-chan string, chunks chan<- []byte, stopped func() bool) error {
	defer close(chunks)

	var firstErr error
	for phrase := range phrases {
		if stopped != nil && stopped() {
			continue
		}
		text := sanitizeSpeechText(phrase)
		if text == "" {
			continue
		}
		if err := p.speak(ctx, text, chunks, stopped); err != nil {
			if errors.Is(err, errSynthesisStopped) {
				continue
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		// A beat of silence keeps phrase boundaries audible in playback.
		chunks <- make([]byte, p.cfg.ChunkSize)
	}
	return firstErr
}

func (p *OpenAIProvider) speak(ctx context.Context, text string, chunks chan<- []byte, stopped func() bool) error {
	payload, err := json.Marshal(speechRequest{
		Model:          p.cfg.Model,
		Input:          text,
		Voice:          p.cfg.Voice,
		ResponseFormat: p.cfg.Format,
		Speed:          p.cfg.Speed,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	res, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return fmt.Errorf("speech status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	switch p.cfg.Format {
	case "mp3":
		return p.streamMP3(res.Body, chunks, stopped)
	case "wav":
		// Skip the RIFF header so downstream sees bare samples.
		if _, err := io.CopyN(io.Discard, res.Body, 44); err != nil {
			return fmt.Errorf("skip wav header: %w", err)
		}
		return p.streamRaw(res.Body, chunks, stopped)
	default:
		return p.streamRaw(res.Body, chunks, stopped)
	}
}

// streamRaw forwards the response body as chunks, accumulating reads until
// the buffer threshold so the client receives fewer, larger frames.
func (p *OpenAIProvider) streamRaw(r io.Reader, chunks chan<- []byte, stopped func() bool) error {
	buf := make([]byte, p.cfg.ChunkSize)
	var pending []byte
	for {
		if stopped != nil && stopped() {
			return errSynthesisStopped
		}
		n, err := r.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			if len(pending) >= p.cfg.BufferSize {
				chunks <- append([]byte(nil), pending...)
				pending = pending[:0]
			}
		}
		if err == io.EOF {
			if len(pending) > 0 {
				chunks <- append([]byte(nil), pending...)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("read audio stream: %w", err)
		}
	}
}

// streamMP3 decodes the response to 16-bit PCM and downmixes the decoder's
// stereo output to mono before chunking.
func (p *OpenAIProvider) streamMP3(r io.Reader, chunks chan<- []byte, stopped func() bool) error {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return fmt.Errorf("open mp3 stream: %w", err)
	}

	buf := make([]byte, 4096)
	var pending []byte
	var carry []byte
	for {
		if stopped != nil && stopped() {
			return errSynthesisStopped
		}
		n, err := dec.Read(buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			usable := len(data) - len(data)%4
			pending = append(pending, audio.DownmixStereo16(data[:usable])...)
			carry = append([]byte(nil), data[usable:]...)
			if len(pending) >= p.cfg.BufferSize {
				chunks <- append([]byte(nil), pending...)
				pending = pending[:0]
			}
		}
		if err == io.EOF {
			if len(pending) > 0 {
				chunks <- append([]byte(nil), pending...)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("decode mp3 stream: %w", err)
		}
	}
}
