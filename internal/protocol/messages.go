package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Action identifies client websocket commands.
type Action string

const (
	ActionChat     Action = "chat"
	ActionStartSTT Action = "start-stt"
	ActionPauseSTT Action = "pause-stt"
)

var ErrUnsupportedAction = errors.New("unsupported action")

// audioPrefix is the fixed 6-byte marker on every binary audio frame. A
// frame carrying only the marker tells the client the audio stream ended.
var audioPrefix = []byte("audio:")

// ChatMessage is one entry of the client-held conversation history.
type ChatMessage struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// Role maps the wire sender label onto the chat role expected by model
// backends.
func (m ChatMessage) Role() (string, error) {
	switch strings.ToLower(m.Sender) {
	case "user":
		return "user", nil
	case "assistant":
		return "assistant", nil
	default:
		return "", fmt.Errorf("invalid sender %q", m.Sender)
	}
}

// ClientMessage is the JSON command envelope received on /ws/chat.
type ClientMessage struct {
	Action   Action        `json:"action"`
	Messages []ChatMessage `json:"messages,omitempty"`
}

// ContentDelta streams one assistant text fragment to the client.
type ContentDelta struct {
	Content string `json:"content"`
}

// STTText delivers a committed transcription to the client.
type STTText struct {
	Text string `json:"stt_text"`
}

// ListeningState broadcasts the microphone listening flag.
type ListeningState struct {
	IsListening bool `json:"is_listening"`
}

// ToggleResult reports the new value after a toggle endpoint flips a flag.
type ToggleResult struct {
	TTSEnabled   *bool `json:"tts_enabled,omitempty"`
	AudioPlaying *bool `json:"audio_playing,omitempty"`
}

// Detail is the generic acknowledgement body for control endpoints.
type Detail struct {
	Detail string `json:"detail"`
}

// TurnError tells the client a chat turn failed after its terminal markers
// were sent.
type TurnError struct {
	Error string `json:"error"`
}

// ParseClientMessage decodes and validates one client command.
func ParseClientMessage(raw []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("invalid envelope: %w", err)
	}

	switch msg.Action {
	case ActionStartSTT, ActionPauseSTT:
		return msg, nil
	case ActionChat:
		if len(msg.Messages) == 0 {
			return ClientMessage{}, errors.New("chat requires at least one message")
		}
		for i, m := range msg.Messages {
			if m.Sender == "" || m.Text == "" {
				return ClientMessage{}, fmt.Errorf("message at index %d missing sender or text", i)
			}
			if _, err := m.Role(); err != nil {
				return ClientMessage{}, fmt.Errorf("message at index %d: %w", i, err)
			}
		}
		return msg, nil
	default:
		return ClientMessage{}, ErrUnsupportedAction
	}
}

// EncodeAudioFrame wraps one PCM chunk for binary transport.
func EncodeAudioFrame(pcm []byte) []byte {
	frame := make([]byte, 0, len(audioPrefix)+len(pcm))
	frame = append(frame, audioPrefix...)
	return append(frame, pcm...)
}

// EndOfAudioFrame returns the marker-only frame that closes an audio stream.
func EndOfAudioFrame() []byte {
	return append([]byte(nil), audioPrefix...)
}

// DecodeAudioFrame strips the marker from a binary frame. The second return
// is false for frames without the marker; an empty payload with the marker
// present means end-of-stream.
func DecodeAudioFrame(frame []byte) ([]byte, bool) {
	if !bytes.HasPrefix(frame, audioPrefix) {
		return nil, false
	}
	return frame[len(audioPrefix):], true
}
