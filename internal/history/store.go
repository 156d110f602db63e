package history

import (
	"context"
	"time"
)

// Turn is one completed exchange: what the user said, what the assistant
// answered, and the timings captured while the answer streamed.
type Turn struct {
	ID            string    `json:"id"`
	UserText      string    `json:"user_text"`
	AssistantText string    `json:"assistant_text"`
	Phrases       int       `json:"phrases"`
	FirstAudioMS  int64     `json:"first_audio_ms"`
	TotalMS       int64     `json:"total_ms"`
	Redacted      bool      `json:"redacted"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store persists completed turns and serves them back oldest first.
type Store interface {
	SaveTurn(ctx context.Context, turn Turn) error
	RecentTurns(ctx context.Context, limit int) ([]Turn, error)
	Close() error
}
