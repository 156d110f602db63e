package voice

import "context"

// Provider consumes phrases and pushes synthesized audio to chunks.
//
// Implementations own the chunks channel: it is closed on return in every
// outcome, including provider failures, so consumers can range over it
// without a separate completion signal. A synthesis failure is returned for
// logging but must never leave the phrase queue unconsumed; once stopped
// reports true the remaining phrases are drained and discarded.
type Provider interface {
	Stream(ctx context.Context, phrases <-chan string, chunks chan<- []byte, stopped func() bool) error
	Name() string
}

// ListeningControl pauses and resumes speech capture around a spoken turn.
// Resume runs at the end of every turn regardless of the state the capture
// was in when the turn started.
type ListeningControl interface {
	Pause()
	Resume()
}

// TurnSink receives the ordered outputs of one assistant turn: text deltas
// first, then audio chunks, then the end-of-audio signal.
type TurnSink interface {
	OnContent(delta string) error
	OnAudioChunk(chunk []byte) error
	OnAudioEnd() error
}
