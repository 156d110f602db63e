package voice

import "sync/atomic"

// Signals carries the two cooperative stop flags shared by one pipeline.
// TTS-stop halts synthesis and playback; generation-stop halts the upstream
// token stream. They are independent: stopping speech must not kill text
// generation and vice versa. Safe to set from any goroutine; stages check
// them at their next suspension point rather than being killed.
type Signals struct {
	tts atomic.Bool
	gen atomic.Bool
}

func NewSignals() *Signals {
	return &Signals{}
}

// StopTTS requests that synthesis and playback wind down.
func (s *Signals) StopTTS() {
	s.tts.Store(true)
}

// StopGeneration requests that the token stream close early.
func (s *Signals) StopGeneration() {
	s.gen.Store(true)
}

func (s *Signals) TTSStopped() bool {
	return s.tts.Load()
}

func (s *Signals) GenerationStopped() bool {
	return s.gen.Load()
}

// ResetForTurn clears both flags. Called at the start of every turn so a
// stop requested during one turn never leaks into the next.
func (s *Signals) ResetForTurn() {
	s.tts.Store(false)
	s.gen.Store(false)
}
