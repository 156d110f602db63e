package stt

import (
	"context"
	"errors"
	"sync"
)

// MockEngine is an in-process recognizer for tests and key-less setups.
// Callers inject transcripts; delivery is gated on the listening state the
// way a real recognizer gates its output.
type MockEngine struct {
	mu          sync.Mutex
	listening   bool
	closed      bool
	transcripts chan Transcript
}

func NewMockEngine() *MockEngine {
	return &MockEngine{transcripts: make(chan Transcript, 64)}
}

func (e *MockEngine) StartListening(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("stt engine closed")
	}
	e.listening = true
	return nil
}

func (e *MockEngine) PauseListening() {
	e.mu.Lock()
	e.listening = false
	e.mu.Unlock()
}

func (e *MockEngine) IsListening() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.listening
}

func (e *MockEngine) Transcripts() <-chan Transcript { return e.transcripts }

func (e *MockEngine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.listening = false
	e.mu.Unlock()
	return nil
}

// Inject delivers a transcript as if it had been recognized. Injections
// while paused are discarded.
func (e *MockEngine) Inject(text string, final bool) {
	e.mu.Lock()
	listening := e.listening && !e.closed
	e.mu.Unlock()
	if !listening {
		return
	}
	select {
	case e.transcripts <- Transcript{Text: text, Final: final}:
	default:
	}
}
