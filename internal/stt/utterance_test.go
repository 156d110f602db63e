package stt

import (
	"sync"
	"testing"
	"time"
)

type commitRecorder struct {
	mu      sync.Mutex
	commits []string
}

func (r *commitRecorder) commit(text string) {
	r.mu.Lock()
	r.commits = append(r.commits, text)
	r.mu.Unlock()
}

func (r *commitRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commits...)
}

func (r *commitRecorder) waitForCommit(t *testing.T) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := r.snapshot(); len(got) > 0 {
			return got[0]
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for a commit")
	return ""
}

func TestUtteranceAggregatorSpeechFinalCommitsImmediately(t *testing.T) {
	rec := &commitRecorder{}
	agg := newUtteranceAggregator(rec.commit)

	agg.addFinal("hello world", 0.9, true)

	got := rec.snapshot()
	if len(got) != 1 || got[0] != "hello world" {
		t.Fatalf("commits = %q, want immediate hello world", got)
	}
}

func TestUtteranceAggregatorJoinsSegmentsOnUtteranceEnd(t *testing.T) {
	rec := &commitRecorder{}
	agg := newUtteranceAggregator(rec.commit)

	agg.addFinal("turn on the", 0.9, false)
	agg.addFinal("kitchen lights", 0.9, false)
	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("commits = %q before the utterance ended", got)
	}

	agg.utteranceEnd()
	got := rec.snapshot()
	if len(got) != 1 || got[0] != "turn on the kitchen lights" {
		t.Fatalf("commits = %q, want joined utterance", got)
	}
}

func TestUtteranceAggregatorTerminalTextCommitsAfterHold(t *testing.T) {
	rec := &commitRecorder{}
	agg := newUtteranceAggregator(rec.commit)

	agg.addFinal("turn it off.", 0.9, false)

	if got := rec.waitForCommit(t); got != "turn it off." {
		t.Fatalf("commit = %q, want held terminal utterance", got)
	}
}

func TestUtteranceAggregatorMoreSpeechCancelsHold(t *testing.T) {
	rec := &commitRecorder{}
	agg := newUtteranceAggregator(rec.commit)

	agg.addFinal("turn it off.", 0.9, false)
	agg.addFinal("and the fan too", 0.9, false)

	time.Sleep(400 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("commits = %q, want hold canceled by more speech", got)
	}

	agg.utteranceEnd()
	got := rec.snapshot()
	if len(got) != 1 || got[0] != "turn it off. and the fan too" {
		t.Fatalf("commits = %q, want full joined utterance", got)
	}
}

func TestUtteranceAggregatorResetDiscardsPending(t *testing.T) {
	rec := &commitRecorder{}
	agg := newUtteranceAggregator(rec.commit)

	agg.addFinal("half a thought", 0.9, false)
	agg.reset()
	agg.utteranceEnd()

	if got := rec.snapshot(); len(got) != 0 {
		t.Fatalf("commits = %q, want nothing after reset", got)
	}
}
