package stt

import (
	"strings"
	"sync"
	"time"
)

// utteranceAggregator collects final recognizer segments into one
// utterance and decides when it is complete: on the recognizer's own
// speech-final flag or utterance-end event, or early when the text reads
// as finished and the hold window passes with no further speech.
type utteranceAggregator struct {
	mu        sync.Mutex
	segments  []string
	startedAt time.Time
	holdTimer *time.Timer
	commit    func(text string)
}

func newUtteranceAggregator(commit func(string)) *utteranceAggregator {
	return &utteranceAggregator{commit: commit}
}

func (u *utteranceAggregator) addFinal(text string, confidence float64, speechFinal bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.startedAt.IsZero() {
		u.startedAt = time.Now()
	}
	u.segments = append(u.segments, text)
	u.cancelHoldLocked()
	if speechFinal {
		u.commitLocked()
		return
	}
	hint, ok := buildCommitHint(u.textLocked(), confidence, time.Since(u.startedAt))
	if !ok || !hint.ShouldCommit {
		return
	}
	u.holdTimer = time.AfterFunc(hint.Hold, u.commitHeld)
}

// utteranceEnd is the recognizer reporting that the speaker went quiet.
func (u *utteranceAggregator) utteranceEnd() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.commitLocked()
}

// preview renders the utterance so far with an interim hypothesis tacked on.
func (u *utteranceAggregator) preview(interim string) string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.segments) == 0 {
		return interim
	}
	return u.textLocked() + " " + interim
}

func (u *utteranceAggregator) reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.cancelHoldLocked()
	u.segments = u.segments[:0]
	u.startedAt = time.Time{}
}

func (u *utteranceAggregator) commitHeld() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.commitLocked()
}

func (u *utteranceAggregator) commitLocked() {
	u.cancelHoldLocked()
	text := strings.TrimSpace(strings.Join(u.segments, " "))
	u.segments = u.segments[:0]
	u.startedAt = time.Time{}
	if text != "" {
		u.commit(text)
	}
}

func (u *utteranceAggregator) cancelHoldLocked() {
	if u.holdTimer != nil {
		u.holdTimer.Stop()
		u.holdTimer = nil
	}
}

func (u *utteranceAggregator) textLocked() string {
	return strings.Join(u.segments, " ")
}
