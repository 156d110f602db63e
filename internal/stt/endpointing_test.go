package stt

import (
	"testing"
	"time"
)

func TestBuildCommitHint(t *testing.T) {
	cases := []struct {
		name       string
		utterance  string
		confidence float64
		age        time.Duration
		wantOK     bool
		wantReason string
		wantCommit bool
	}{
		{
			name:   "empty text has no verdict",
			wantOK: false,
		},
		{
			name:       "terminal punctuation commits",
			utterance:  "turn it off.",
			confidence: 0.9,
			age:        2 * time.Second,
			wantOK:     true,
			wantReason: "terminal",
			wantCommit: true,
		},
		{
			name:       "closing word commits",
			utterance:  "that is everything thanks",
			confidence: 0.8,
			age:        2 * time.Second,
			wantOK:     true,
			wantReason: "terminal",
			wantCommit: true,
		},
		{
			name:       "conjunction tail keeps waiting",
			utterance:  "turn off the lights and",
			confidence: 0.9,
			age:        2 * time.Second,
			wantOK:     true,
			wantReason: "continuation",
			wantCommit: false,
		},
		{
			name:       "trailing comma keeps waiting",
			utterance:  "well,",
			confidence: 0.9,
			age:        2 * time.Second,
			wantOK:     true,
			wantReason: "continuation",
			wantCommit: false,
		},
		{
			name:       "low confidence never commits",
			utterance:  "stop.",
			confidence: 0.3,
			age:        2 * time.Second,
			wantOK:     true,
			wantReason: "low_confidence",
			wantCommit: false,
		},
		{
			name:       "plain text stays neutral",
			utterance:  "set a timer for ten minutes",
			confidence: 0.9,
			age:        2 * time.Second,
			wantOK:     true,
			wantReason: "neutral",
			wantCommit: false,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			hint, ok := buildCommitHint(tc.utterance, tc.confidence, tc.age)
			if ok != tc.wantOK {
				t.Fatalf("ok = %t, want %t", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if hint.Reason != tc.wantReason {
				t.Fatalf("reason = %q, want %q", hint.Reason, tc.wantReason)
			}
			if hint.ShouldCommit != tc.wantCommit {
				t.Fatalf("ShouldCommit = %t, want %t", hint.ShouldCommit, tc.wantCommit)
			}
			if hint.Hold < commitHoldMin || hint.Hold > commitHoldMax {
				t.Fatalf("hold = %v outside [%v, %v]", hint.Hold, commitHoldMin, commitHoldMax)
			}
		})
	}
}

func TestBuildCommitHintShortUtteranceHoldsLonger(t *testing.T) {
	young, ok := buildCommitHint("turn it off.", 0.9, 100*time.Millisecond)
	if !ok {
		t.Fatalf("no verdict for young utterance")
	}
	settled, ok := buildCommitHint("turn it off.", 0.9, 2*time.Second)
	if !ok {
		t.Fatalf("no verdict for settled utterance")
	}
	if young.Hold <= settled.Hold {
		t.Fatalf("young hold = %v, want longer than settled %v", young.Hold, settled.Hold)
	}
}
