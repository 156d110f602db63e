package stt

import (
	"regexp"
	"strings"
	"time"
)

// commitHint is the verdict on an in-flight utterance: whether the text so
// far reads as finished, how confident that call is, and how long to hold
// for more speech before committing without a recognizer end event.
type commitHint struct {
	Reason       string
	Confidence   float64
	Hold         time.Duration
	ShouldCommit bool
}

const (
	commitHoldMin = 40 * time.Millisecond
	commitHoldMax = 900 * time.Millisecond

	confidenceUnknown    = 0.55
	confidenceCommitSafe = 0.50
)

var (
	continuationTailRe   = regexp.MustCompile(`(?i)\b(and|but|because|so|then|which|that|if|when|while|as|to|for)\s*$`)
	continuationHeadRe   = regexp.MustCompile(`(?i)^(and|but|because|so|then)\b`)
	continuationPhraseRe = regexp.MustCompile(`(?i)\b(i mean|for example|for instance|in order to)\s*$`)
	terminalTailRe       = regexp.MustCompile(`(?i)([.!?]["']?\s*$|\b(done|thanks|thank you|that's all|thats all)\s*$)`)
	openTailRe           = regexp.MustCompile(`[,;:\-…]\s*$`)
)

// buildCommitHint scores an accumulated utterance. The second return is
// false when the text is empty and no call can be made.
func buildCommitHint(utterance string, confidence float64, utteranceAge time.Duration) (commitHint, bool) {
	normalized := strings.TrimSpace(strings.ToLower(utterance))
	if normalized == "" {
		return commitHint{}, false
	}

	confidence = normalizeConfidence(confidence)
	hint := commitHint{
		Reason:     "neutral",
		Confidence: maxFloat(0.58, confidence),
		Hold:       210 * time.Millisecond,
	}

	continuation := hasContinuationCue(normalized)
	terminal := hasTerminalCue(normalized)
	if continuation {
		hint.Reason = "continuation"
		hint.Confidence = maxFloat(hint.Confidence, 0.86)
		hint.Hold = 520 * time.Millisecond
	}
	if terminal {
		hint.Reason = "terminal"
		hint.Confidence = maxFloat(hint.Confidence, 0.82)
		hint.Hold = 90 * time.Millisecond
		hint.ShouldCommit = confidence >= confidenceCommitSafe
	}

	if utteranceAge > 6*time.Second && !continuation {
		hint.Reason = "long_utterance"
		hint.Hold -= 70 * time.Millisecond
	}

	if utteranceAge > 0 && utteranceAge < 700*time.Millisecond {
		hint.Hold += 110 * time.Millisecond
		if hint.Reason == "neutral" {
			hint.Reason = "short_utterance"
		}
	}

	if confidence < 0.45 {
		hint.Hold += 140 * time.Millisecond
		hint.Confidence = minFloat(hint.Confidence, 0.62)
		hint.ShouldCommit = false
		if hint.Reason == "neutral" || hint.Reason == "terminal" {
			hint.Reason = "low_confidence"
		}
	}

	hint.Hold = clampDuration(hint.Hold, commitHoldMin, commitHoldMax)
	hint.Confidence = clampFloat(hint.Confidence, 0.05, 0.99)
	return hint, true
}

func hasContinuationCue(normalized string) bool {
	if normalized == "" {
		return false
	}
	if openTailRe.MatchString(normalized) {
		return true
	}
	if continuationHeadRe.MatchString(normalized) {
		return true
	}
	if continuationTailRe.MatchString(normalized) {
		return true
	}
	if continuationPhraseRe.MatchString(normalized) {
		return true
	}
	return false
}

func hasTerminalCue(normalized string) bool {
	if normalized == "" {
		return false
	}
	if openTailRe.MatchString(normalized) {
		return false
	}
	return terminalTailRe.MatchString(normalized)
}

func normalizeConfidence(conf float64) float64 {
	if conf <= 0 || conf > 1 {
		return confidenceUnknown
	}
	return conf
}

func clampDuration(v, min, max time.Duration) time.Duration {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
