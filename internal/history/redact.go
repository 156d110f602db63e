package history

import "regexp"

// Cards run before phones so a card number is not half-matched as a phone.
var piiPatterns = []struct {
	re   *regexp.Regexp
	mask string
}{
	{regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`), "[REDACTED_CARD]"},
	{regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`), "[REDACTED_PHONE]"},
}

// RedactPII masks common high-risk PII patterns.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	for _, p := range piiPatterns {
		next := p.re.ReplaceAllString(out, p.mask)
		changed = changed || next != out
		out = next
	}
	return out, changed
}

// Redact masks both sides of a turn and flags it when anything matched.
func Redact(turn Turn) Turn {
	var userChanged, assistantChanged bool
	turn.UserText, userChanged = RedactPII(turn.UserText)
	turn.AssistantText, assistantChanged = RedactPII(turn.AssistantText)
	turn.Redacted = userChanged || assistantChanged
	return turn
}
