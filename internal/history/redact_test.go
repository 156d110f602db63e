package history

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	input := "Reach me at ava@example.net or +1 (415) 555-0117, card 4111 1111 1111 1111."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
}

func TestRedactPIICleanTextUnchanged(t *testing.T) {
	out, changed := RedactPII("turn on the kitchen lights")
	if changed || out != "turn on the kitchen lights" {
		t.Fatalf("RedactPII() = %q, %t, want input unchanged", out, changed)
	}
}

func TestRedactTurnFlagsEitherSide(t *testing.T) {
	turn := Redact(Turn{
		UserText:      "my email is ava@example.net",
		AssistantText: "noted, I will use ava@example.net",
	})
	if !turn.Redacted {
		t.Fatalf("Redacted = false, want true")
	}
	if strings.Contains(turn.UserText, "@") || strings.Contains(turn.AssistantText, "@") {
		t.Fatalf("redaction left addresses behind: %+v", turn)
	}

	clean := Redact(Turn{UserText: "hello", AssistantText: "hi there"})
	if clean.Redacted {
		t.Fatalf("Redacted = true for clean text")
	}
}
