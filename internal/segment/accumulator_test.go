package segment

import (
	"strings"
	"testing"
)

func collect(a *Accumulator, tokens []string) []string {
	var phrases []string
	for _, tok := range tokens {
		phrases = append(phrases, a.Push(tok)...)
	}
	if tail, ok := a.Flush(); ok {
		phrases = append(phrases, tail)
	}
	return phrases
}

func TestAccumulatorSplitsOnDelimitersUnderBudget(t *testing.T) {
	a := NewAccumulator([]string{". ", "? "}, true, 100)
	tokens := []string{"Hello", " world. ", "How are you?"}

	got := collect(a, tokens)
	want := []string{"Hello world.", "How are you?"}
	if len(got) != len(want) {
		t.Fatalf("phrases = %#v, want %#v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("phrases[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if !a.SegmentationActive() {
		t.Fatalf("SegmentationActive() = false, want still active under budget")
	}
}

func TestAccumulatorDeactivatesOnceBudgetSpent(t *testing.T) {
	a := NewAccumulator([]string{". ", "? "}, true, 5)
	tokens := []string{"Hello", " world. ", "How are you?"}

	var streamed []string
	for _, tok := range tokens {
		streamed = append(streamed, a.Push(tok)...)
	}

	// "Hello world." is 12 chars, past the budget of 5, so the question is
	// never split and surfaces only at flush.
	if len(streamed) != 1 || streamed[0] != "Hello world." {
		t.Fatalf("streamed = %#v, want only [\"Hello world.\"]", streamed)
	}
	if a.SegmentationActive() {
		t.Fatalf("SegmentationActive() = true, want deactivated after budget")
	}

	tail, ok := a.Flush()
	if !ok || tail != "How are you?" {
		t.Fatalf("Flush() = %q, %v; want %q, true", tail, ok, "How are you?")
	}
}

func TestAccumulatorEmitsMultiplePhrasesFromOneFragment(t *testing.T) {
	a := NewAccumulator([]string{". "}, true, 100)

	got := a.Push("One. Two. Three. ")
	want := []string{"One.", "Two.", "Three."}
	if len(got) != len(want) {
		t.Fatalf("phrases = %#v, want %#v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("phrases[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAccumulatorZeroBudgetDisablesAfterFirstMatch(t *testing.T) {
	a := NewAccumulator([]string{". "}, true, 0)

	got := a.Push("One. Two. Three.")
	if len(got) != 1 || got[0] != "One." {
		t.Fatalf("phrases = %#v, want [\"One.\"]", got)
	}
	tail, ok := a.Flush()
	if !ok || tail != "Two. Three." {
		t.Fatalf("Flush() = %q, %v; want undivided tail", tail, ok)
	}
}

func TestAccumulatorIgnoresEmptyFragments(t *testing.T) {
	a := NewAccumulator([]string{". "}, true, 100)
	if got := a.Push(""); got != nil {
		t.Fatalf("Push(\"\") = %#v, want nil", got)
	}
	if tail, ok := a.Flush(); ok {
		t.Fatalf("Flush() = %q, want nothing buffered", tail)
	}
}

func TestAccumulatorWithoutSegmentationBuffersUntilFlush(t *testing.T) {
	a := NewAccumulator([]string{". "}, false, 100)
	if got := a.Push("First. Second. "); got != nil {
		t.Fatalf("Push() = %#v, want nil with segmentation off", got)
	}
	tail, ok := a.Flush()
	if !ok || tail != "First. Second." {
		t.Fatalf("Flush() = %q, %v; want whole trimmed buffer", tail, ok)
	}
}

func TestAccumulatorNoDelimiterEmitsWholeAtEnd(t *testing.T) {
	a := NewAccumulator([]string{". "}, true, 100)
	if got := a.Push("no boundary here"); got != nil {
		t.Fatalf("Push() = %#v, want nil without a delimiter", got)
	}
	tail, ok := a.Flush()
	if !ok || tail != "no boundary here" {
		t.Fatalf("Flush() = %q, %v; want buffered text", tail, ok)
	}
}

func TestAccumulatorReconstructsInputContent(t *testing.T) {
	a := NewAccumulator([]string{"\n", ". ", "? ", "! ", "* "}, true, 50)
	tokens := []string{"The sky", " is blue. Water", " is wet!\nBirds fly? ", "Yes. And fish swim"}

	phrases := collect(a, tokens)

	// Emission order must preserve every non-whitespace character exactly once.
	squash := func(s string) string {
		return strings.Join(strings.Fields(s), "")
	}
	want := squash(strings.Join(tokens, ""))
	got := squash(strings.Join(phrases, ""))
	if got != want {
		t.Fatalf("reconstructed = %q, want %q", got, want)
	}
}

func TestAccumulatorRunClosesPhraseStream(t *testing.T) {
	a := NewAccumulator([]string{". "}, true, 100)
	fragments := make(chan string)
	phrases := make(chan string, 8)

	done := make(chan struct{})
	go func() {
		a.Run(fragments, phrases)
		close(done)
	}()

	fragments <- "Hello. "
	fragments <- "Goodbye"
	close(fragments)
	<-done

	var got []string
	for p := range phrases {
		got = append(got, p)
	}
	want := []string{"Hello.", "Goodbye"}
	if len(got) != len(want) {
		t.Fatalf("phrases = %#v, want %#v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("phrases[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func BenchmarkAccumulatorPush(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		a := NewAccumulator([]string{". ", "? "}, true, 500)
		a.Push("The quick brown fox. Jumps over the lazy dog? ")
		a.Push("Again and again without a boundary")
		a.Flush()
	}
}
