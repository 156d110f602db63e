package segment

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Accumulator turns an incremental token stream into complete, speakable
// phrases. Fragments are appended to a working buffer and phrases are cut at
// delimiter boundaries until a character budget is spent, after which the
// remainder of the stream is emitted whole at end-of-stream.
//
// Not safe for concurrent use; one accumulator serves one response turn.
type Accumulator struct {
	pattern   *regexp.Regexp
	buf       string
	active    bool
	budget    int
	processed int
}

// NewAccumulator builds an accumulator for one turn. Segmentation runs only
// while useSegmentation is true and the delimiter list is non-empty. A
// characterMax of zero or less deactivates segmentation after the first
// delimiter match.
func NewAccumulator(delimiters []string, useSegmentation bool, characterMax int) *Accumulator {
	return &Accumulator{
		pattern: CompileDelimiters(delimiters),
		active:  useSegmentation,
		budget:  characterMax,
	}
}

// Push appends one fragment and returns any phrases completed by it, in
// order. Empty fragments are ignored. Once the cumulative emitted length
// reaches the budget, segmentation deactivates for the rest of the turn and
// Push returns nothing further; the tail is collected by Flush.
func (a *Accumulator) Push(fragment string) []string {
	if fragment == "" {
		return nil
	}
	a.buf += fragment
	if !a.active || a.pattern == nil {
		return nil
	}
	var out []string
	for {
		loc := a.pattern.FindStringIndex(a.buf)
		if loc == nil {
			break
		}
		end := loc[1]
		phrase := strings.TrimSpace(a.buf[:end])
		if phrase != "" {
			out = append(out, phrase)
			a.processed += utf8.RuneCountInString(phrase)
		}
		a.buf = a.buf[end:]
		if a.processed >= a.budget {
			a.active = false
			break
		}
	}
	return out
}

// Flush trims and returns whatever remains in the buffer as the final
// phrase. The second return is false when only whitespace is left.
func (a *Accumulator) Flush() (string, bool) {
	phrase := strings.TrimSpace(a.buf)
	a.buf = ""
	if phrase == "" {
		return "", false
	}
	return phrase, true
}

// SegmentationActive reports whether delimiter splitting is still live for
// this turn.
func (a *Accumulator) SegmentationActive() bool {
	return a.active && a.pattern != nil
}

// Run pumps fragments into the accumulator and forwards completed phrases.
// The phrase channel is closed after the final flush so downstream stages
// observe exactly one end-of-stream marker. Run returns when the fragment
// channel is closed.
func (a *Accumulator) Run(fragments <-chan string, phrases chan<- string) {
	defer close(phrases)
	for fragment := range fragments {
		for _, phrase := range a.Push(fragment) {
			phrases <- phrase
		}
	}
	if phrase, ok := a.Flush(); ok {
		phrases <- phrase
	}
}
