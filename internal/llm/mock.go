package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockStreamer provides deterministic local replies when no chat backend
// is reachable. Replies are streamed word by word so the segmentation
// pipeline downstream sees realistic fragment boundaries.
type MockStreamer struct{}

func NewMockStreamer() *MockStreamer { return &MockStreamer{} }

func (s *MockStreamer) StreamChat(ctx context.Context, messages []Message, stopped StopCheck, onFragment FragmentHandler) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	text := buildMockReply(messages)
	for _, piece := range strings.SplitAfter(text, " ") {
		if stopped != nil && stopped() {
			return nil
		}
		if piece == "" {
			continue
		}
		if onFragment != nil {
			if err := onFragment(piece); err != nil {
				return err
			}
		}
	}
	return nil
}

func buildMockReply(messages []Message) string {
	var last string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			last = strings.TrimSpace(messages[i].Content)
			break
		}
	}
	if last == "" {
		return "I am listening. Say something when you are ready."
	}
	return fmt.Sprintf("I heard you say: %s. Here is a short spoken reply. Ask about the weather or the time to try a tool.", last)
}
