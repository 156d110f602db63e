package voice

import (
	"context"
)

// MockProvider is a local fallback used when no speech backend is
// configured. Each phrase becomes its text bytes split into fixed-size
// chunks, so tests can reassemble exactly what would have been spoken.
type MockProvider struct {
	chunkSize int
}

func NewMockProvider() *MockProvider { return &MockProvider{chunkSize: 1024} }

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) Stream(ctx context.Context, phrases <-chan string, chunks chan<- []byte, stopped func() bool) error {
	defer close(chunks)

	for phrase := range phrases {
		if stopped != nil && stopped() {
			continue
		}
		select {
		case <-ctx.Done():
			continue
		default:
		}

		data := []byte(phrase)
		for len(data) > 0 {
			n := p.chunkSize
			if n > len(data) {
				n = len(data)
			}
			chunks <- append([]byte(nil), data[:n]...)
			data = data[n:]
		}
	}
	return nil
}
