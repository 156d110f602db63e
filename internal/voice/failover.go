package voice

import (
	"context"
	"sync/atomic"
)

// NewFailoverProvider wraps a primary and a fallback speech backend. Turns
// go to the primary until one fails, then the fallback carries subsequent
// turns until it fails too, at which point the primary is retried. A phrase
// stream is consumed by whichever backend takes the turn, so switching
// happens between turns, never inside one.
func NewFailoverProvider(primary, fallback Provider) *FailoverProvider {
	return &FailoverProvider{primary: primary, fallback: fallback}
}

type FailoverProvider struct {
	primary        Provider
	fallback       Provider
	fallbackActive atomic.Bool
}

func (p *FailoverProvider) Name() string {
	return p.active().Name()
}

func (p *FailoverProvider) Stream(ctx context.Context, phrases <-chan string, chunks chan<- []byte, stopped func() bool) error {
	backend := p.active()
	err := backend.Stream(ctx, phrases, chunks, stopped)
	if err != nil {
		// Flip for the next turn; this one already ran degraded.
		p.fallbackActive.Store(backend == p.primary)
	}
	return err
}

func (p *FailoverProvider) active() Provider {
	if p.fallbackActive.Load() {
		return p.fallback
	}
	return p.primary
}
