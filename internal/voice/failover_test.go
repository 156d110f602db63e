package voice

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type switchableProvider struct {
	name  string
	fail  atomic.Bool
	calls atomic.Int32
}

func (p *switchableProvider) Name() string { return p.name }

func (p *switchableProvider) Stream(ctx context.Context, phrases <-chan string, chunks chan<- []byte, stopped func() bool) error {
	p.calls.Add(1)
	defer close(chunks)
	for range phrases {
	}
	if p.fail.Load() {
		return errors.New(p.name + " unavailable")
	}
	return nil
}

func runFailoverTurn(t *testing.T, p Provider) error {
	t.Helper()
	phrases := make(chan string, 1)
	phrases <- "Hello there."
	close(phrases)
	chunks := make(chan []byte, 8)
	err := p.Stream(context.Background(), phrases, chunks, nil)
	for range chunks {
	}
	return err
}

func TestFailoverSticksToFallbackAfterPrimaryFailure(t *testing.T) {
	primary := &switchableProvider{name: "azure"}
	fallback := &switchableProvider{name: "openai"}
	primary.fail.Store(true)
	p := NewFailoverProvider(primary, fallback)

	if err := runFailoverTurn(t, p); err == nil {
		t.Fatalf("first turn error = nil, want primary failure")
	}
	if got := primary.calls.Load(); got != 1 {
		t.Fatalf("primary calls = %d, want 1", got)
	}

	primary.fail.Store(false)
	for i := 0; i < 2; i++ {
		if err := runFailoverTurn(t, p); err != nil {
			t.Fatalf("fallback turn %d error = %v", i, err)
		}
	}
	if got := fallback.calls.Load(); got != 2 {
		t.Fatalf("fallback calls = %d, want 2 (fallback stays active while healthy)", got)
	}
	if got := primary.calls.Load(); got != 1 {
		t.Fatalf("primary calls = %d, want still 1", got)
	}
}

func TestFailoverRetriesPrimaryAfterFallbackFailure(t *testing.T) {
	primary := &switchableProvider{name: "azure"}
	fallback := &switchableProvider{name: "openai"}
	primary.fail.Store(true)
	fallback.fail.Store(true)
	p := NewFailoverProvider(primary, fallback)

	if err := runFailoverTurn(t, p); err == nil {
		t.Fatalf("primary turn error = nil, want failure")
	}
	if err := runFailoverTurn(t, p); err == nil {
		t.Fatalf("fallback turn error = nil, want failure")
	}

	primary.fail.Store(false)
	if err := runFailoverTurn(t, p); err != nil {
		t.Fatalf("retried primary turn error = %v", err)
	}
	if got := primary.calls.Load(); got != 2 {
		t.Fatalf("primary calls = %d, want 2", got)
	}
}

func TestFailoverNameTracksActiveBackend(t *testing.T) {
	primary := &switchableProvider{name: "azure"}
	fallback := &switchableProvider{name: "openai"}
	primary.fail.Store(true)
	p := NewFailoverProvider(primary, fallback)

	if got := p.Name(); got != "azure" {
		t.Fatalf("Name() = %q, want azure before any failure", got)
	}
	_ = runFailoverTurn(t, p)
	if got := p.Name(); got != "openai" {
		t.Fatalf("Name() = %q, want openai after primary failure", got)
	}
}
