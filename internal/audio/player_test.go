package audio

import (
	"bytes"
	"errors"
	"testing"
)

type fakeDevice struct {
	writes   [][]byte
	flushed  int
	drained  int
	writeErr error
}

func (d *fakeDevice) Write(pcm []byte) error {
	if d.writeErr != nil {
		return d.writeErr
	}
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	d.writes = append(d.writes, buf)
	return nil
}

func (d *fakeDevice) Flush()       { d.flushed++ }
func (d *fakeDevice) Drain()       { d.drained++ }
func (d *fakeDevice) Close() error { return nil }

func TestPlayerWritesChunksInOrderAndDrains(t *testing.T) {
	dev := &fakeDevice{}
	p := NewPlayer(dev)

	chunks := make(chan []byte, 4)
	chunks <- []byte{1}
	chunks <- []byte{2}
	chunks <- []byte{3}
	close(chunks)

	if err := p.Run(chunks, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(dev.writes) != 3 {
		t.Fatalf("writes = %d, want 3", len(dev.writes))
	}
	for i, want := range [][]byte{{1}, {2}, {3}} {
		if !bytes.Equal(dev.writes[i], want) {
			t.Fatalf("writes[%d] = %v, want %v", i, dev.writes[i], want)
		}
	}
	if dev.drained != 1 {
		t.Fatalf("drained = %d, want 1", dev.drained)
	}
}

func TestPlayerStopFlushesAndDrainsChannel(t *testing.T) {
	dev := &fakeDevice{}
	p := NewPlayer(dev)

	chunks := make(chan []byte, 4)
	chunks <- []byte{1}
	chunks <- []byte{2}
	close(chunks)

	stopped := func() bool { return true }
	if err := p.Run(chunks, stopped); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(dev.writes) != 0 {
		t.Fatalf("writes = %d, want 0 when stopped", len(dev.writes))
	}
	if dev.flushed != 1 {
		t.Fatalf("flushed = %d, want 1", dev.flushed)
	}
	// The channel must be fully consumed so the producer can finish.
	if _, open := <-chunks; open {
		t.Fatalf("chunk channel still open after Run")
	}
}

func TestPlayerSurfacesWriteErrorAfterDraining(t *testing.T) {
	wantErr := errors.New("device gone")
	dev := &fakeDevice{writeErr: wantErr}
	p := NewPlayer(dev)

	chunks := make(chan []byte, 4)
	chunks <- []byte{1}
	chunks <- []byte{2}
	close(chunks)

	err := p.Run(chunks, nil)
	if !errors.Is(err, wantErr) {
		t.Fatalf("Run() error = %v, want %v", err, wantErr)
	}
	if dev.drained != 0 {
		t.Fatalf("drained = %d, want 0 on write failure", dev.drained)
	}
}

func TestPlayerSkipsEmptyChunks(t *testing.T) {
	dev := &fakeDevice{}
	p := NewPlayer(dev)

	chunks := make(chan []byte, 4)
	chunks <- nil
	chunks <- []byte{}
	chunks <- []byte{9}
	close(chunks)

	if err := p.Run(chunks, nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(dev.writes) != 1 || !bytes.Equal(dev.writes[0], []byte{9}) {
		t.Fatalf("writes = %v, want single [9]", dev.writes)
	}
}

func TestPlaybackRingPushPop(t *testing.T) {
	r := newPlaybackRing(8)
	if n := r.push([]byte{1, 2, 3, 4, 5}); n != 5 {
		t.Fatalf("push = %d, want 5", n)
	}
	out := make([]byte, 3)
	if n := r.popInto(out); n != 3 {
		t.Fatalf("popInto = %d, want 3", n)
	}
	if !bytes.Equal(out, []byte{1, 2, 3}) {
		t.Fatalf("popInto out = %v, want [1 2 3]", out)
	}
	if r.size() != 2 {
		t.Fatalf("size = %d, want 2", r.size())
	}
	r.clear()
	if r.size() != 0 {
		t.Fatalf("size after clear = %d, want 0", r.size())
	}
}

func TestPlaybackRingDropsWhenFull(t *testing.T) {
	r := newPlaybackRing(4)
	if n := r.push([]byte{1, 2, 3, 4, 5, 6}); n != 4 {
		t.Fatalf("push = %d, want capacity 4", n)
	}
	if r.size() != 4 {
		t.Fatalf("size = %d, want 4", r.size())
	}
}

func TestPlaybackRingWrapsAround(t *testing.T) {
	r := newPlaybackRing(4)
	out := make([]byte, 4)
	for round := 0; round < 5; round++ {
		if n := r.push([]byte{byte(round), byte(round + 1)}); n != 2 {
			t.Fatalf("round %d push = %d, want 2", round, n)
		}
		if n := r.popInto(out[:2]); n != 2 {
			t.Fatalf("round %d pop = %d, want 2", round, n)
		}
		if out[0] != byte(round) || out[1] != byte(round+1) {
			t.Fatalf("round %d out = %v, want [%d %d]", round, out[:2], round, round+1)
		}
	}
}
