package audio

// Device is a playback sink with explicit lifetime, constructed by the
// caller and handed to the Player rather than reached through process-wide
// state. Write may block while the device catches up; Flush discards queued
// audio; Drain blocks until queued audio has played out.
type Device interface {
	Write(pcm []byte) error
	Flush()
	Drain()
	Close() error
}

// Player drains one turn's PCM chunks into a device. It owns no device
// lifetime; the same device serves many turns.
type Player struct {
	dev Device
}

func NewPlayer(dev Device) *Player {
	return &Player{dev: dev}
}

// Run consumes chunks until the channel closes. When stopped reports true,
// queued audio is flushed and remaining chunks are discarded, but the
// channel is still drained to its close so the producer never blocks. On a
// device write failure the remaining chunks are likewise discarded and the
// error is returned after the channel closes.
func (p *Player) Run(chunks <-chan []byte, stopped func() bool) error {
	var writeErr error
	for chunk := range chunks {
		if writeErr != nil {
			continue
		}
		if stopped != nil && stopped() {
			p.dev.Flush()
			for range chunks {
			}
			return nil
		}
		if len(chunk) == 0 {
			continue
		}
		if err := p.dev.Write(chunk); err != nil {
			writeErr = err
		}
	}
	if writeErr != nil {
		return writeErr
	}
	p.dev.Drain()
	return nil
}
