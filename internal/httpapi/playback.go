package httpapi

import (
	"sync"

	"github.com/ariavoice/aria/internal/audio"
)

// playbackState owns the optional server-side output device behind
// /api/toggle-audio. The opener indirection keeps hardware acquisition out
// of tests.
type playbackState struct {
	mu      sync.Mutex
	open    func() (audio.Device, error)
	dev     audio.Device
	playing bool
}

func newPlaybackState(sampleRate int) *playbackState {
	return &playbackState{
		open: func() (audio.Device, error) {
			return audio.OpenMalgoDevice(sampleRate)
		},
	}
}

// toggle flips server-side playback, opening or closing the device, and
// reports the new state.
func (p *playbackState) toggle() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		p.playing = false
		dev := p.dev
		p.dev = nil
		if dev != nil {
			if err := dev.Close(); err != nil {
				return false, err
			}
		}
		return false, nil
	}
	dev, err := p.open()
	if err != nil {
		return false, err
	}
	p.dev = dev
	p.playing = true
	return true, nil
}

// enable opens the device if it is not already open.
func (p *playbackState) enable() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return nil
	}
	dev, err := p.open()
	if err != nil {
		return err
	}
	p.dev = dev
	p.playing = true
	return nil
}

// device returns the open device, or nil while playback is off. A turn
// that holds the returned device keeps writing to it even if a toggle
// closes it mid-turn; the write error ends that turn's playback.
func (p *playbackState) device() audio.Device {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return nil
	}
	return p.dev
}

func (p *playbackState) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	dev := p.dev
	p.dev = nil
	if dev == nil {
		return nil
	}
	return dev.Close()
}
