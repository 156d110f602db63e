package audio

import (
	"fmt"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// Capturer reads mono 16-bit frames of a fixed length from the default
// input device. Frames are delivered on a buffered channel; when the
// consumer lags, frames are dropped rather than blocking the audio thread.
type Capturer struct {
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	frames   chan []int16
	pending  []int16
	frameLen int
	running  atomic.Bool
	closed   atomic.Bool
}

// NewCapturer acquires the default capture device. frameLength is in
// samples; wake-word engines dictate theirs, streaming STT favors ~20ms.
func NewCapturer(sampleRate, frameLength int) (*Capturer, error) {
	if frameLength <= 0 {
		return nil, fmt.Errorf("frame length must be positive, got %d", frameLength)
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	c := &Capturer{
		ctx:      ctx,
		frames:   make(chan []int16, 32),
		frameLen: frameLength,
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	onRecvFrames := func(_, pInputSamples []byte, _ uint32) {
		if !c.running.Load() {
			return
		}
		c.pending = append(c.pending, BytesToInt16(pInputSamples)...)
		consumed := 0
		for len(c.pending)-consumed >= c.frameLen {
			frame := make([]int16, c.frameLen)
			copy(frame, c.pending[consumed:consumed+c.frameLen])
			consumed += c.frameLen
			select {
			case c.frames <- frame:
			default:
			}
		}
		if consumed > 0 {
			n := copy(c.pending, c.pending[consumed:])
			c.pending = c.pending[:n]
		}
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	c.device = device
	return c, nil
}

// Start begins delivering frames.
func (c *Capturer) Start() error {
	c.running.Store(true)
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("start capture device: %w", err)
	}
	return nil
}

// Frames is the capture output. The channel is closed by Close.
func (c *Capturer) Frames() <-chan []int16 {
	return c.frames
}

// Pause suppresses frame delivery without releasing the device.
func (c *Capturer) Pause() {
	c.running.Store(false)
}

// Resume restarts frame delivery after Pause.
func (c *Capturer) Resume() {
	c.running.Store(true)
}

func (c *Capturer) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.running.Store(false)
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	if c.ctx != nil {
		_ = c.ctx.Uninit()
		c.ctx.Free()
		c.ctx = nil
	}
	close(c.frames)
	return nil
}
