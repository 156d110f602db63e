package audio

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

var errDeviceClosed = errors.New("audio device closed")

// playbackRing is a lock-free single-producer single-consumer byte ring.
// Capacity is a power of two so the free-running counters stay correct
// across wraparound.
type playbackRing struct {
	buf  []byte
	head atomic.Uint64
	tail atomic.Uint64
}

func newPlaybackRing(minSize int) *playbackRing {
	size := 1
	for size < minSize {
		size <<= 1
	}
	return &playbackRing{buf: make([]byte, size)}
}

// push copies as much of b as fits and returns the number of bytes taken.
func (r *playbackRing) push(b []byte) int {
	head := r.head.Load()
	tail := r.tail.Load()
	free := len(r.buf) - int(head-tail)
	n := len(b)
	if n > free {
		n = free
	}
	for i := 0; i < n; i++ {
		r.buf[(head+uint64(i))%uint64(len(r.buf))] = b[i]
	}
	r.head.Add(uint64(n))
	return n
}

// popInto fills out from the ring and returns the number of bytes copied.
func (r *playbackRing) popInto(out []byte) int {
	head := r.head.Load()
	tail := r.tail.Load()
	n := int(head - tail)
	if n > len(out) {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		out[i] = r.buf[(tail+uint64(i))%uint64(len(r.buf))]
	}
	r.tail.Add(uint64(n))
	return n
}

func (r *playbackRing) size() int {
	return int(r.head.Load() - r.tail.Load())
}

func (r *playbackRing) clear() {
	r.tail.Store(r.head.Load())
}

// MalgoDevice plays 16-bit mono PCM through the default output device. The
// device callback pulls from the ring and pads with silence when the ring
// runs dry, so the device stays started across turns.
type MalgoDevice struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	ring   *playbackRing
	closed atomic.Bool
}

// OpenMalgoDevice acquires the default playback device at the given sample
// rate. The returned device must be released with Close.
func OpenMalgoDevice(sampleRate int) (*MalgoDevice, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	d := &MalgoDevice{
		ctx: ctx,
		// Eight seconds of headroom at the playback rate.
		ring: newPlaybackRing(sampleRate * 2 * 8),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 100

	onSendFrames := func(pOutputSample, _ []byte, _ uint32) {
		n := d.ring.popInto(pOutputSample)
		for i := n; i < len(pOutputSample); i++ {
			pOutputSample[i] = 0
		}
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSendFrames})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("init playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("start playback device: %w", err)
	}

	d.device = device
	return d, nil
}

// Write queues PCM for playback, blocking while the ring is full.
func (d *MalgoDevice) Write(pcm []byte) error {
	for len(pcm) > 0 {
		if d.closed.Load() {
			return errDeviceClosed
		}
		n := d.ring.push(pcm)
		pcm = pcm[n:]
		if len(pcm) > 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}
	return nil
}

// Flush drops any queued audio without stopping the device.
func (d *MalgoDevice) Flush() {
	d.ring.clear()
}

// Drain blocks until queued audio has been handed to the device callback.
func (d *MalgoDevice) Drain() {
	for d.ring.size() > 0 && !d.closed.Load() {
		time.Sleep(10 * time.Millisecond)
	}
}

func (d *MalgoDevice) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	if d.device != nil {
		d.device.Uninit()
		d.device = nil
	}
	if d.ctx != nil {
		_ = d.ctx.Uninit()
		d.ctx.Free()
		d.ctx = nil
	}
	return nil
}
