package audio

import (
	"encoding/binary"
	"time"
)

// Silence returns d worth of silent 16-bit mono PCM at the given rate.
func Silence(sampleRate int, d time.Duration) []byte {
	if sampleRate <= 0 || d <= 0 {
		return nil
	}
	samples := int(float64(sampleRate) * d.Seconds())
	return make([]byte, samples*2)
}

// BytesToInt16 reinterprets little-endian PCM bytes as samples. A trailing
// odd byte is dropped.
func BytesToInt16(pcm []byte) []int16 {
	n := len(pcm) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

// Int16ToBytes encodes samples as little-endian PCM bytes.
func Int16ToBytes(samples []int16) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return pcm
}

// DownmixStereo16 averages interleaved stereo PCM16LE into mono. Inputs
// that are not a whole number of stereo frames lose the trailing bytes.
func DownmixStereo16(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		left := int16(binary.LittleEndian.Uint16(pcm[i*4:]))
		right := int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))
		mono := int16((int32(left) + int32(right)) / 2)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(mono))
	}
	return out
}
