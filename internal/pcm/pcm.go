// Package pcm frames microphone samples for transmission and measures
// synthesized PCM for playback. It holds no state.
package pcm

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"jarvis/internal/domain"
)

const (
	// EncodingS16LE identifies signed 16-bit little-endian mono PCM.
	EncodingS16LE = "pcm_s16le"
	// FormatF32LE names raw little-endian float32 capture samples.
	FormatF32LE = "f32le"

	// CaptureRate is the microphone rate streamed to the peer.
	CaptureRate = 16000
	// PlaybackRate is the rate of synthesized audio from the peer.
	PlaybackRate = 24000
)

// Frame quantizes samples to 16-bit PCM and wraps them for transmission.
// It never fails: out-of-range samples are clamped and NaN becomes silence.
func Frame(samples []float32, sampleRate int) domain.AudioFrame {
	if sampleRate <= 0 {
		sampleRate = CaptureRate
	}
	data := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(Quantize(sample)))
	}
	return domain.AudioFrame{
		Data:     data,
		Encoding: EncodingS16LE,
		MIMEType: MIMEType(sampleRate),
	}
}

// Quantize maps a sample in [-1, 1] onto the int16 range.
func Quantize(sample float32) int16 {
	if math.IsNaN(float64(sample)) {
		return 0
	}
	scaled := float64(sample) * 32768
	if scaled >= math.MaxInt16 {
		return math.MaxInt16
	}
	if scaled <= math.MinInt16 {
		return math.MinInt16
	}
	return int16(scaled)
}

// MIMEType returns the mime tag used for raw PCM at the given rate.
func MIMEType(sampleRate int) string {
	return fmt.Sprintf("audio/pcm;rate=%d", sampleRate)
}

// RateFromMIME reads the rate parameter of a PCM mime tag.
func RateFromMIME(mimeType string, fallback int) int {
	for _, param := range strings.Split(mimeType, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "rate") {
			continue
		}
		rate, err := strconv.Atoi(strings.TrimSpace(value))
		if err == nil && rate > 0 {
			return rate
		}
	}
	return fallback
}

// DecodeF32LE converts little-endian float32 bytes to samples. A trailing
// partial sample is returned as the remainder.
func DecodeF32LE(data []byte) (samples []float32, remainder []byte) {
	count := len(data) / 4
	samples = make([]float32, count)
	for i := 0; i < count; i++ {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples, data[count*4:]
}

// Duration is the playback length of a mono s16le buffer.
func Duration(byteCount int, sampleRate int) time.Duration {
	if sampleRate <= 0 || byteCount <= 0 {
		return 0
	}
	samples := int64(byteCount / 2)
	return time.Duration(samples * int64(time.Second) / int64(sampleRate))
}
