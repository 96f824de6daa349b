package pcm

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func TestQuantizeClampsAndZeroesNaN(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   float32
		want int16
	}{
		{name: "above range", in: 1.5, want: math.MaxInt16},
		{name: "below range", in: -1.5, want: math.MinInt16},
		{name: "nan", in: float32(math.NaN()), want: 0},
		{name: "positive full scale", in: 1, want: math.MaxInt16},
		{name: "negative full scale", in: -1, want: math.MinInt16},
		{name: "positive infinity", in: float32(math.Inf(1)), want: math.MaxInt16},
		{name: "half", in: 0.5, want: 16384},
		{name: "silence", in: 0, want: 0},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Quantize(tc.in); got != tc.want {
				t.Fatalf("Quantize(%v) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestFrameEncodesLittleEndianWithDescriptor(t *testing.T) {
	t.Parallel()

	frame := Frame([]float32{1.5, -1.5, float32(math.NaN()), 0.5}, CaptureRate)

	if frame.Encoding != EncodingS16LE {
		t.Fatalf("unexpected encoding: %q", frame.Encoding)
	}
	if frame.MIMEType != "audio/pcm;rate=16000" {
		t.Fatalf("unexpected mime type: %q", frame.MIMEType)
	}
	if len(frame.Data) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(frame.Data))
	}

	want := []int16{math.MaxInt16, math.MinInt16, 0, 16384}
	for i, w := range want {
		got := int16(binary.LittleEndian.Uint16(frame.Data[i*2:]))
		if got != w {
			t.Fatalf("sample %d: got %d, want %d", i, got, w)
		}
	}
	if frame.Data[0] != 0xff || frame.Data[1] != 0x7f {
		t.Fatalf("expected little-endian max value, got % x", frame.Data[:2])
	}
}

func TestFrameEmptyInput(t *testing.T) {
	t.Parallel()

	frame := Frame(nil, 0)
	if len(frame.Data) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(frame.Data))
	}
	if frame.MIMEType != "audio/pcm;rate=16000" {
		t.Fatalf("expected default rate, got %q", frame.MIMEType)
	}
}

func TestDecodeF32LEKeepsRemainder(t *testing.T) {
	t.Parallel()

	data := make([]byte, 10)
	binary.LittleEndian.PutUint32(data[0:], math.Float32bits(0.25))
	binary.LittleEndian.PutUint32(data[4:], math.Float32bits(-1))
	data[8], data[9] = 0xaa, 0xbb

	samples, remainder := DecodeF32LE(data)
	if len(samples) != 2 || samples[0] != 0.25 || samples[1] != -1 {
		t.Fatalf("unexpected samples: %v", samples)
	}
	if len(remainder) != 2 || remainder[0] != 0xaa {
		t.Fatalf("unexpected remainder: % x", remainder)
	}
}

func TestRateFromMIME(t *testing.T) {
	t.Parallel()

	if got := RateFromMIME("audio/pcm;rate=24000", 1); got != 24000 {
		t.Fatalf("unexpected rate: %d", got)
	}
	if got := RateFromMIME("audio/pcm; Rate = 8000", 1); got != 8000 {
		t.Fatalf("unexpected spaced rate: %d", got)
	}
	if got := RateFromMIME("audio/pcm", PlaybackRate); got != PlaybackRate {
		t.Fatalf("expected fallback, got %d", got)
	}
	if got := RateFromMIME("audio/pcm;rate=abc", 7); got != 7 {
		t.Fatalf("expected fallback for invalid rate, got %d", got)
	}
}

func TestDuration(t *testing.T) {
	t.Parallel()

	if got := Duration(48000, PlaybackRate); got != time.Second {
		t.Fatalf("expected 1s, got %s", got)
	}
	if got := Duration(480, PlaybackRate); got != 10*time.Millisecond {
		t.Fatalf("expected 10ms, got %s", got)
	}
	if got := Duration(100, 0); got != 0 {
		t.Fatalf("expected zero for invalid rate, got %s", got)
	}
}
