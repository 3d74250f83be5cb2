package audio_test

import (
	"encoding/base64"
	"math"
	"testing"

	"github.com/herowayua/livevoice/pkg/audio"
)

func TestEncodeFrame_MIMEType(t *testing.T) {
	t.Parallel()

	f := audio.EncodeFrame([]float32{0})
	if f.MIMEType != "audio/pcm;rate=16000" {
		t.Errorf("MIMEType = %q, want %q", f.MIMEType, "audio/pcm;rate=16000")
	}
}

func TestEncodeFrame_LittleEndian(t *testing.T) {
	t.Parallel()

	// 0.5 * 32768 = 16384 = 0x4000 → bytes 0x00 0x40 little-endian.
	f := audio.EncodeFrame([]float32{0.5})
	pcm, err := base64.StdEncoding.DecodeString(f.Data)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	if len(pcm) != 2 {
		t.Fatalf("expected 2 bytes, got %d", len(pcm))
	}
	if pcm[0] != 0x00 || pcm[1] != 0x40 {
		t.Errorf("bytes = %#x %#x, want 0x00 0x40", pcm[0], pcm[1])
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	in := make([]float32, 512)
	for i := range in {
		in[i] = float32(math.Sin(float64(i) / 16.0))
	}

	buf, err := audio.DecodeFrame(audio.EncodeFrame(in).Data, audio.CaptureRate, 1)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if got := len(buf.Data); got != 1 {
		t.Fatalf("expected 1 channel, got %d", got)
	}
	if buf.Frames() != len(in) {
		t.Fatalf("frames = %d, want %d", buf.Frames(), len(in))
	}

	const quantum = 1.0 / 32768
	for i, want := range in {
		got := buf.Data[0][i]
		if diff := math.Abs(float64(got - want)); diff > quantum {
			t.Fatalf("sample %d: got %v, want %v (diff %v > %v)", i, got, want, diff, quantum)
		}
	}
}

func TestEncodeFrame_ClampsOutOfRange(t *testing.T) {
	t.Parallel()

	f := audio.EncodeFrame([]float32{2.0, -2.0, float32(math.NaN())})
	buf, err := audio.DecodeFrame(f.Data, audio.CaptureRate, 1)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}

	samples := buf.Data[0]
	if samples[0] < 0.99 {
		t.Errorf("over-range sample decoded to %v, want ≈ 1.0 (clipped)", samples[0])
	}
	if samples[1] > -0.99 {
		t.Errorf("under-range sample decoded to %v, want ≈ -1.0 (clipped)", samples[1])
	}
	if samples[2] != 0 {
		t.Errorf("NaN sample decoded to %v, want 0", samples[2])
	}
}

func TestDecodeFrame_EmptyInput(t *testing.T) {
	t.Parallel()

	buf, err := audio.DecodeFrame("", audio.PlaybackRate, 1)
	if err != nil {
		t.Fatalf("DecodeFrame(\"\") returned error: %v", err)
	}
	if buf.Frames() != 0 {
		t.Errorf("frames = %d, want 0", buf.Frames())
	}
	if buf.Duration() != 0 {
		t.Errorf("duration = %v, want 0", buf.Duration())
	}
}

func TestDecodeFrame_RejectsMisalignedBytes(t *testing.T) {
	t.Parallel()

	// 3 bytes cannot hold whole int16 samples.
	data := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	if _, err := audio.DecodeFrame(data, audio.PlaybackRate, 1); err == nil {
		t.Fatal("expected error for misaligned byte count, got nil")
	}
}

func TestDecodeFrame_Stereo(t *testing.T) {
	t.Parallel()

	// Interleaved L=0x0001, R=0x0002 ×2 frames.
	pcm := []byte{1, 0, 2, 0, 1, 0, 2, 0}
	buf, err := audio.DecodeFrame(base64.StdEncoding.EncodeToString(pcm), 48000, 2)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if len(buf.Data) != 2 || buf.Frames() != 2 {
		t.Fatalf("got %d channels × %d frames, want 2×2", len(buf.Data), buf.Frames())
	}
	if buf.Data[0][0] == buf.Data[1][0] {
		t.Error("channels were not deinterleaved")
	}
}

func TestBufferDuration(t *testing.T) {
	t.Parallel()

	buf := audio.Buffer{Data: [][]float32{make([]float32, 24000)}, SampleRate: 24000}
	if got := buf.Duration().Seconds(); got != 1.0 {
		t.Errorf("duration = %vs, want 1s", got)
	}
}
