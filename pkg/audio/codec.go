package audio

import (
	"encoding/base64"
	"fmt"
	"math"
)

// EncodeFrame converts one block of float samples in [-1, 1] into a
// base64-framed 16-bit little-endian PCM chunk tagged for the live endpoint.
//
// Each sample is scaled by 32768 and rounded to the nearest integer.
// Out-of-range input is clamped to the int16 range rather than wrapped: a
// hot microphone must clip, not alias. NaN encodes as silence.
func EncodeFrame(samples []float32) EncodedFrame {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := math.Round(float64(s) * 32768)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		} else if math.IsNaN(v) {
			v = 0
		}
		u := uint16(int16(v))
		pcm[i*2] = byte(u)
		pcm[i*2+1] = byte(u >> 8)
	}
	return EncodedFrame{
		Data:     base64.StdEncoding.EncodeToString(pcm),
		MIMEType: CaptureMIMEType,
	}
}

// DecodeFrame is the inverse of [EncodeFrame] generalised to multi-channel
// interleaved input: it unpacks a base64 16-bit little-endian PCM chunk into
// a [Buffer] of float samples ready for scheduled playback.
//
// Zero-length input decodes to an empty buffer and no error. Returns an
// error only for malformed base64 or a byte count that does not divide into
// whole interleaved frames.
func DecodeFrame(data string, sampleRate, channels int) (Buffer, error) {
	if channels <= 0 {
		return Buffer{}, fmt.Errorf("audio: decode frame: channels must be positive, got %d", channels)
	}

	pcm, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return Buffer{}, fmt.Errorf("audio: decode frame: %w", err)
	}
	return DecodePCM16(pcm, sampleRate, channels)
}

// DecodePCM16 unpacks raw 16-bit little-endian PCM bytes into a [Buffer].
// See [DecodeFrame] for the error contract.
func DecodePCM16(pcm []byte, sampleRate, channels int) (Buffer, error) {
	if channels <= 0 {
		return Buffer{}, fmt.Errorf("audio: decode pcm: channels must be positive, got %d", channels)
	}
	if len(pcm)%(2*channels) != 0 {
		return Buffer{}, fmt.Errorf("audio: decode pcm: %d bytes do not divide into %d-channel int16 frames", len(pcm), channels)
	}

	frames := len(pcm) / (2 * channels)
	data := make([][]float32, channels)
	for ch := range data {
		data[ch] = make([]float32, frames)
	}
	for i := range frames {
		for ch := range channels {
			off := (i*channels + ch) * 2
			s := int16(pcm[off]) | int16(pcm[off+1])<<8
			data[ch][i] = float32(s) / 32768.0
		}
	}
	return Buffer{Data: data, SampleRate: sampleRate}, nil
}

// PCM16 interleaves the buffer back into raw 16-bit little-endian bytes.
// Samples are clamped to the int16 range.
func (b Buffer) PCM16() []byte {
	channels := len(b.Data)
	frames := b.Frames()
	out := make([]byte, frames*channels*2)
	for i := range frames {
		for ch := range channels {
			v := math.Round(float64(b.Data[ch][i]) * 32768)
			if v > math.MaxInt16 {
				v = math.MaxInt16
			} else if v < math.MinInt16 {
				v = math.MinInt16
			} else if math.IsNaN(v) {
				v = 0
			}
			u := uint16(int16(v))
			off := (i*channels + ch) * 2
			out[off] = byte(u)
			out[off+1] = byte(u >> 8)
		}
	}
	return out
}
