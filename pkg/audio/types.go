// Package audio defines the PCM types and pure codec functions shared by the
// capture and playback pipelines.
//
// The live transport dictates the audio representation exactly: 16-bit
// little-endian PCM, base64-framed, 16 kHz mono on the way up and 24 kHz mono
// on the way down. Nothing in this package performs I/O.
package audio

import "time"

const (
	// CaptureRate is the sample rate of microphone input sent to the live
	// endpoint, in Hz.
	CaptureRate = 16000

	// PlaybackRate is the sample rate of synthesised audio received from the
	// live endpoint, in Hz.
	PlaybackRate = 24000

	// DefaultBlockSize is the number of samples in one capture block.
	DefaultBlockSize = 4096

	// CaptureMIMEType is the MIME tag attached to every outbound frame.
	// The live endpoint requires this exact value for 16 kHz input.
	CaptureMIMEType = "audio/pcm;rate=16000"
)

// EncodedFrame is one base64-framed PCM chunk ready for the wire.
// Frames are transient: created in a capture callback, consumed by a single
// Send call, never retained.
type EncodedFrame struct {
	// Data is the base64 (standard alphabet) encoding of little-endian
	// 16-bit PCM samples.
	Data string

	// MIMEType describes sample width and rate, e.g. "audio/pcm;rate=16000".
	MIMEType string
}

// Buffer is decoded multi-channel audio ready for scheduled playback.
// Samples are float32 in [-1, 1], one slice per channel, all channels the
// same length.
type Buffer struct {
	Data       [][]float32
	SampleRate int
}

// Frames returns the number of sample frames per channel.
func (b Buffer) Frames() int {
	if len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Duration returns the playback duration of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// TranscriptEvent is a partial text fragment delivered by the live endpoint
// out of band from the audio stream.
type TranscriptEvent struct {
	// Speaker identifies who produced the fragment.
	Speaker Speaker

	// Text is the incremental fragment. Fragments accumulate; they do not
	// replace earlier text.
	Text string
}

// Speaker identifies the origin of a transcript fragment.
type Speaker int

const (
	// SpeakerLocal is the person at the microphone.
	SpeakerLocal Speaker = iota

	// SpeakerRemote is the conversational agent.
	SpeakerRemote
)

// String returns the human-readable name of the speaker.
func (s Speaker) String() string {
	switch s {
	case SpeakerLocal:
		return "local"
	case SpeakerRemote:
		return "remote"
	default:
		return "unknown"
	}
}
