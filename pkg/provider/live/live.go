// Package live defines the Provider interface for bidirectional voice
// backends.
//
// A live provider wraps a real-time voice service that accepts streamed
// microphone audio and returns synthesised speech in a single stateful
// session, with incremental transcripts for both sides of the conversation
// delivered out of band.
//
// The central abstraction is SessionHandle: a multiplexed channel set
// carrying audio, transcripts and turn boundaries concurrently. Sessions are
// long-lived (seconds to minutes). All implementations must be safe for
// concurrent use.
package live

import (
	"context"
	"time"

	"github.com/herowayua/livevoice/pkg/audio"
)

// TurnEvent marks a boundary in the model's speech.
type TurnEvent int

const (
	// TurnComplete means the model finished its current spoken turn.
	TurnComplete TurnEvent = iota

	// TurnInterrupted means the model abandoned its turn because the user
	// started speaking. Buffered playback for the turn should be discarded.
	TurnInterrupted
)

// SessionConfig is the initial configuration for a new live session.
type SessionConfig struct {
	// Instructions is the system-level prompt that defines the agent's role
	// and behaviour for the whole session.
	Instructions string

	// Voice selects the prebuilt voice used for synthesised output. Empty
	// means the provider's default.
	Voice string
}

// Capabilities describes static properties of a live provider.
type Capabilities struct {
	// ContextWindow is the maximum token count the model can maintain
	// across the session.
	ContextWindow int

	// MaxSessionDuration is the hard upper bound on session lifetime
	// imposed by the provider. Zero means no documented limit.
	MaxSessionDuration time.Duration

	// Voices lists the prebuilt voice names available for this provider.
	Voices []string
}

// SessionHandle represents an open live session. It is an interface so that
// test code can supply mock implementations without a network connection.
//
// The session is the hot path of the voice pipeline: every method must
// return quickly, and audio I/O is channel-based so the capture thread never
// blocks on the network. Callers must call Close when done.
type SessionHandle interface {
	// Send delivers one encoded microphone frame to the provider. Returns
	// an error if the session is closed or the connection has failed.
	Send(frame audio.EncodedFrame) error

	// Audio returns a read-only channel emitting raw 16-bit little-endian
	// PCM at [audio.PlaybackRate] as the model speaks. The channel is
	// closed when the session ends; check [SessionHandle.Err] afterwards
	// to see whether it ended cleanly. Consumers must drain promptly.
	Audio() <-chan []byte

	// Transcripts returns a read-only channel emitting incremental text
	// fragments for both speakers. Closed when the session ends.
	Transcripts() <-chan audio.TranscriptEvent

	// Turns returns a read-only channel emitting turn boundary events.
	// Closed when the session ends.
	Turns() <-chan TurnEvent

	// Err returns the error that caused the session to terminate, or nil
	// if it ended cleanly. Check after the Audio channel closes.
	Err() error

	// Close terminates the session, releases all resources, and closes the
	// Audio, Transcripts and Turns channels. Idempotent.
	Close() error
}

// Provider is the abstraction over any live voice backend.
type Provider interface {
	// Connect establishes a new session with the given configuration. The
	// returned handle is ready to accept audio immediately. The caller
	// owns the handle and is responsible for calling Close.
	Connect(ctx context.Context, cfg SessionConfig) (SessionHandle, error)

	// Capabilities returns static metadata about this provider's model.
	Capabilities() Capabilities
}
