// Package transcript accumulates the incremental text fragments of a live
// session into an ordered, per-speaker conversation log.
//
// Live endpoints deliver transcription in small partial fragments, often
// splitting words across messages. The log merges consecutive fragments from
// the same speaker into one message and starts a new message whenever the
// speaker changes, which reconstructs the turn structure of the conversation.
package transcript

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/herowayua/livevoice/pkg/audio"
)

// Message is one contiguous utterance by a single speaker.
type Message struct {
	// ID is a stable unique identifier assigned when the message is created.
	ID string

	// Speaker identifies who produced the message.
	Speaker audio.Speaker

	// Text is the accumulated fragment text. Fragments are concatenated
	// verbatim; the endpoint includes its own spacing.
	Text string
}

// Log is an append-only conversation log. Safe for concurrent use.
type Log struct {
	mu       sync.Mutex
	messages []Message
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append merges event into the log: if the last message belongs to the same
// speaker its text is extended, otherwise a new message is started. Empty
// fragments are ignored.
func (l *Log) Append(event audio.TranscriptEvent) {
	if event.Text == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.messages); n > 0 && l.messages[n-1].Speaker == event.Speaker {
		l.messages[n-1].Text += event.Text
		return
	}
	l.messages = append(l.messages, Message{
		ID:      uuid.NewString(),
		Speaker: event.Speaker,
		Text:    event.Text,
	})
}

// Snapshot returns a copy of the messages in order.
func (l *Log) Snapshot() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.messages...)
}

// Len returns the number of messages in the log.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// Last returns the most recent message and true, or a zero Message and false
// when the log is empty.
func (l *Log) Last() (Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.messages) == 0 {
		return Message{}, false
	}
	return l.messages[len(l.messages)-1], true
}

// Render formats the conversation as plain text, one line per message,
// prefixed with a role label. Used to build analysis prompts.
func (l *Log) Render() string {
	var b strings.Builder
	for _, m := range l.Snapshot() {
		switch m.Speaker {
		case audio.SpeakerLocal:
			b.WriteString("Candidate: ")
		case audio.SpeakerRemote:
			b.WriteString("Interviewer: ")
		}
		b.WriteString(strings.TrimSpace(m.Text))
		b.WriteString("\n")
	}
	return b.String()
}
