// Package mock provides test doubles for the live package interfaces.
//
// Use Provider to verify Connect calls and feed controlled sessions. Use
// Session to drive the audio, transcript and turn streams and inspect which
// methods the session controller invoked.
//
// Example:
//
//	sess := mock.NewSession()
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.Connect(ctx, cfg)
package mock

import (
	"context"
	"sync"

	"github.com/herowayua/livevoice/pkg/audio"
	"github.com/herowayua/livevoice/pkg/provider/live"
)

// ConnectCall records a single invocation of Provider.Connect.
type ConnectCall struct {
	// Ctx is the context passed to Connect.
	Ctx context.Context
	// Cfg is the SessionConfig passed to Connect.
	Cfg live.SessionConfig
}

// Provider is a mock implementation of live.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by Connect. If nil, Connect
	// returns a new default Session.
	Session live.SessionHandle

	// ConnectErr, if non-nil, is returned as the error from Connect.
	ConnectErr error

	// ProviderCapabilities is returned by Capabilities.
	ProviderCapabilities live.Capabilities

	// ConnectCalls records every call to Connect in order.
	ConnectCalls []ConnectCall
}

// Connect records the call and returns Session, ConnectErr.
func (p *Provider) Connect(ctx context.Context, cfg live.SessionConfig) (live.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{Ctx: ctx, Cfg: cfg})
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	if p.Session != nil {
		return p.Session, nil
	}
	return NewSession(), nil
}

// Capabilities returns ProviderCapabilities.
func (p *Provider) Capabilities() live.Capabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ProviderCapabilities
}

// Calls returns a copy of the recorded Connect calls. Thread-safe.
func (p *Provider) Calls() []ConnectCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ConnectCall(nil), p.ConnectCalls...)
}

// Ensure Provider implements live.Provider at compile time.
var _ live.Provider = (*Provider)(nil)

// Session is a mock implementation of live.SessionHandle. Tests push values
// into AudioCh, TranscriptsCh and TurnsCh; Close closes all three exactly
// once so consumers observe end-of-session the same way they would with a
// real connection.
type Session struct {
	mu sync.Mutex

	// AudioCh is the channel returned by Audio().
	AudioCh chan []byte

	// TranscriptsCh is the channel returned by Transcripts().
	TranscriptsCh chan audio.TranscriptEvent

	// TurnsCh is the channel returned by Turns().
	TurnsCh chan live.TurnEvent

	// SendErr, if non-nil, is returned by every Send call.
	SendErr error

	// CloseErr, if non-nil, is returned by the first Close.
	CloseErr error

	// ErrVal is returned by Err.
	ErrVal error

	// SendCalls records a copy of every frame passed to Send.
	SendCalls []audio.EncodedFrame

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	closeOnce sync.Once
}

// NewSession returns a Session with buffered channels ready for use.
func NewSession() *Session {
	return &Session{
		AudioCh:       make(chan []byte, 64),
		TranscriptsCh: make(chan audio.TranscriptEvent, 16),
		TurnsCh:       make(chan live.TurnEvent, 4),
	}
}

// Send records the call and returns SendErr.
func (s *Session) Send(frame audio.EncodedFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendCalls = append(s.SendCalls, frame)
	return s.SendErr
}

// Audio returns AudioCh.
func (s *Session) Audio() <-chan []byte { return s.AudioCh }

// Transcripts returns TranscriptsCh.
func (s *Session) Transcripts() <-chan audio.TranscriptEvent { return s.TranscriptsCh }

// Turns returns TurnsCh.
func (s *Session) Turns() <-chan live.TurnEvent { return s.TurnsCh }

// Err returns ErrVal. Thread-safe.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ErrVal
}

// SetErr sets the value returned by Err. Thread-safe.
func (s *Session) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ErrVal = err
}

// Sent returns a copy of the recorded Send calls. Thread-safe.
func (s *Session) Sent() []audio.EncodedFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audio.EncodedFrame(nil), s.SendCalls...)
}

// Closes returns the number of times Close was called. Thread-safe.
func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CloseCallCount
}

// Close records the call, closes all channels once, and returns CloseErr on
// the first invocation only.
func (s *Session) Close() error {
	s.mu.Lock()
	s.CloseCallCount++
	first := s.CloseCallCount == 1
	s.mu.Unlock()

	s.closeOnce.Do(func() {
		close(s.AudioCh)
		close(s.TranscriptsCh)
		close(s.TurnsCh)
	})
	if first {
		return s.CloseErr
	}
	return nil
}

// Ensure Session implements live.SessionHandle at compile time.
var _ live.SessionHandle = (*Session)(nil)
