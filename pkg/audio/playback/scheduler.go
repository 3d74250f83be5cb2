// Package playback schedules decoded audio buffers onto a single output
// stream so that chunks arriving in bursts play back-to-back without gaps or
// overlap.
//
// The core invariant is a monotonic cursor: every buffer starts at
// max(cursor, now) and advances the cursor by its own duration. Chunks that
// arrive faster than real time queue up seamlessly; a chunk that arrives
// after the stream ran dry starts immediately.
package playback

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/herowayua/livevoice/pkg/audio"
)

// OutputContext is the clock and sink a [Scheduler] plays into. The production
// implementation is backed by the operating system audio device; tests supply
// a virtual one.
type OutputContext interface {
	// Now returns the current position of the output clock.
	Now() time.Duration

	// StartAt schedules pcm (16-bit little-endian mono at the context's
	// sample rate) to begin playing at the given clock position. onDone is
	// called once, from an arbitrary goroutine, when the segment has been
	// fully consumed. Segments are scheduled in non-overlapping order.
	StartAt(pcm []byte, at time.Duration, onDone func())

	// Reset drops every scheduled segment without firing its onDone.
	Reset()

	// Close releases the underlying device. The context is unusable after.
	Close() error
}

// Option configures a [Scheduler].
type Option func(*Scheduler)

// WithOutputFactory overrides how the scheduler obtains its output context.
// The factory runs lazily on the first Schedule call and again after Close.
func WithOutputFactory(f func() (OutputContext, error)) Option {
	return func(s *Scheduler) { s.newOutput = f }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// Scheduler serialises buffers onto one output context. Safe for concurrent
// use.
type Scheduler struct {
	newOutput func() (OutputContext, error)
	logger    *slog.Logger

	mu      sync.Mutex
	out     OutputContext
	cursor  time.Duration
	pending int
	gen     uint64
}

// NewScheduler returns a scheduler that opens the default output device on
// first use.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		newOutput: NewOtoOutput,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule queues buf for gapless playback. Multi-channel buffers are downmixed
// and off-rate buffers resampled before queueing. An empty buffer is a no-op.
//
// The output context is created lazily, so the first call after construction
// or after [Scheduler.Close] (re)opens the device.
func (s *Scheduler) Schedule(buf audio.Buffer) error {
	mono := audio.DownmixMono(buf)
	if mono.Frames() == 0 {
		return nil
	}
	if mono.SampleRate != audio.PlaybackRate {
		mono = audio.Buffer{
			Data:       [][]float32{audio.ResampleMono(mono.Data[0], mono.SampleRate, audio.PlaybackRate)},
			SampleRate: audio.PlaybackRate,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.out == nil {
		out, err := s.newOutput()
		if err != nil {
			return fmt.Errorf("playback: open output: %w", err)
		}
		s.out = out
		s.cursor = 0
	}

	start := s.cursor
	if now := s.out.Now(); now > start {
		start = now
	}
	s.cursor = start + mono.Duration()
	s.pending++

	gen := s.gen
	s.out.StartAt(mono.PCM16(), start, func() {
		s.mu.Lock()
		if s.gen == gen {
			s.pending--
		}
		s.mu.Unlock()
	})
	return nil
}

// Interrupt discards everything queued but not yet played and rewinds the
// cursor, so the next Schedule call starts immediately. The output context
// stays open.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.out != nil {
		s.out.Reset()
	}
	s.pending = 0
	s.cursor = 0
	s.gen++
}

// Pending reports how many scheduled segments have not finished playing.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Close releases the output context. Calling Close on an already-closed or
// never-opened scheduler is a no-op; a later Schedule call reopens the device.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.out == nil {
		return nil
	}
	err := s.out.Close()
	s.out = nil
	s.pending = 0
	s.cursor = 0
	s.gen++
	if err != nil {
		return fmt.Errorf("playback: close output: %w", err)
	}
	return nil
}
