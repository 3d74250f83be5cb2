// Package capture turns microphone input into encoded frames ready for a
// live session.
//
// The pipeline owns the device lifecycle: open on Start, released exactly
// once on Close. Samples are accumulated into fixed-size blocks and framed
// with [audio.EncodeFrame]; if the consumer falls behind, whole frames are
// dropped rather than blocking the device callback.
package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/herowayua/livevoice/pkg/audio"
)

// ErrAlreadyStarted is returned by Start on a pipeline that is running or
// has been closed.
var ErrAlreadyStarted = errors.New("capture: pipeline already started")

// Device is a source of raw microphone samples. Start begins delivery of
// mono float samples at [audio.CaptureRate] to onSamples from the device's
// own thread; Stop ends delivery and releases the device. The production
// implementation lives in device.go.
type Device interface {
	Start(onSamples func([]float32)) error
	Stop() error
}

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithDevice substitutes the microphone device. Used by tests and by callers
// that manage their own device context.
func WithDevice(d Device) Option {
	return func(p *Pipeline) { p.dev = d }
}

// WithBlockSize sets the number of samples per encoded frame. Defaults to
// [audio.DefaultBlockSize].
func WithBlockSize(n int) Option {
	return func(p *Pipeline) { p.blockSize = n }
}

// WithFrameBuffer sets how many encoded frames may queue before the pipeline
// starts dropping.
func WithFrameBuffer(n int) Option {
	return func(p *Pipeline) { p.frames = make(chan audio.EncodedFrame, n) }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// Pipeline captures, blocks and encodes microphone audio.
type Pipeline struct {
	dev       Device
	blockSize int
	logger    *slog.Logger
	frames    chan audio.EncodedFrame

	mu      sync.Mutex
	started bool
	acc     []float32

	closeOnce sync.Once
	closed    atomic.Bool
	dropped   atomic.Int64
}

// NewPipeline returns an unstarted pipeline. Without [WithDevice] it opens
// the default system microphone on Start.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		blockSize: audio.DefaultBlockSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.frames == nil {
		p.frames = make(chan audio.EncodedFrame, 16)
	}
	return p
}

// Start acquires the device and begins capturing. An error here means the
// microphone could not be opened, typically because the user denied access
// or no input device exists.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	if p.started || p.closed.Load() {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.started = true
	opened := false
	if p.dev == nil {
		dev, err := openDefaultDevice(p.logger)
		if err != nil {
			p.started = false
			p.mu.Unlock()
			return fmt.Errorf("capture: open microphone: %w", err)
		}
		p.dev = dev
		opened = true
	}
	dev := p.dev
	p.mu.Unlock()

	if err := dev.Start(p.onSamples); err != nil {
		// Release the device now; a later Close skips devices that never
		// started, so this is the only chance to free the handle.
		if stopErr := dev.Stop(); stopErr != nil {
			p.logger.Warn("releasing microphone after failed start", "error", stopErr)
		}
		p.mu.Lock()
		p.started = false
		if opened {
			p.dev = nil
		}
		p.mu.Unlock()
		return fmt.Errorf("capture: start microphone: %w", err)
	}
	return nil
}

// Frames returns the stream of encoded frames. The channel is closed by
// [Pipeline.Close].
func (p *Pipeline) Frames() <-chan audio.EncodedFrame {
	return p.frames
}

// Dropped reports how many frames have been discarded because the consumer
// was not keeping up.
func (p *Pipeline) Dropped() int64 {
	return p.dropped.Load()
}

// Close stops the device and closes the frame channel. Safe to call more
// than once and from any goroutine.
func (p *Pipeline) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.closed.Store(true)

		p.mu.Lock()
		dev := p.dev
		started := p.started
		p.mu.Unlock()

		// Stop before closing the channel: the device blocks until its
		// callback thread has drained, so no send can race the close.
		if dev != nil && started {
			if stopErr := dev.Stop(); stopErr != nil {
				err = fmt.Errorf("capture: stop microphone: %w", stopErr)
			}
		}
		close(p.frames)
	})
	return err
}

func (p *Pipeline) onSamples(samples []float32) {
	if p.closed.Load() {
		return
	}

	p.mu.Lock()
	p.acc = append(p.acc, samples...)

	var out []audio.EncodedFrame
	for len(p.acc) >= p.blockSize {
		out = append(out, audio.EncodeFrame(p.acc[:p.blockSize]))
		p.acc = append(p.acc[:0], p.acc[p.blockSize:]...)
	}
	p.mu.Unlock()

	for _, frame := range out {
		select {
		case p.frames <- frame:
		default:
			if n := p.dropped.Add(1); n == 1 || n%100 == 0 {
				p.logger.Warn("dropping capture frames, consumer not keeping up", "dropped", n)
			}
		}
	}
}
