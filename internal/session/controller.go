package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/herowayua/livevoice/internal/config"
	"github.com/herowayua/livevoice/internal/feedback"
	"github.com/herowayua/livevoice/internal/observe"
	"github.com/herowayua/livevoice/internal/transcript"
	"github.com/herowayua/livevoice/pkg/audio"
	"github.com/herowayua/livevoice/pkg/audio/capture"
	"github.com/herowayua/livevoice/pkg/audio/playback"
	"github.com/herowayua/livevoice/pkg/provider/live"
)

// Error categories surfaced through [Controller.Err]. Match with [errors.Is]
// to distinguish a microphone problem from a connection problem from an
// analysis problem.
var (
	ErrPermission = errors.New("microphone unavailable")
	ErrTransport  = errors.New("connection failed")
	ErrAnalysis   = errors.New("analysis failed")

	// ErrNotIdle is returned by Start when a session is already running or
	// a previous one has not been reset.
	ErrNotIdle = errors.New("session not idle")
)

// Option configures a [Controller].
type Option func(*Controller)

// WithCoach supplies the analysis backend for interview flows. Without a
// coach a feedback-enabled flow degrades to a plain conversation.
func WithCoach(coach *feedback.Coach) Option {
	return func(c *Controller) { c.coach = coach }
}

// WithScheduler substitutes the playback scheduler. Used by tests to inject
// a virtual output clock.
func WithScheduler(s *playback.Scheduler) Option {
	return func(c *Controller) { c.sched = s }
}

// WithCaptureFactory substitutes how the controller obtains a capture
// pipeline. The factory runs once per Start so each session gets a fresh
// pipeline.
func WithCaptureFactory(f func() *capture.Pipeline) Option {
	return func(c *Controller) { c.newCapture = f }
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller owns one live voice conversation at a time. It exposes the
// current [State], the accumulated transcript and, for interview flows, the
// generated feedback. All methods are safe for concurrent use.
type Controller struct {
	provider   live.Provider
	flow       config.FlowConfig
	coach      *feedback.Coach
	sched      *playback.Scheduler
	newCapture func() *capture.Pipeline
	metrics    *observe.Metrics
	logger     *slog.Logger
	detector   *transcript.PhraseDetector
	interview  bool

	mu      sync.Mutex
	state   State
	err     error
	log     *transcript.Log
	fb      string
	sess    live.SessionHandle
	cap     *capture.Pipeline
	started time.Time
}

// New returns an idle controller for the given flow.
func New(provider live.Provider, flow config.FlowConfig, opts ...Option) *Controller {
	c := &Controller{
		provider: provider,
		flow:     flow,
		logger:   slog.Default(),
		detector: transcript.NewPhraseDetector(flow.ClosingPhrase),
		log:      transcript.NewLog(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sched == nil {
		c.sched = playback.NewScheduler(playback.WithLogger(c.logger))
	}
	if c.newCapture == nil {
		c.newCapture = func() *capture.Pipeline {
			return capture.NewPipeline(capture.WithLogger(c.logger))
		}
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	c.interview = flow.Feedback && c.coach != nil
	if flow.Feedback && c.coach == nil {
		c.logger.Warn("flow requests feedback but no coach is configured, analysis disabled",
			"flow", flow.Name)
	}
	return c
}

// Start acquires the microphone, opens the remote session and wires the
// audio and transcript pumps. The microphone is requested first; the remote
// session is only opened once capture is live, so a denied microphone never
// touches the network or the output device.
//
// On failure the controller lands in [StateError] and the returned error
// matches [ErrPermission] or [ErrTransport].
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("%w: state is %s", ErrNotIdle, c.state)
	}
	c.applyLocked(EventStart)
	c.log = transcript.NewLog()
	c.fb = ""
	c.err = nil
	c.mu.Unlock()

	pipe := c.newCapture()
	if err := pipe.Start(); err != nil {
		_ = pipe.Close()
		err = fmt.Errorf("%w: %v", ErrPermission, err)
		c.fail(EventMicDenied, err, "permission")
		return err
	}

	sess, err := c.provider.Connect(ctx, live.SessionConfig{
		Instructions: c.flow.Instructions,
		Voice:        c.flow.Voice,
	})
	if err != nil {
		_ = pipe.Close()
		err = fmt.Errorf("%w: %v", ErrTransport, err)
		c.fail(EventTransportError, err, "transport")
		return err
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// Cancelled while the dial was in flight.
		c.mu.Unlock()
		_ = pipe.Close()
		_ = sess.Close()
		if err := ctx.Err(); err != nil {
			return err
		}
		return errors.New("session cancelled while connecting")
	}
	c.cap = pipe
	c.sess = sess
	c.started = time.Now()
	log := c.log
	c.applyLocked(EventConnected)
	c.mu.Unlock()

	c.metrics.ActiveSessions.Add(ctx, 1)
	c.logger.Info("session started", "flow", c.flow.Name, "interview", c.interview)

	go c.sendLoop(sess, pipe)
	go c.audioLoop(sess)
	go c.transcriptLoop(sess, log)
	go c.turnLoop(sess, log)
	return nil
}

// Stop ends the active session. For interview flows it tears down the
// real-time paths first, then runs the one-shot analysis and lands in
// [StateFeedback] (or [StateError] if analysis fails). For plain flows it
// returns straight to [StateIdle]. An interview with at most one transcript
// message has no exchange to assess, so it skips analysis and returns to
// [StateIdle] like a plain flow.
//
// Stop is re-entrant: a second call arriving while analysis is running, or
// after the session already ended, is a no-op. At most one analysis request
// is ever issued per session.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	e := EventStop
	if c.state == StateInterviewing && c.log.Len() <= 1 {
		e = EventCancel
	}
	effects := c.applyLocked(e)
	analyze := false
	for _, eff := range effects {
		switch eff {
		case effectTeardown:
			c.teardownLocked()
		case effectAnalyze:
			analyze = true
		}
	}
	log := c.log
	c.mu.Unlock()

	if !analyze {
		return nil
	}
	return c.analyze(ctx, log)
}

// Cancel tears down any active session without generating feedback. Safe to
// call from any state, including a session that never fully established; it
// never returns an error because the caller is already on the way out.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, eff := range c.applyLocked(EventCancel) {
		if eff == effectTeardown {
			c.teardownLocked()
		}
	}
}

// Reset returns a terminal state (feedback or error) to idle so a new
// session can be started. No-op in any other state.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyLocked(EventReset)
	if c.state == StateIdle {
		c.err = nil
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error that put the controller into [StateError], or nil.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Transcript returns an ordered snapshot of the conversation so far.
func (c *Controller) Transcript() []transcript.Message {
	c.mu.Lock()
	log := c.log
	c.mu.Unlock()
	return log.Snapshot()
}

// Feedback returns the generated feedback text. Empty unless the controller
// is in [StateFeedback].
func (c *Controller) Feedback() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fb
}

// applyLocked advances the state machine. Caller holds c.mu.
func (c *Controller) applyLocked(e Event) []effect {
	next, effects := transition(c.state, e, c.interview)
	if next != c.state {
		c.logger.Debug("session state change", "from", c.state, "to", next, "event", e)
		c.state = next
	}
	return effects
}

// fail routes an establishment or transport failure through the state
// machine and records it.
func (c *Controller) fail(e Event, err error, kind string) {
	c.mu.Lock()
	for _, eff := range c.applyLocked(e) {
		if eff == effectTeardown {
			c.teardownLocked()
		}
	}
	if c.state == StateError && c.err == nil {
		c.err = err
	}
	c.mu.Unlock()

	c.metrics.RecordSessionError(context.Background(), kind)
	c.logger.Error("session failed", "kind", kind, "error", err)
}

// teardownLocked releases the capture pipeline, session handle and playback
// output. Best effort: cleanup failures are logged and swallowed because the
// caller is past the point of retrying them. Idempotent. Caller holds c.mu.
func (c *Controller) teardownLocked() {
	ctx := context.Background()

	if c.cap != nil {
		if err := c.cap.Close(); err != nil {
			c.logger.Warn("closing capture pipeline", "error", err)
		}
		if n := c.cap.Dropped(); n > 0 {
			c.metrics.CaptureDropped.Add(ctx, n)
		}
		c.cap = nil
	}
	if c.sess != nil {
		if err := c.sess.Close(); err != nil {
			c.logger.Warn("closing live session", "error", err)
		}
		c.sess = nil
	}
	c.sched.Interrupt()
	if err := c.sched.Close(); err != nil {
		c.logger.Warn("closing playback output", "error", err)
	}

	if !c.started.IsZero() {
		c.metrics.ActiveSessions.Add(ctx, -1)
		c.metrics.SessionDuration.Record(ctx, time.Since(c.started).Seconds())
		c.started = time.Time{}
	}
}

// analyze runs the one-shot feedback request after real-time teardown.
func (c *Controller) analyze(ctx context.Context, log *transcript.Log) error {
	var job feedback.Job
	if c.flow.Job != nil {
		job = feedback.Job{
			Title:       c.flow.Job.Title,
			Company:     c.flow.Job.Company,
			Description: c.flow.Job.Description,
		}
	}

	start := time.Now()
	text, err := c.coach.Generate(ctx, job, log.Render())
	c.metrics.AnalysisDuration.Record(ctx, time.Since(start).Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.applyLocked(EventAnalysisFailed)
		c.err = fmt.Errorf("%w: %v", ErrAnalysis, err)
		c.metrics.AnalysisErrors.Add(ctx, 1)
		return c.err
	}
	c.fb = text
	c.applyLocked(EventAnalysisSucceeded)
	return nil
}

// sendLoop forwards encoded microphone frames to the session until the
// capture channel closes. A send error means the session is gone; the cause
// surfaces through the audio loop, so the remaining frames are just drained
// to keep the capture pipeline from backing up during teardown.
func (c *Controller) sendLoop(sess live.SessionHandle, pipe *capture.Pipeline) {
	for frame := range pipe.Frames() {
		if err := sess.Send(frame); err != nil {
			c.logger.Warn("sending capture frame", "error", err)
			audio.Drain(pipe.Frames())
			return
		}
		c.metrics.CaptureFrames.Add(context.Background(), 1)
	}
}

// audioLoop schedules inbound model speech for playback. The audio channel
// closing marks the end of the session; if the controller still expected it
// to be active, that is a transport failure.
func (c *Controller) audioLoop(sess live.SessionHandle) {
	for pcm := range sess.Audio() {
		buf, err := audio.DecodePCM16(pcm, audio.PlaybackRate, 1)
		if err != nil {
			c.logger.Warn("decoding inbound audio", "error", err)
			continue
		}
		if err := c.sched.Schedule(buf); err != nil {
			c.logger.Warn("scheduling playback", "error", err)
			continue
		}
		c.metrics.PlaybackScheduled.Add(context.Background(), 1)
	}
	c.onSessionEnded(sess)
}

func (c *Controller) transcriptLoop(sess live.SessionHandle, log *transcript.Log) {
	for ev := range sess.Transcripts() {
		log.Append(ev)
	}
}

// turnLoop reacts to turn boundaries: an interruption flushes queued
// playback so the model stops talking immediately, and a completed turn is
// checked against the flow's closing phrase to auto-stop the session.
func (c *Controller) turnLoop(sess live.SessionHandle, log *transcript.Log) {
	for ev := range sess.Turns() {
		switch ev {
		case live.TurnInterrupted:
			c.sched.Interrupt()
			c.metrics.PlaybackInterrupts.Add(context.Background(), 1)
		case live.TurnComplete:
			if c.detector == nil {
				continue
			}
			last, ok := log.Last()
			if !ok || last.Speaker != audio.SpeakerRemote {
				continue
			}
			if c.detector.Match(last.Text) {
				c.logger.Info("closing phrase detected, ending session", "flow", c.flow.Name)
				// Stop runs the analysis request; never block the turn pump on it.
				go func() {
					if err := c.Stop(context.Background()); err != nil {
						c.logger.Error("auto-stop", "error", err)
					}
				}()
			}
		}
	}
}

// onSessionEnded handles the remote side going away. A close or error while
// the controller still expected the session to be active is terminal.
func (c *Controller) onSessionEnded(sess live.SessionHandle) {
	c.mu.Lock()
	if !c.state.Active() || c.sess != sess {
		c.mu.Unlock()
		return
	}
	cause := sess.Err()
	if cause == nil {
		cause = errors.New("remote closed the session")
	}
	c.err = fmt.Errorf("%w: %v", ErrTransport, cause)
	for _, eff := range c.applyLocked(EventTransportError) {
		if eff == effectTeardown {
			c.teardownLocked()
		}
	}
	c.mu.Unlock()

	c.metrics.RecordSessionError(context.Background(), "transport")
	c.logger.Error("session ended unexpectedly", "error", cause)
}
