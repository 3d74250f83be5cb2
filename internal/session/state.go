// Package session coordinates one live voice conversation: it owns the
// capture pipeline, the remote session handle and the playback scheduler,
// accumulates the transcript, and runs the post-session analysis for
// interview flows.
//
// The lifecycle is an explicit state machine. All transitions go through
// [transition], a pure function from (state, event) to (next state, effect
// list); the [Controller] interprets the effects. This keeps the transition
// table exhaustively testable without touching hardware or network.
package session

// State is the lifecycle phase of a controller.
type State int

const (
	// StateIdle means no session is active. The only state Start accepts.
	StateIdle State = iota

	// StateConnecting means the microphone has been requested and the
	// remote session is being established.
	StateConnecting

	// StateListening is the active state of a plain conversation flow.
	StateListening

	// StateInterviewing is the active state of an interview flow; stopping
	// from here triggers transcript analysis.
	StateInterviewing

	// StateAnalyzing means real-time paths are torn down and the feedback
	// request is in flight.
	StateAnalyzing

	// StateFeedback means analysis succeeded and the feedback text is held
	// for display. Terminal until Reset.
	StateFeedback

	// StateError means the session ended with an error. Terminal until
	// Reset.
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateListening:
		return "listening"
	case StateInterviewing:
		return "interviewing"
	case StateAnalyzing:
		return "analyzing"
	case StateFeedback:
		return "feedback"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Active reports whether a live conversation is in progress or being set up.
func (s State) Active() bool {
	switch s {
	case StateConnecting, StateListening, StateInterviewing:
		return true
	}
	return false
}

// Event is an input to the state machine.
type Event int

const (
	// EventStart is a user-initiated session start.
	EventStart Event = iota

	// EventConnected means the remote session is open and the microphone
	// is live.
	EventConnected

	// EventStop is a user-initiated (or closing-phrase-initiated) stop.
	EventStop

	// EventCancel is an external teardown: screen unmount, process
	// shutdown. Never produces feedback.
	EventCancel

	// EventMicDenied means microphone access failed during establishment.
	EventMicDenied

	// EventTransportError means the remote session errored or closed while
	// the controller still expected it to be active.
	EventTransportError

	// EventAnalysisSucceeded and EventAnalysisFailed report the outcome of
	// the feedback request.
	EventAnalysisSucceeded
	EventAnalysisFailed

	// EventReset returns a terminal state to idle so a new session can be
	// started.
	EventReset
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventConnected:
		return "connected"
	case EventStop:
		return "stop"
	case EventCancel:
		return "cancel"
	case EventMicDenied:
		return "mic_denied"
	case EventTransportError:
		return "transport_error"
	case EventAnalysisSucceeded:
		return "analysis_succeeded"
	case EventAnalysisFailed:
		return "analysis_failed"
	case EventReset:
		return "reset"
	}
	return "unknown"
}

// effect is a side effect the controller must perform after a transition.
type effect int

const (
	// effectConnect acquires the microphone and opens the remote session.
	effectConnect effect = iota

	// effectWire starts the pump goroutines between capture, session,
	// scheduler and transcript.
	effectWire

	// effectTeardown closes the session handle, capture pipeline and
	// playback output. Best effort, never fails the transition.
	effectTeardown

	// effectAnalyze runs the one-shot feedback request. Always ordered
	// after effectTeardown.
	effectAnalyze
)

// transition computes the next state and effect list for an event. interview
// selects the interview flow variant: Connected lands in StateInterviewing
// and Stop routes through analysis instead of straight back to idle.
//
// Unlisted (state, event) pairs are no-ops: the state is returned unchanged
// with no effects. This is what makes a second Stop during StateAnalyzing
// safe, and teardown signals arriving after teardown harmless.
func transition(s State, e Event, interview bool) (State, []effect) {
	switch s {
	case StateIdle:
		if e == EventStart {
			return StateConnecting, []effect{effectConnect}
		}

	case StateConnecting:
		switch e {
		case EventConnected:
			if interview {
				return StateInterviewing, []effect{effectWire}
			}
			return StateListening, []effect{effectWire}
		case EventMicDenied, EventTransportError:
			return StateError, []effect{effectTeardown}
		case EventStop, EventCancel:
			return StateIdle, []effect{effectTeardown}
		}

	case StateListening:
		switch e {
		case EventStop, EventCancel:
			return StateIdle, []effect{effectTeardown}
		case EventTransportError:
			return StateError, []effect{effectTeardown}
		}

	case StateInterviewing:
		switch e {
		case EventStop:
			return StateAnalyzing, []effect{effectTeardown, effectAnalyze}
		case EventCancel:
			return StateIdle, []effect{effectTeardown}
		case EventTransportError:
			return StateError, []effect{effectTeardown}
		}

	case StateAnalyzing:
		switch e {
		case EventAnalysisSucceeded:
			return StateFeedback, nil
		case EventAnalysisFailed:
			return StateError, nil
		}

	case StateFeedback, StateError:
		if e == EventReset {
			return StateIdle, nil
		}
	}

	return s, nil
}
