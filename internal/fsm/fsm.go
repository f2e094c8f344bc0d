// Package fsm tracks the state of one pipeline run. Transitions are pure;
// the orchestrator owns the current state and applies events as stages
// complete.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle         State = "idle"
	StateRecording    State = "recording"
	StateTranscribing State = "transcribing"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

const (
	// EventStart begins a capture session.
	EventStart Event = "start"
	// EventSubmit hands an existing file straight to transcription.
	EventSubmit Event = "submit"
	// EventCaptured finalizes the recording and moves on to transcription.
	EventCaptured Event = "captured"
	// EventSaved ends a record-only run with the artifact kept.
	EventSaved Event = "saved"
	EventTranscribed Event = "transcribed"
	EventFail        Event = "fail"
)

// Transition applies event to current. Done and Failed are terminal: no
// event, including EventFail, leaves them.
func Transition(current State, event Event) (State, error) {
	if current == StateDone || current == StateFailed {
		return current, invalidTransition(current, event)
	}
	if event == EventFail {
		return StateFailed, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateRecording, nil
		case EventSubmit:
			return StateTranscribing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventCaptured:
			return StateTranscribing, nil
		case EventSaved:
			return StateDone, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateTranscribing:
		switch event {
		case EventTranscribed:
			return StateDone, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
