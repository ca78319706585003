// session.go capture session lifecycle
package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/birdfeeder-go/internal/errors"
)

// State is a capture session's position in the pipeline. States only ever
// advance; a session never re-enters an earlier state.
type State int

const (
	StateCapturingStill State = iota
	StateRecordingVideo
	StateClassifying
	StateFinalized
)

// String returns a log-friendly name for the state.
func (s State) String() string {
	switch s {
	case StateCapturingStill:
		return "capturing-still"
	case StateRecordingVideo:
		return "recording-video"
	case StateClassifying:
		return "classifying"
	case StateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Session is the unit of work spanning one motion event through finalized
// artifacts. The controller is its sole owner and mutator; at most one
// session exists at a time.
type Session struct {
	ID        string
	Start     time.Time
	StillPath string
	VideoPath string
	state     State
}

// newSession creates a session for a motion event observed at start.
func newSession(start time.Time) *Session {
	return &Session{
		ID:    uuid.New().String(),
		Start: start,
		state: StateCapturingStill,
	}
}

// State returns the session's current state.
func (s *Session) State() State {
	return s.state
}

// advance moves the session to a later state. Moving backwards or staying
// put is a controller bug and is rejected.
func (s *Session) advance(to State) error {
	if to <= s.state {
		return errors.Newf("session state may not regress from %s to %s", s.state, to).
			Component("pipeline").
			Category(errors.CategoryState).
			SessionContext(s.ID).
			Build()
	}
	s.state = to
	return nil
}
