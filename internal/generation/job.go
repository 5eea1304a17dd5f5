package generation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// State represents the lifecycle of a generation job.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// Kind identifies the class of work a job performs. Timeouts differ per kind.
type Kind string

const (
	KindAvatar Kind = "avatar"
	KindIntro  Kind = "intro"
	KindRender Kind = "render"
)

// AnnotationNotPublished marks a job the external system reported complete
// without a usable result locator. The aggregator surfaces it as a warning
// instead of a clean pass.
const AnnotationNotPublished = "generated but not published"

// ErrInvalidTransition is returned when a state change violates the
// transition table.
var ErrInvalidTransition = errors.New("invalid job transition")

var allStates = []State{StatePending, StateProcessing, StateCompleted, StateFailed, StateCancelled}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

// transitions is the exhaustive table of permitted state changes. Terminal
// states have no outgoing edges.
var transitions = map[State]map[State]struct{}{
	StatePending: {
		StateProcessing: {},
		StateCompleted:  {},
		StateFailed:     {},
		StateCancelled:  {},
	},
	StateProcessing: {
		StateCompleted: {},
		StateFailed:    {},
		StateCancelled: {},
	},
	StateCompleted: {},
	StateFailed:    {},
	StateCancelled: {},
}

var allKinds = []Kind{KindAvatar, KindIntro, KindRender}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stateSet[normalized]
	return normalized, ok
}

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	for _, kind := range allKinds {
		if kind == normalized {
			return normalized, true
		}
	}
	return "", false
}

// AllKinds returns the known job kinds in declaration order.
func AllKinds() []Kind {
	cp := make([]Kind, len(allKinds))
	copy(cp, allKinds)
	return cp
}

// IsTerminal reports whether the state permits no further transitions.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to State) bool {
	targets, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// Job identifies one external unit of generation work.
type Job struct {
	ID             string
	PresentationID int64
	SlideNumber    int // 0 for presentation-level jobs
	Kind           Kind
	Provider       string
	ExternalID     string
	State          State
	Progress       float64
	ResultURL      string
	ErrorMessage   string
	Annotation     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

// IsTerminal reports whether the job reached a final state.
func (j *Job) IsTerminal() bool {
	return j.State.IsTerminal()
}

// Transition moves the job to the next state, enforcing the transition
// table. Timestamps are maintained as a side effect.
func (j *Job) Transition(to State, now time.Time) error {
	if j.State == to {
		return nil
	}
	if !CanTransition(j.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.State, to)
	}
	j.State = to
	j.UpdatedAt = now
	switch to {
	case StateProcessing:
		if j.StartedAt == nil {
			started := now
			j.StartedAt = &started
		}
	case StateCompleted, StateFailed, StateCancelled:
		completed := now
		j.CompletedAt = &completed
	}
	return nil
}

// MarkCompleted records external success. A missing result locator is not
// silently treated as a clean success: the job completes with the
// not-published annotation so the distinction survives into preflight.
func (j *Job) MarkCompleted(resultURL string, now time.Time) error {
	if err := j.Transition(StateCompleted, now); err != nil {
		return err
	}
	j.ResultURL = strings.TrimSpace(resultURL)
	j.Progress = 100
	if j.ResultURL == "" {
		j.Annotation = AnnotationNotPublished
	}
	return nil
}

// MarkFailed records an external error, preserving the message verbatim.
func (j *Job) MarkFailed(message string, now time.Time) error {
	if err := j.Transition(StateFailed, now); err != nil {
		return err
	}
	j.ErrorMessage = message
	return nil
}

// MarkCancelled records operator cancellation. Cancelling an already
// terminal job is a no-op, not an error.
func (j *Job) MarkCancelled(now time.Time) error {
	if j.State.IsTerminal() {
		return nil
	}
	return j.Transition(StateCancelled, now)
}
