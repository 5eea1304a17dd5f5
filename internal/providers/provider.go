package providers

import (
	"context"
	"strings"
)

// Type is the closed enumeration of video provider kinds used as the
// registry key.
type Type string

const (
	TypeComposer   Type = "composer"
	TypeGenerative Type = "generative"
)

// ParseType converts a string into a known provider Type.
func ParseType(value string) (Type, bool) {
	switch Type(strings.ToLower(strings.TrimSpace(value))) {
	case TypeComposer:
		return TypeComposer, true
	case TypeGenerative:
		return TypeGenerative, true
	default:
		return "", false
	}
}

// Status is a provider-normalized external job status.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the external system considers the job done.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Request carries the parameters for one unit of external work.
type Request struct {
	PresentationID int64
	SlideNumber    int
	Kind           string
	Script         string
	AudioURL       string
	ImageURLs      []string
	Params         map[string]string
}

// PollResult is one observation of an external job.
type PollResult struct {
	Status       Status
	Progress     float64
	ResultURL    string
	ErrorMessage string
}

// Provider is implemented once per external video service.
type Provider interface {
	// Type returns the registry key this provider is indexed under.
	Type() Type
	// Submit sends the request to the external service and returns the
	// opaque external job identifier.
	Submit(ctx context.Context, req Request) (string, error)
	// Poll fetches the current external status for a submitted job.
	Poll(ctx context.Context, externalID string) (PollResult, error)
	// Cancel asks the external service to stop a job. Best effort; the
	// tracker records intent regardless of the outcome.
	Cancel(ctx context.Context, externalID string) error
	// HealthCheck verifies the service is reachable and configured.
	HealthCheck(ctx context.Context) error
}
