package store

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a presentation in the pipeline.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRendering  Status = "rendering"
	StatusRendered   Status = "rendered"
	StatusGenerating Status = "generating"
	StatusGenerated  Status = "generated"
	StatusComposing  Status = "composing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// DaemonStopReason is the error message set when items are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusRendering,
	StatusRendered,
	StatusGenerating,
	StatusGenerated,
	StatusComposing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusRendering:  {},
	StatusGenerating: {},
	StatusComposing:  {},
}

// stageRollbackTransitions map each processing status back to the start of
// its stage, used when reclaiming stuck presentations.
var stageRollbackTransitions = map[Status]Status{
	StatusRendering:  StatusPending,
	StatusGenerating: StatusRendered,
	StatusComposing:  StatusGenerated,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// Presentation represents a registered slide deck moving through the
// pipeline, persisted in SQLite.
type Presentation struct {
	ID              int64
	Title           string
	SourcePath      string
	Fingerprint     string
	SlideCount      int
	Status          Status
	ErrorMessage    string
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	IntroVideoURL   string
	FinalVideoURL   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastHeartbeat   *time.Time
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (p Presentation) IsProcessing() bool {
	return IsProcessingStatus(p.Status)
}

// SetProgress updates all three progress fields together.
func (p *Presentation) SetProgress(stage, message string, percent float64) {
	p.ProgressStage = stage
	p.ProgressMessage = message
	p.ProgressPercent = percent
}

// SetFailed marks the presentation as failed with the given error message.
func (p *Presentation) SetFailed(message string) {
	p.Status = StatusFailed
	p.ErrorMessage = message
	p.ProgressStage = "Failed"
	p.ProgressPercent = 0
	p.ProgressMessage = message
	p.LastHeartbeat = nil
}

// SlideNarrative holds the narration artifacts for a single slide. Rows are
// append-only per check run; the latest row per slide wins.
type SlideNarrative struct {
	ID             int64
	PresentationID int64
	SlideNumber    int
	NarrativeText  string
	EnhancedText   string
	AudioURL       string
	AvatarVideoURL string
	AvatarJobID    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IntroVideo holds presentation-level intro video state. Rows are
// append-only; the latest row per presentation wins.
type IntroVideo struct {
	ID             int64
	PresentationID int64
	JobID          string
	VideoURL       string
	Generating     bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
