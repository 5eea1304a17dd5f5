package preflight

import (
	"strings"
	"time"
)

// AspectStatus is the outcome of one independent per-aspect check.
type AspectStatus string

const (
	StatusPassed        AspectStatus = "passed"
	StatusFailed        AspectStatus = "failed"
	StatusWarning       AspectStatus = "warning"
	StatusNotApplicable AspectStatus = "not_applicable"
	StatusInProgress    AspectStatus = "in_progress"
	StatusNotFound      AspectStatus = "not_found"
)

// OverallStatus is the aggregate readiness verdict.
type OverallStatus string

const (
	OverallReady       OverallStatus = "ready"
	OverallIncomplete  OverallStatus = "incomplete"
	OverallHasWarnings OverallStatus = "has_warnings"
	OverallError       OverallStatus = "error"
)

// rank orders overall statuses by precedence, highest first.
// ERROR > INCOMPLETE > HAS_WARNINGS > READY.
var rank = map[OverallStatus]int{
	OverallError:       3,
	OverallIncomplete:  2,
	OverallHasWarnings: 1,
	OverallReady:       0,
}

// worse returns the higher-precedence of two overall statuses.
func worse(a, b OverallStatus) OverallStatus {
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// SlideCheckResult holds the four independent per-aspect statuses for one
// slide. Immutable once computed for a check run.
type SlideCheckResult struct {
	SlideNumber       int
	Narrative         AspectStatus
	EnhancedNarrative AspectStatus
	Audio             AspectStatus
	AvatarVideo       AspectStatus
	Issues            []string
	Metadata          map[string]string
}

// PresentationCheckResult holds the intro video aspect at presentation
// granularity. Structurally a sibling of SlideCheckResult.
type PresentationCheckResult struct {
	IntroVideo AspectStatus
	Issues     []string
	Metadata   map[string]string
}

// Summary carries aggregate counters derived from all check results,
// computed fresh each run.
type Summary struct {
	TotalSlides       int
	SlidesReady       int
	NarrativesMissing int
	EnhancedMissing   int
	AudioMissing      int
	AvatarsMissing    int
	Warnings          int
	InProgress        int
	IntroVideoStatus  AspectStatus
}

// Report is the outcome of one preflight run.
type Report struct {
	PresentationID int64
	RunID          string
	Overall        OverallStatus
	Slides         []SlideCheckResult
	Presentation   *PresentationCheckResult
	Summary        Summary
	Error          string
	CheckedAt      time.Time
}

// ParseOverall converts a string into a known OverallStatus.
func ParseOverall(value string) (OverallStatus, bool) {
	switch OverallStatus(strings.ToLower(strings.TrimSpace(value))) {
	case OverallReady:
		return OverallReady, true
	case OverallIncomplete:
		return OverallIncomplete, true
	case OverallHasWarnings:
		return OverallHasWarnings, true
	case OverallError:
		return OverallError, true
	default:
		return "", false
	}
}
