package preflight

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"slidecast/internal/config"
	"slidecast/internal/generation"
	"slidecast/internal/logging"
	"slidecast/internal/services"
	"slidecast/internal/store"
)

// Checker runs readiness audits against persisted presentation state.
// Each run reads one snapshot of the store and computes the verdict from
// that snapshot alone.
type Checker struct {
	store  *store.Store
	cfg    config.Preflight
	logger *slog.Logger
	now    func() time.Time
}

// NewChecker builds a checker backed by the given store.
func NewChecker(st *store.Store, cfg config.Preflight, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Checker{
		store:  st,
		cfg:    cfg,
		logger: logger.With(logging.String(logging.FieldComponent, "preflight")),
		now:    time.Now,
	}
}

// Run audits one presentation and returns a fresh report. checkIntroVideo
// overrides the configured default for this run only; pass the configured
// value to keep the default behavior. A storage failure yields an ERROR
// report rather than a partial verdict.
func (c *Checker) Run(ctx context.Context, presentationID int64, checkIntroVideo bool) (*Report, error) {
	report := &Report{
		PresentationID: presentationID,
		RunID:          uuid.NewString(),
		CheckedAt:      c.now().UTC(),
	}

	pres, err := c.store.GetPresentation(ctx, presentationID)
	if err != nil {
		return c.errorReport(report, services.Wrap(services.ErrExternalService, "preflight", "run", "load presentation", err))
	}
	if pres == nil {
		return c.errorReport(report, services.Wrap(services.ErrNotFound, "preflight", "run",
			fmt.Sprintf("presentation %d not found", presentationID), nil))
	}

	narratives, err := c.store.LatestNarratives(ctx, presentationID)
	if err != nil {
		return c.errorReport(report, services.Wrap(services.ErrExternalService, "preflight", "run", "load narratives", err))
	}
	bySlide := make(map[int]*store.SlideNarrative, len(narratives))
	for _, narrative := range narratives {
		bySlide[narrative.SlideNumber] = narrative
	}

	slideCount := pres.SlideCount
	if slideCount == 0 {
		slideCount = len(narratives)
	}

	for slideNumber := 1; slideNumber <= slideCount; slideNumber++ {
		result, err := c.checkSlide(ctx, presentationID, slideNumber, bySlide[slideNumber])
		if err != nil {
			return c.errorReport(report, err)
		}
		report.Slides = append(report.Slides, result)
	}

	if checkIntroVideo {
		presResult, err := c.checkIntro(ctx, presentationID)
		if err != nil {
			return c.errorReport(report, err)
		}
		report.Presentation = presResult
	}

	report.Overall = ComputeOverall(report.Slides, report.Presentation, c.cfg.EnhancedNarrativeMandatory)
	report.Summary = summarize(report.Slides, report.Presentation)

	c.logger.Info("preflight run finished",
		logging.Int64(logging.FieldPresentationID, presentationID),
		logging.String(logging.FieldRequestID, report.RunID),
		logging.String("overall", string(report.Overall)),
		logging.Int("slides", len(report.Slides)))
	return report, nil
}

// errorReport finalizes a report whose run could not complete. The error
// precedence rule means any storage failure dominates the verdict.
func (c *Checker) errorReport(report *Report, err error) (*Report, error) {
	report.Overall = OverallError
	report.Error = err.Error()
	c.logger.Error("preflight run failed",
		logging.Int64(logging.FieldPresentationID, report.PresentationID),
		logging.String(logging.FieldRequestID, report.RunID),
		logging.Error(err))
	return report, err
}

// checkSlide derives the four per-slide aspect statuses from the latest
// persisted narrative row and, when the avatar asset is absent, the latest
// avatar job for the slide.
func (c *Checker) checkSlide(ctx context.Context, presentationID int64, slideNumber int, narrative *store.SlideNarrative) (SlideCheckResult, error) {
	result := SlideCheckResult{
		SlideNumber: slideNumber,
		Metadata:    map[string]string{},
	}
	if narrative == nil {
		result.Narrative = StatusNotFound
		result.EnhancedNarrative = c.missingEnhancedStatus()
		result.Audio = StatusNotFound
		result.AvatarVideo = StatusNotFound
		result.Issues = append(result.Issues, "no narrative row recorded for slide")
		return result, nil
	}

	if strings.TrimSpace(narrative.NarrativeText) != "" {
		result.Narrative = StatusPassed
	} else {
		result.Narrative = StatusNotFound
		result.Issues = append(result.Issues, "narrative text missing")
	}

	if strings.TrimSpace(narrative.EnhancedText) != "" {
		result.EnhancedNarrative = StatusPassed
	} else {
		result.EnhancedNarrative = c.missingEnhancedStatus()
		result.Issues = append(result.Issues, "enhanced narrative missing")
	}

	if strings.TrimSpace(narrative.AudioURL) != "" {
		result.Audio = StatusPassed
		result.Metadata["audio_url"] = narrative.AudioURL
	} else {
		result.Audio = StatusNotFound
		result.Issues = append(result.Issues, "audio missing")
	}

	avatar, issues, err := c.videoAspect(ctx, presentationID, generation.KindAvatar, slideNumber, narrative.AvatarVideoURL, result.Metadata)
	if err != nil {
		return result, err
	}
	result.AvatarVideo = avatar
	result.Issues = append(result.Issues, issues...)
	return result, nil
}

// checkIntro derives the presentation-level intro video aspect.
func (c *Checker) checkIntro(ctx context.Context, presentationID int64) (*PresentationCheckResult, error) {
	result := &PresentationCheckResult{Metadata: map[string]string{}}

	intro, err := c.store.LatestIntroVideo(ctx, presentationID)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "preflight", "run", "load intro video", err)
	}
	videoURL := ""
	if intro != nil {
		videoURL = intro.VideoURL
	}
	status, issues, err := c.videoAspect(ctx, presentationID, generation.KindIntro, 0, videoURL, result.Metadata)
	if err != nil {
		return nil, err
	}
	result.IntroVideo = status
	result.Issues = issues
	return result, nil
}

// videoAspect folds a generated-video asset and its job history into one
// aspect status. A persisted URL always wins; otherwise the latest job for
// the kind decides between in-flight, warning, failed, and missing.
func (c *Checker) videoAspect(ctx context.Context, presentationID int64, kind generation.Kind, slideNumber int, videoURL string, metadata map[string]string) (AspectStatus, []string, error) {
	label := string(kind) + " video"
	if strings.TrimSpace(videoURL) != "" {
		metadata[string(kind)+"_video_url"] = videoURL
		return StatusPassed, nil, nil
	}

	job, err := c.store.LatestJobForKind(ctx, presentationID, kind, slideNumber)
	if err != nil {
		return "", nil, services.Wrap(services.ErrExternalService, "preflight", "run", "load "+label+" job", err)
	}
	if job == nil {
		return StatusNotFound, []string{label + " missing"}, nil
	}

	metadata[string(kind)+"_job_id"] = job.ID
	switch job.State {
	case generation.StatePending, generation.StateProcessing:
		return StatusInProgress, []string{label + " generation in progress"}, nil
	case generation.StateCompleted:
		if strings.TrimSpace(job.ResultURL) != "" {
			metadata[string(kind)+"_video_url"] = job.ResultURL
			return StatusPassed, nil, nil
		}
		// Job annotation survives into the report so operators can tell a
		// not-published completion from a clean pass.
		issue := label + " " + generation.AnnotationNotPublished
		if job.Annotation != "" {
			issue = fmt.Sprintf("%s %s", label, job.Annotation)
		}
		return StatusWarning, []string{issue}, nil
	case generation.StateFailed:
		issue := label + " generation failed"
		if job.ErrorMessage != "" {
			issue = fmt.Sprintf("%s generation failed: %s", label, job.ErrorMessage)
		}
		return StatusFailed, []string{issue}, nil
	case generation.StateCancelled:
		return StatusNotFound, []string{label + " generation cancelled"}, nil
	default:
		return StatusNotFound, []string{label + " in unknown state " + string(job.State)}, nil
	}
}

// missingEnhancedStatus maps an absent enhanced narrative onto the
// configured policy.
func (c *Checker) missingEnhancedStatus() AspectStatus {
	if c.cfg.EnhancedNarrativeMandatory {
		return StatusNotFound
	}
	return StatusWarning
}
