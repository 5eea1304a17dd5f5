package preflight

// aspectRule describes how a single aspect status folds into the overall
// verdict. Mandatory aspects escalate missing or failed assets to
// INCOMPLETE; optional ones only ever raise warnings.
type aspectRule struct {
	status    AspectStatus
	mandatory bool
}

// foldAspect maps one aspect status onto its overall contribution.
func foldAspect(r aspectRule) OverallStatus {
	switch r.status {
	case StatusPassed, StatusNotApplicable:
		return OverallReady
	case StatusWarning, StatusInProgress:
		return OverallHasWarnings
	case StatusFailed, StatusNotFound:
		if r.mandatory {
			return OverallIncomplete
		}
		return OverallHasWarnings
	default:
		return OverallError
	}
}

// ComputeOverall folds every per-slide aspect and the presentation-level
// intro aspect into one verdict. Pure function of its inputs: precedence
// is ERROR > INCOMPLETE > HAS_WARNINGS > READY, and NOT_APPLICABLE
// aspects never influence the result.
func ComputeOverall(slides []SlideCheckResult, presentation *PresentationCheckResult, enhancedMandatory bool) OverallStatus {
	overall := OverallReady
	for _, slide := range slides {
		rules := []aspectRule{
			{status: slide.Narrative, mandatory: true},
			{status: slide.EnhancedNarrative, mandatory: enhancedMandatory},
			{status: slide.Audio, mandatory: true},
			{status: slide.AvatarVideo, mandatory: true},
		}
		for _, rule := range rules {
			overall = worse(overall, foldAspect(rule))
		}
	}
	if presentation != nil {
		overall = worse(overall, foldAspect(aspectRule{status: presentation.IntroVideo, mandatory: true}))
	}
	return overall
}

// summarize tallies the counters shown by the CLI status views.
func summarize(slides []SlideCheckResult, presentation *PresentationCheckResult) Summary {
	summary := Summary{TotalSlides: len(slides), IntroVideoStatus: StatusNotApplicable}
	for _, slide := range slides {
		ready := true
		for _, status := range []AspectStatus{slide.Narrative, slide.EnhancedNarrative, slide.Audio, slide.AvatarVideo} {
			switch status {
			case StatusWarning:
				summary.Warnings++
				ready = false
			case StatusInProgress:
				summary.InProgress++
				ready = false
			case StatusPassed, StatusNotApplicable:
			default:
				ready = false
			}
		}
		if slide.Narrative == StatusNotFound {
			summary.NarrativesMissing++
		}
		if slide.EnhancedNarrative == StatusNotFound {
			summary.EnhancedMissing++
		}
		if slide.Audio == StatusNotFound {
			summary.AudioMissing++
		}
		if slide.AvatarVideo == StatusNotFound || slide.AvatarVideo == StatusFailed {
			summary.AvatarsMissing++
		}
		if ready {
			summary.SlidesReady++
		}
	}
	if presentation != nil {
		summary.IntroVideoStatus = presentation.IntroVideo
		if presentation.IntroVideo == StatusWarning {
			summary.Warnings++
		}
		if presentation.IntroVideo == StatusInProgress {
			summary.InProgress++
		}
	}
	return summary
}
