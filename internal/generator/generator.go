package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"slidecast/internal/config"
	"slidecast/internal/generation"
	"slidecast/internal/logging"
	"slidecast/internal/providers"
	"slidecast/internal/services"
	"slidecast/internal/stage"
	"slidecast/internal/store"
)

// SlideImageLocator resolves the rendered image for a slide.
type SlideImageLocator interface {
	SlideImagePath(presentationID int64, slideNumber int) string
}

// Generator drives avatar and intro video generation through the job tracker.
type Generator struct {
	store   *store.Store
	cfg     *config.Config
	tracker *generation.Tracker
	images  SlideImageLocator
	logger  *slog.Logger
}

// NewGenerator constructs the generation stage handler.
func NewGenerator(cfg *config.Config, st *store.Store, tracker *generation.Tracker, images SlideImageLocator, logger *slog.Logger) *Generator {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "generator"))
	} else {
		stageLogger = logging.NewNop()
	}
	return &Generator{store: st, cfg: cfg, tracker: tracker, images: images, logger: stageLogger}
}

// ReadyForWork reports whether narration has been imported for the
// presentation. Rendered presentations wait in place until it arrives.
func (g *Generator) ReadyForWork(ctx context.Context, pres *store.Presentation) (bool, string, error) {
	narratives, err := g.store.LatestNarratives(ctx, pres.ID)
	if err != nil {
		return false, "", services.Wrap(services.ErrExternalService, "generation", "load narratives",
			"Reading slide narratives failed", err)
	}
	if len(narratives) == 0 {
		return false, "no slide narratives imported yet", nil
	}
	return true, "", nil
}

func (g *Generator) Prepare(ctx context.Context, pres *store.Presentation) error {
	pres.SetProgress("Generating", "Preparing video generation", 0)
	pres.ErrorMessage = ""
	if pres.SlideCount < 1 {
		return services.Wrap(
			services.ErrValidation, "generation", "validate inputs",
			"Presentation has no rendered slides; run rendering before generation", nil)
	}
	narratives, err := g.store.LatestNarratives(ctx, pres.ID)
	if err != nil {
		return services.Wrap(services.ErrExternalService, "generation", "load narratives",
			"Reading slide narratives failed", err)
	}
	if len(narratives) == 0 {
		return services.Wrap(
			services.ErrValidation, "generation", "validate inputs",
			"No slide narratives recorded; import narration before generation", nil)
	}
	return nil
}

func (g *Generator) Execute(ctx context.Context, pres *store.Presentation) error {
	logger := g.logger.With(logging.Int64(logging.FieldPresentationID, pres.ID))

	narratives, err := g.store.LatestNarratives(ctx, pres.ID)
	if err != nil {
		return services.Wrap(services.ErrExternalService, "generation", "load narratives",
			"Reading slide narratives failed", err)
	}

	providerType, ok := providers.ParseType(g.cfg.Providers.Default)
	if !ok {
		providerType = providers.TypeGenerative
	}

	submitted := make(map[string]*store.SlideNarrative)
	for _, narrative := range narratives {
		if strings.TrimSpace(narrative.AvatarVideoURL) != "" {
			continue
		}
		if strings.TrimSpace(narrative.AudioURL) == "" {
			logger.Warn("skipping slide without audio",
				logging.Int(logging.FieldSlideNumber, narrative.SlideNumber))
			continue
		}
		req := providers.Request{
			PresentationID: pres.ID,
			SlideNumber:    narrative.SlideNumber,
			Kind:           string(generation.KindAvatar),
			Script:         narrative.NarrativeText,
			AudioURL:       narrative.AudioURL,
			Params:         map[string]string{"avatar_id": g.cfg.Providers.Generative.AvatarID},
		}
		if g.images != nil {
			req.ImageURLs = []string{g.images.SlideImagePath(pres.ID, narrative.SlideNumber)}
		}
		job, err := g.tracker.Submit(ctx, providerType, generation.KindAvatar, req)
		if err != nil {
			return services.Wrap(services.ErrExternalService, "generation", "submit avatar job",
				fmt.Sprintf("Submitting avatar job for slide %d failed", narrative.SlideNumber), err)
		}
		narrative.AvatarJobID = job.ID
		if err := g.store.UpdateSlideNarrative(ctx, narrative); err != nil {
			return services.Wrap(services.ErrExternalService, "generation", "persist job id",
				fmt.Sprintf("Recording avatar job for slide %d failed", narrative.SlideNumber), err)
		}
		submitted[job.ID] = narrative
	}

	introJobID, err := g.submitIntro(ctx, pres, providerType)
	if err != nil {
		return err
	}

	total := len(submitted)
	if introJobID != "" {
		total++
	}
	done := 0
	for jobID, narrative := range submitted {
		job, err := g.tracker.Await(ctx, jobID)
		if err != nil {
			return services.Wrap(services.ErrExternalService, "generation", "await avatar job",
				fmt.Sprintf("Waiting on avatar job for slide %d failed", narrative.SlideNumber), err)
		}
		if job.State != generation.StateCompleted {
			return services.Wrap(services.ErrExternalService, "generation", "avatar job",
				fmt.Sprintf("Avatar generation for slide %d %s: %s", narrative.SlideNumber, job.State, job.ErrorMessage), nil)
		}
		narrative.AvatarVideoURL = job.ResultURL
		if err := g.store.UpdateSlideNarrative(ctx, narrative); err != nil {
			return services.Wrap(services.ErrExternalService, "generation", "persist avatar video",
				fmt.Sprintf("Recording avatar video for slide %d failed", narrative.SlideNumber), err)
		}
		done++
		pres.SetProgress("Generating",
			fmt.Sprintf("Generated %d of %d videos", done, total),
			float64(done)/float64(total)*100)
	}

	if introJobID != "" {
		if err := g.awaitIntro(ctx, pres, introJobID); err != nil {
			return err
		}
		done++
	}

	pres.SetProgress("Generating", "Video generation complete", 100)
	logger.Info("generation finished", logging.Int("jobs", total))
	return nil
}

func (g *Generator) HealthCheck(ctx context.Context) stage.Health {
	if g.tracker == nil {
		return stage.Unhealthy("generator", "job tracker not configured")
	}
	return stage.Healthy("generator")
}

// submitIntro kicks off the presentation-level intro job unless one already
// produced a video or the check is disabled.
func (g *Generator) submitIntro(ctx context.Context, pres *store.Presentation, providerType providers.Type) (string, error) {
	if !g.cfg.Preflight.CheckIntroVideo {
		return "", nil
	}
	existing, err := g.store.LatestIntroVideo(ctx, pres.ID)
	if err != nil {
		return "", services.Wrap(services.ErrExternalService, "generation", "load intro video",
			"Reading intro video state failed", err)
	}
	if existing != nil && strings.TrimSpace(existing.VideoURL) != "" {
		return "", nil
	}

	job, err := g.tracker.Submit(ctx, providerType, generation.KindIntro, providers.Request{
		PresentationID: pres.ID,
		Kind:           string(generation.KindIntro),
		Script:         pres.Title,
		Params:         map[string]string{"avatar_id": g.cfg.Providers.Generative.AvatarID},
	})
	if err != nil {
		return "", services.Wrap(services.ErrExternalService, "generation", "submit intro job",
			"Submitting intro video job failed", err)
	}
	if _, err := g.store.SaveIntroVideo(ctx, &store.IntroVideo{
		PresentationID: pres.ID,
		JobID:          job.ID,
		Generating:     true,
	}); err != nil {
		return "", services.Wrap(services.ErrExternalService, "generation", "persist intro job",
			"Recording intro video job failed", err)
	}
	return job.ID, nil
}

func (g *Generator) awaitIntro(ctx context.Context, pres *store.Presentation, jobID string) error {
	job, err := g.tracker.Await(ctx, jobID)
	if err != nil {
		return services.Wrap(services.ErrExternalService, "generation", "await intro job",
			"Waiting on intro video job failed", err)
	}
	if job.State != generation.StateCompleted {
		return services.Wrap(services.ErrExternalService, "generation", "intro job",
			fmt.Sprintf("Intro video generation %s: %s", job.State, job.ErrorMessage), nil)
	}
	intro, err := g.store.LatestIntroVideo(ctx, pres.ID)
	if err != nil || intro == nil {
		return services.Wrap(services.ErrExternalService, "generation", "load intro video",
			"Reading intro video state failed", err)
	}
	intro.VideoURL = job.ResultURL
	intro.Generating = false
	if err := g.store.UpdateIntroVideo(ctx, intro); err != nil {
		return services.Wrap(services.ErrExternalService, "generation", "persist intro video",
			"Recording intro video failed", err)
	}
	pres.IntroVideoURL = job.ResultURL
	return nil
}
