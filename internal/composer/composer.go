package composer

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

// Composer assembles the final narrated video through the composition
// provider.
type Composer struct {
	store   *store.Store
	cfg     *config.Config
	tracker *generation.Tracker
	logger  *slog.Logger
}

// NewComposer constructs the composition stage handler.
func NewComposer(cfg *config.Config, st *store.Store, tracker *generation.Tracker, logger *slog.Logger) *Composer {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "composer"))
	} else {
		stageLogger = logging.NewNop()
	}
	return &Composer{store: st, cfg: cfg, tracker: tracker, logger: stageLogger}
}

func (c *Composer) Prepare(ctx context.Context, pres *store.Presentation) error {
	pres.SetProgress("Composing", "Preparing final composition", 0)
	pres.ErrorMessage = ""

	narratives, err := c.store.LatestNarratives(ctx, pres.ID)
	if err != nil {
		return services.Wrap(services.ErrExternalService, "composition", "load narratives",
			"Reading slide narratives failed", err)
	}
	for _, narrative := range narratives {
		if strings.TrimSpace(narrative.AvatarVideoURL) == "" {
			return services.Wrap(
				services.ErrValidation, "composition", "validate inputs",
				fmt.Sprintf("Slide %d has no avatar video; run generation before composing", narrative.SlideNumber), nil)
		}
	}
	return nil
}

func (c *Composer) Execute(ctx context.Context, pres *store.Presentation) error {
	logger := c.logger.With(logging.Int64(logging.FieldPresentationID, pres.ID))

	narratives, err := c.store.LatestNarratives(ctx, pres.ID)
	if err != nil {
		return services.Wrap(services.ErrExternalService, "composition", "load narratives",
			"Reading slide narratives failed", err)
	}

	clips := make([]string, 0, len(narratives)+1)
	if strings.TrimSpace(pres.IntroVideoURL) != "" {
		clips = append(clips, pres.IntroVideoURL)
	}
	for _, narrative := range narratives {
		clips = append(clips, narrative.AvatarVideoURL)
	}

	job, err := c.tracker.Submit(ctx, providers.TypeComposer, generation.KindRender, providers.Request{
		PresentationID: pres.ID,
		Kind:           string(generation.KindRender),
		ImageURLs:      clips,
		Params:         map[string]string{"title": pres.Title},
	})
	if err != nil {
		return services.Wrap(services.ErrExternalService, "composition", "submit render job",
			"Submitting final composition failed", err)
	}
	pres.SetProgress("Composing", "Final composition submitted", 10)

	done, err := c.tracker.Await(ctx, job.ID)
	if err != nil {
		return services.Wrap(services.ErrExternalService, "composition", "await render job",
			"Waiting on final composition failed", err)
	}
	if done.State != generation.StateCompleted {
		return services.Wrap(services.ErrExternalService, "composition", "render job",
			fmt.Sprintf("Final composition %s: %s", done.State, done.ErrorMessage), nil)
	}
	if strings.TrimSpace(done.ResultURL) == "" {
		// Completed renders without a published locator stay visible as
		// warnings; the presentation cannot finish without a final video.
		return services.Wrap(services.ErrExternalService, "composition", "render job",
			fmt.Sprintf("Final composition %s", generation.AnnotationNotPublished), nil)
	}

	pres.FinalVideoURL = done.ResultURL
	pres.SetProgress("Composing", "Final video published", 100)
	logger.Info("composition finished", logging.String("final_video_url", done.ResultURL))
	return nil
}

func (c *Composer) HealthCheck(ctx context.Context) stage.Health {
	if c.tracker == nil {
		return stage.Unhealthy("composer", "job tracker not configured")
	}
	if strings.TrimSpace(c.cfg.Providers.Composer.Endpoint) == "" {
		return stage.Unhealthy("composer", "composition endpoint not configured")
	}
	return stage.Healthy("composer")
}
