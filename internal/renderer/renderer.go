package renderer

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"slidecast/internal/config"
	"slidecast/internal/logging"
	"slidecast/internal/rendering"
	"slidecast/internal/services"
	"slidecast/internal/stage"
	"slidecast/internal/store"
)

// Renderer rasterizes the presentation document into per-slide PNGs.
type Renderer struct {
	store    *store.Store
	cfg      *config.Config
	selector *rendering.Selector
	logger   *slog.Logger
}

// NewRenderer constructs the rendering stage handler with the configured
// backends.
func NewRenderer(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Renderer, error) {
	selector, err := rendering.NewSelector(
		logger,
		cfg.Rendering.DefaultBackend,
		rendering.NewDeckshBackend(),
		rendering.NewSofficeBackend(cfg.Rendering.SofficeBinary, cfg.Rendering.SofficeTimeout),
		rendering.NewGraphBackend(
			cfg.Rendering.GraphEndpoint,
			cfg.Rendering.GraphAPIKey,
			cfg.Rendering.GraphRequestTimeout,
			cfg.Rendering.CacheEnabled,
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build rendering selector: %w", err)
	}
	return NewRendererWithSelector(cfg, st, logger, selector), nil
}

// NewRendererWithSelector allows injecting the selector (used in tests).
func NewRendererWithSelector(cfg *config.Config, st *store.Store, logger *slog.Logger, selector *rendering.Selector) *Renderer {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "renderer"))
	} else {
		stageLogger = logging.NewNop()
	}
	return &Renderer{store: st, cfg: cfg, selector: selector, logger: stageLogger}
}

func (r *Renderer) Prepare(ctx context.Context, pres *store.Presentation) error {
	pres.SetProgress("Rendering", "Preparing slide rendering", 0)
	pres.ErrorMessage = ""
	if strings.TrimSpace(pres.SourcePath) == "" {
		return services.Wrap(
			services.ErrValidation, "rendering", "validate inputs",
			"No source document recorded for presentation; re-register the deck", nil)
	}
	if _, err := os.Stat(pres.SourcePath); err != nil {
		return services.Wrap(
			services.ErrValidation, "rendering", "validate inputs",
			fmt.Sprintf("Source document %s is not readable", pres.SourcePath), err)
	}
	return nil
}

func (r *Renderer) Execute(ctx context.Context, pres *store.Presentation) error {
	logger := r.logger.With(logging.Int64(logging.FieldPresentationID, pres.ID))

	document, err := os.ReadFile(pres.SourcePath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "rendering", "read document",
			fmt.Sprintf("Reading source document %s failed", pres.SourcePath), err)
	}

	images, err := r.selector.RenderDocument(
		ctx,
		r.cfg.Rendering.Priority,
		document,
		r.cfg.Rendering.SlideWidth,
		r.cfg.Rendering.SlideHeight,
	)
	if err != nil {
		return services.Wrap(services.ErrExternalService, "rendering", "render slides",
			"Slide rendering failed on every configured backend", err)
	}
	if len(images) == 0 {
		return services.Wrap(services.ErrValidation, "rendering", "render slides",
			"Document produced no slides", nil)
	}

	outDir := r.outputDir(pres.ID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "rendering", "create output dir",
			fmt.Sprintf("Cannot create render directory %s", outDir), err)
	}
	for i, img := range images {
		slideNumber := i + 1
		if err := writePNG(filepath.Join(outDir, slideFileName(slideNumber)), img); err != nil {
			return services.Wrap(services.ErrConfiguration, "rendering", "write slide image",
				fmt.Sprintf("Writing slide %d image failed", slideNumber), err)
		}
		pres.SetProgress("Rendering",
			fmt.Sprintf("Rendered slide %d of %d", slideNumber, len(images)),
			float64(slideNumber)/float64(len(images))*100)
	}

	pres.SlideCount = len(images)
	pres.SetProgress("Rendering", fmt.Sprintf("Rendered %d slides", len(images)), 100)
	logger.Info("slides rendered",
		logging.Int("slide_count", len(images)),
		logging.String("output_dir", outDir),
	)
	return nil
}

func (r *Renderer) HealthCheck(ctx context.Context) stage.Health {
	if r.selector == nil {
		return stage.Unhealthy("renderer", "selector not configured")
	}
	if len(r.selector.Names()) == 0 {
		return stage.Unhealthy("renderer", "no rendering backends registered")
	}
	return stage.Healthy("renderer")
}

// SlideImagePath returns the location a rendered slide is written to.
func (r *Renderer) SlideImagePath(presentationID int64, slideNumber int) string {
	return filepath.Join(r.outputDir(presentationID), slideFileName(slideNumber))
}

func (r *Renderer) outputDir(presentationID int64) string {
	return filepath.Join(r.cfg.Paths.RenderDir, fmt.Sprintf("presentation-%d", presentationID))
}

func slideFileName(slideNumber int) string {
	return fmt.Sprintf("slide-%03d.png", slideNumber)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
