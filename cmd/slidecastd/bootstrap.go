package main

import (
	"fmt"
	"log/slog"
	"time"

	"slidecast/internal/composer"
	"slidecast/internal/config"
	"slidecast/internal/daemon"
	"slidecast/internal/generation"
	"slidecast/internal/generator"
	"slidecast/internal/notifications"
	"slidecast/internal/providers"
	"slidecast/internal/renderer"
	"slidecast/internal/store"
	"slidecast/internal/workflow"
)

// buildDaemon assembles the provider registry, job tracker, stage handlers,
// and workflow manager behind a single daemon.
func buildDaemon(cfg *config.Config, st *store.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	defaultType, ok := providers.ParseType(cfg.Providers.Default)
	if !ok {
		defaultType = providers.TypeGenerative
	}
	registry, err := providers.NewRegistry(
		defaultType,
		providers.NewGenerative(cfg.Providers.Generative),
		providers.NewComposer(cfg.Providers.Composer),
	)
	if err != nil {
		return nil, fmt.Errorf("build provider registry: %w", err)
	}

	notifier := notifications.NewService(cfg)
	tracker := generation.NewTracker(st, registry, notifier, logger, generation.TrackerConfig{
		PollInterval: cfg.PollInterval(),
		Timeouts: map[generation.Kind]time.Duration{
			generation.KindAvatar: cfg.JobTimeout("avatar"),
			generation.KindIntro:  cfg.JobTimeout("intro"),
			generation.KindRender: cfg.JobTimeout("render"),
		},
	})

	renderStage, err := renderer.NewRenderer(cfg, st, logger)
	if err != nil {
		return nil, fmt.Errorf("build renderer: %w", err)
	}

	manager := workflow.NewManagerWithNotifier(cfg, st, logger, notifier)
	manager.ConfigureStages(workflow.StageSet{
		Renderer:  renderStage,
		Generator: generator.NewGenerator(cfg, st, tracker, renderStage, logger),
		Composer:  composer.NewComposer(cfg, st, tracker, logger),
	})

	return daemon.New(cfg, st, tracker, manager, logger)
}
