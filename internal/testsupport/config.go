package testsupport

import (
	"path/filepath"
	"testing"

	"slidecast/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.RenderDir = filepath.Join(base, "render")
	cfgVal.Generation.PollInterval = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRenderingPriority sets the backend priority list on the test config.
func WithRenderingPriority(names ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Rendering.Priority = names
	}
}

// WithProvider sets the default provider name on the test config.
func WithProvider(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Providers.Default = name
	}
}

// WithPreflight overrides the readiness check policy on the test config.
func WithPreflight(checkIntro, enhancedMandatory bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Preflight.CheckIntroVideo = checkIntro
		b.cfg.Preflight.EnhancedNarrativeMandatory = enhancedMandatory
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
