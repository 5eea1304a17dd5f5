package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	RenderDir string `toml:"render_dir"`
}

// Rendering contains slide rendering backend configuration.
type Rendering struct {
	// Priority is the ordered list of backend names tried for each
	// presentation. Unknown names are skipped.
	Priority []string `toml:"priority"`
	// DefaultBackend is used when every entry in Priority is unavailable.
	DefaultBackend string `toml:"default_backend"`
	SlideWidth     int    `toml:"slide_width"`
	SlideHeight    int    `toml:"slide_height"`
	CacheEnabled   bool   `toml:"cache_enabled"`

	SofficeBinary  string `toml:"soffice_binary"`
	SofficeTimeout int    `toml:"soffice_timeout"`

	GraphEndpoint       string `toml:"graph_endpoint"`
	GraphAPIKey         string `toml:"graph_api_key"`
	GraphRequestTimeout int    `toml:"graph_request_timeout"`
}

// Composer contains configuration for the timeline composition service.
type Composer struct {
	Endpoint       string `toml:"endpoint"`
	APIKey         string `toml:"api_key"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Generative contains configuration for the avatar video generation service.
type Generative struct {
	Endpoint       string `toml:"endpoint"`
	APIKey         string `toml:"api_key"`
	AvatarID       string `toml:"avatar_id"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Providers contains video provider configuration.
type Providers struct {
	// Default selects the provider used when a request does not name one.
	Default    string     `toml:"default"`
	Composer   Composer   `toml:"composer"`
	Generative Generative `toml:"generative"`
}

// Generation contains async job tracking intervals and per-kind timeouts.
// All values are seconds.
type Generation struct {
	PollInterval  int `toml:"poll_interval"`
	AvatarTimeout int `toml:"avatar_timeout"`
	IntroTimeout  int `toml:"intro_timeout"`
	RenderTimeout int `toml:"render_timeout"`
}

// Preflight contains readiness check configuration.
type Preflight struct {
	// CheckIntroVideo controls whether the presentation-level intro video
	// check participates in the overall verdict by default.
	CheckIntroVideo bool `toml:"check_intro_video"`
	// EnhancedNarrativeMandatory promotes a missing enhanced narrative from
	// WARNING to a readiness blocker.
	EnhancedNarrativeMandatory bool `toml:"enhanced_narrative_mandatory"`
}

// Workflow contains daemon timing configuration. All values are seconds.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Rendering      bool   `toml:"rendering"`
	Generation     bool   `toml:"generation"`
	Preflight      bool   `toml:"preflight"`
	Errors         bool   `toml:"errors"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values for slidecast.
//
// Configuration sections by subsystem:
//   - Paths: data, log, and rendered image directories
//   - Rendering: backend priority list and per-backend settings
//   - Providers: external video service endpoints and credentials
//   - Generation: job polling interval and per-kind timeouts
//   - Preflight: readiness check policy
//   - Workflow: daemon polling intervals and heartbeats
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Rendering     Rendering     `toml:"rendering"`
	Providers     Providers     `toml:"providers"`
	Generation    Generation    `toml:"generation"`
	Preflight     Preflight     `toml:"preflight"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/slidecast/config.toml")
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// ExpandPath resolves a leading ~ against the user home directory.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// CreateSample writes the embedded sample configuration to the target path.
func CreateSample(path string) error {
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The second return value
// is the resolved path, the third reports whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("slidecast.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.RenderDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the slidecast SQLite database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "slidecast.db")
}

// PollInterval returns the generation poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Generation.PollInterval) * time.Second
}

// JobTimeout returns the wall-clock timeout for a generation job kind name.
// Unknown kinds fall back to the render timeout.
func (c *Config) JobTimeout(kind string) time.Duration {
	switch kind {
	case "avatar":
		return time.Duration(c.Generation.AvatarTimeout) * time.Second
	case "intro":
		return time.Duration(c.Generation.IntroTimeout) * time.Second
	default:
		return time.Duration(c.Generation.RenderTimeout) * time.Second
	}
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", path, err)
	}
	return abs, nil
}
