package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Fatal("missing file must report exists=false")
	}
	if resolved != path {
		t.Fatalf("resolved = %q, want %q", resolved, path)
	}
	if cfg.Rendering.DefaultBackend != "decksh" {
		t.Fatalf("default backend = %q", cfg.Rendering.DefaultBackend)
	}
	if cfg.Providers.Default != "composer" {
		t.Fatalf("default provider = %q", cfg.Providers.Default)
	}
	if !filepath.IsAbs(cfg.Paths.DataDir) {
		t.Fatalf("data dir must be expanded, got %q", cfg.Paths.DataDir)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slidecast.toml")
	content := `
[paths]
data_dir = "` + dir + `/data"
log_dir = "` + dir + `/logs"
render_dir = "` + dir + `/renders"

[rendering]
priority = [" Graph ", "", "Decksh"]
default_backend = "DECKSH"
slide_width = 1280
slide_height = 720
graph_endpoint = "https://graph.example.com/v1/"
graph_api_key = "secret"

[providers]
default = "Generative"

[providers.generative]
endpoint = "https://avatar.example.com/v1/"
api_key = "secret"

[generation]
poll_interval = -5

[logging]
level = "DEBUG"
format = "JSON"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists {
		t.Fatal("file must report exists=true")
	}
	if got := cfg.Rendering.Priority; len(got) != 2 || got[0] != "graph" || got[1] != "decksh" {
		t.Fatalf("priority not normalized: %v", got)
	}
	if cfg.Rendering.DefaultBackend != "decksh" {
		t.Fatalf("default backend = %q", cfg.Rendering.DefaultBackend)
	}
	if cfg.Rendering.GraphEndpoint != "https://graph.example.com/v1" {
		t.Fatalf("graph endpoint trailing slash must be trimmed: %q", cfg.Rendering.GraphEndpoint)
	}
	if cfg.Providers.Default != "generative" {
		t.Fatalf("provider = %q", cfg.Providers.Default)
	}
	if cfg.Providers.Generative.Endpoint != "https://avatar.example.com/v1" {
		t.Fatalf("generative endpoint = %q", cfg.Providers.Generative.Endpoint)
	}
	if cfg.Generation.PollInterval != defaultPollInterval {
		t.Fatalf("non-positive poll interval must fall back to default, got %d", cfg.Generation.PollInterval)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("logging not normalized: %+v", cfg.Logging)
	}
	if cfg.Rendering.SlideWidth != 1280 || cfg.Rendering.SlideHeight != 720 {
		t.Fatalf("slide dimensions not applied: %+v", cfg.Rendering)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown backend",
			content: "[rendering]\ndefault_backend = \"keynote\"\n",
			wantErr: "unknown backend",
		},
		{
			name:    "unknown provider",
			content: "[providers]\ndefault = \"imaginary\"\n",
			wantErr: "unknown provider",
		},
		{
			name:    "bad logging format",
			content: "[logging]\nformat = \"xml\"\n",
			wantErr: "logging.format",
		},
		{
			name:    "non-positive slide size",
			content: "[rendering]\nslide_width = -1\n",
			wantErr: "slide_width",
		},
		{
			name:    "graph endpoint without key",
			content: "[rendering]\ngraph_endpoint = \"https://graph.example.com\"\n",
			wantErr: "graph_api_key",
		},
		{
			name:    "composer endpoint without key",
			content: "[providers.composer]\nendpoint = \"https://compose.example.com\"\n",
			wantErr: "api_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q must mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestSampleConfigLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("create sample: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("sample config must load cleanly: %v", err)
	}
	if !exists {
		t.Fatal("sample file must be found")
	}
	// The shipped sample mirrors the compiled-in defaults.
	defaults := Default()
	if cfg.Generation.PollInterval != defaults.Generation.PollInterval {
		t.Fatalf("sample poll interval drifted: %d", cfg.Generation.PollInterval)
	}
	if cfg.Rendering.DefaultBackend != defaults.Rendering.DefaultBackend {
		t.Fatalf("sample default backend drifted: %q", cfg.Rendering.DefaultBackend)
	}
}

func TestJobTimeout(t *testing.T) {
	cfg := Default()
	tests := []struct {
		kind string
		want time.Duration
	}{
		{"avatar", 1800 * time.Second},
		{"intro", 1200 * time.Second},
		{"render", 3600 * time.Second},
		{"anything-else", 3600 * time.Second},
	}
	for _, tt := range tests {
		if got := cfg.JobTimeout(tt.kind); got != tt.want {
			t.Errorf("JobTimeout(%q) = %s, want %s", tt.kind, got, tt.want)
		}
	}
	if got := cfg.PollInterval(); got != 10*time.Second {
		t.Errorf("PollInterval() = %s", got)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("home dir: %v", err)
	}

	got, err := ExpandPath("~/configs")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if got != filepath.Join(home, "configs") {
		t.Fatalf("expand ~/: got %q", got)
	}

	got, err = ExpandPath("")
	if err != nil || got != "" {
		t.Fatalf("empty path: got %q, %v", got, err)
	}

	got, err = ExpandPath("relative/dir")
	if err != nil {
		t.Fatalf("expand relative: %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Fatalf("relative path must become absolute: %q", got)
	}
}

func TestDatabasePath(t *testing.T) {
	cfg := Default()
	cfg.Paths.DataDir = "/tmp/slidecast-test"
	if got := cfg.DatabasePath(); got != "/tmp/slidecast-test/slidecast.db" {
		t.Fatalf("database path = %q", got)
	}
}
