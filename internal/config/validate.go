package config

import (
	"errors"
	"fmt"
)

var knownBackends = map[string]struct{}{
	"decksh":  {},
	"soffice": {},
	"graph":   {},
}

var knownProviders = map[string]struct{}{
	"composer":   {},
	"generative": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRendering(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateRendering() error {
	if c.Rendering.SlideWidth <= 0 || c.Rendering.SlideHeight <= 0 {
		return errors.New("rendering.slide_width and rendering.slide_height must be positive")
	}
	if c.Rendering.DefaultBackend != "" {
		if _, ok := knownBackends[c.Rendering.DefaultBackend]; !ok {
			return fmt.Errorf("rendering.default_backend: unknown backend %q", c.Rendering.DefaultBackend)
		}
	}
	if c.Rendering.GraphEndpoint != "" && c.Rendering.GraphAPIKey == "" {
		return errors.New("rendering.graph_api_key is required when rendering.graph_endpoint is set")
	}
	return nil
}

func (c *Config) validateProviders() error {
	if c.Providers.Default != "" {
		if _, ok := knownProviders[c.Providers.Default]; !ok {
			return fmt.Errorf("providers.default: unknown provider %q", c.Providers.Default)
		}
	}
	if c.Providers.Composer.Endpoint != "" && c.Providers.Composer.APIKey == "" {
		return errors.New("providers.composer.api_key is required when the composer endpoint is set")
	}
	if c.Providers.Generative.Endpoint != "" && c.Providers.Generative.APIKey == "" {
		return errors.New("providers.generative.api_key is required when the generative endpoint is set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
