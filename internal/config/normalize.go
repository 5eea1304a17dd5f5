package config

import (
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRendering()
	c.normalizeProviders()
	c.normalizeIntervals()
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Paths.RenderDir, err = expandPath(c.Paths.RenderDir); err != nil {
		return err
	}
	return nil
}

func (c *Config) normalizeRendering() {
	cleaned := make([]string, 0, len(c.Rendering.Priority))
	for _, name := range c.Rendering.Priority {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			cleaned = append(cleaned, name)
		}
	}
	c.Rendering.Priority = cleaned
	c.Rendering.DefaultBackend = strings.ToLower(strings.TrimSpace(c.Rendering.DefaultBackend))
	c.Rendering.GraphEndpoint = strings.TrimRight(strings.TrimSpace(c.Rendering.GraphEndpoint), "/")
}

func (c *Config) normalizeProviders() {
	c.Providers.Default = strings.ToLower(strings.TrimSpace(c.Providers.Default))
	c.Providers.Composer.Endpoint = strings.TrimRight(strings.TrimSpace(c.Providers.Composer.Endpoint), "/")
	c.Providers.Generative.Endpoint = strings.TrimRight(strings.TrimSpace(c.Providers.Generative.Endpoint), "/")
}

func (c *Config) normalizeIntervals() {
	if c.Generation.PollInterval <= 0 {
		c.Generation.PollInterval = defaultPollInterval
	}
	if c.Generation.AvatarTimeout <= 0 {
		c.Generation.AvatarTimeout = defaultAvatarTimeout
	}
	if c.Generation.IntroTimeout <= 0 {
		c.Generation.IntroTimeout = defaultIntroTimeout
	}
	if c.Generation.RenderTimeout <= 0 {
		c.Generation.RenderTimeout = defaultRenderJobTimeout
	}
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		c.Workflow.HeartbeatTimeout = defaultHeartbeatTimeout
	}
}
