package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"slidecast/internal/config"
)

const userAgent = "Slidecast/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyRenderingCompleted(ctx context.Context, title string, slideCount int) error
	NotifyGenerationCompleted(ctx context.Context, kind, title string) error
	NotifyGenerationFailed(ctx context.Context, kind, title, reason string) error
	NotifyPresentationReady(ctx context.Context, title, videoURL string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		settings: cfg.Notifications,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	settings config.Notifications
	client   *http.Client
}

func (n *ntfyService) NotifyRenderingCompleted(ctx context.Context, title string, slideCount int) error {
	if !n.settings.Rendering {
		return nil
	}
	data := payload{
		title:   "Slidecast - Slides Rendered",
		message: fmt.Sprintf("Rendered %d slides: %s", slideCount, strings.TrimSpace(title)),
		tags:    []string{"slidecast", "rendering", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyGenerationCompleted(ctx context.Context, kind, title string) error {
	if !n.settings.Generation {
		return nil
	}
	data := payload{
		title:   "Slidecast - Generation Completed",
		message: fmt.Sprintf("%s generation finished: %s", strings.TrimSpace(kind), strings.TrimSpace(title)),
		tags:    []string{"slidecast", "generation", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyGenerationFailed(ctx context.Context, kind, title, reason string) error {
	if !n.settings.Generation {
		return nil
	}
	data := payload{
		title:    "Slidecast - Generation Failed",
		message:  fmt.Sprintf("%s generation failed for %s: %s", strings.TrimSpace(kind), strings.TrimSpace(title), strings.TrimSpace(reason)),
		tags:     []string{"slidecast", "generation", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPresentationReady(ctx context.Context, title, videoURL string) error {
	if !n.settings.Preflight {
		return nil
	}
	message := fmt.Sprintf("Presentation ready: %s", strings.TrimSpace(title))
	if strings.TrimSpace(videoURL) != "" {
		message += "\n" + videoURL
	}
	data := payload{
		title:   "Slidecast - Ready",
		message: message,
		tags:    []string{"slidecast", "preflight", "ready"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, context string) error {
	if !n.settings.Errors || err == nil {
		return nil
	}
	data := payload{
		title:    "Slidecast - Error",
		message:  fmt.Sprintf("%s: %v", strings.TrimSpace(context), err),
		tags:     []string{"slidecast", "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:   "Slidecast - Test",
		message: "Notifications are configured correctly.",
		tags:    []string{"slidecast", "test"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification rejected with status %d", resp.StatusCode)
	}
	return nil
}

type noopService struct{}

func (noopService) NotifyRenderingCompleted(context.Context, string, int) error { return nil }

func (noopService) NotifyGenerationCompleted(context.Context, string, string) error { return nil }

func (noopService) NotifyGenerationFailed(context.Context, string, string, string) error { return nil }

func (noopService) NotifyPresentationReady(context.Context, string, string) error { return nil }

func (noopService) NotifyError(context.Context, error, string) error { return nil }

func (noopService) TestNotification(context.Context) error { return nil }

// Noop returns a Service that discards all notifications, used in tests.
func Noop() Service {
	return noopService{}
}
