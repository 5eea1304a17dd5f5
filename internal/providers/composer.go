package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"slidecast/internal/config"
	"slidecast/internal/services"
)

// ComposerProvider talks to a timeline composition service that assembles
// slide images, narration audio, and clips into a single video.
type ComposerProvider struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewComposer builds a composer provider from configuration.
func NewComposer(cfg config.Composer) *ComposerProvider {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ComposerProvider{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}
}

func (p *ComposerProvider) Type() Type {
	return TypeComposer
}

type composerClip struct {
	ImageURL string `json:"image_url,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
}

type composerSubmitRequest struct {
	Kind  string         `json:"kind"`
	Clips []composerClip `json:"clips"`
}

type composerSubmitResponse struct {
	ID string `json:"id"`
}

type composerStatusResponse struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	URL      string  `json:"url"`
	Error    string  `json:"error"`
}

// Submit creates a composition render and returns its id.
func (p *ComposerProvider) Submit(ctx context.Context, req Request) (string, error) {
	if p.endpoint == "" {
		return "", services.Wrap(services.ErrConfiguration, "composer", "submit", "endpoint not configured", nil)
	}

	clips := make([]composerClip, 0, len(req.ImageURLs)+1)
	for _, imageURL := range req.ImageURLs {
		clips = append(clips, composerClip{ImageURL: imageURL})
	}
	if req.AudioURL != "" {
		clips = append(clips, composerClip{AudioURL: req.AudioURL})
	}

	var resp composerSubmitResponse
	if err := p.do(ctx, http.MethodPost, "/renders", composerSubmitRequest{Kind: req.Kind, Clips: clips}, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.ID) == "" {
		return "", services.Wrap(services.ErrExternalService, "composer", "submit", "service returned no render id", nil)
	}
	return resp.ID, nil
}

// Poll fetches the current status of a render.
func (p *ComposerProvider) Poll(ctx context.Context, externalID string) (PollResult, error) {
	var resp composerStatusResponse
	if err := p.do(ctx, http.MethodGet, "/renders/"+externalID, nil, &resp); err != nil {
		return PollResult{}, err
	}
	return PollResult{
		Status:       normalizeComposerStatus(resp.Status),
		Progress:     resp.Progress,
		ResultURL:    resp.URL,
		ErrorMessage: resp.Error,
	}, nil
}

// Cancel deletes an in-flight render.
func (p *ComposerProvider) Cancel(ctx context.Context, externalID string) error {
	return p.do(ctx, http.MethodDelete, "/renders/"+externalID, nil, nil)
}

// HealthCheck verifies the service is configured and reachable.
func (p *ComposerProvider) HealthCheck(ctx context.Context) error {
	if p.endpoint == "" {
		return services.Wrap(services.ErrConfiguration, "composer", "health", "endpoint not configured", nil)
	}
	return p.do(ctx, http.MethodGet, "/health", nil, nil)
}

func normalizeComposerStatus(status string) Status {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "queued", "submitted":
		return StatusQueued
	case "fetching", "rendering", "saving":
		return StatusRunning
	case "done", "completed":
		return StatusSucceeded
	case "cancelled", "canceled":
		return StatusCancelled
	default:
		return StatusFailed
	}
}

func (p *ComposerProvider) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("x-api-key", p.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrExternalService, "composer", method+" "+path, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return services.Wrap(services.ErrExternalService, "composer", method+" "+path,
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrExternalService, "composer", method+" "+path, "decode response", err)
	}
	return nil
}
