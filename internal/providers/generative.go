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

const userAgent = "Slidecast/0.1.0"

// GenerativeProvider talks to an avatar video generation service using the
// submit-then-poll idiom those APIs share.
type GenerativeProvider struct {
	endpoint string
	apiKey   string
	avatarID string
	client   *http.Client
}

// NewGenerative builds a generative provider from configuration.
func NewGenerative(cfg config.Generative) *GenerativeProvider {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GenerativeProvider{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		avatarID: cfg.AvatarID,
		client:   &http.Client{Timeout: timeout},
	}
}

func (p *GenerativeProvider) Type() Type {
	return TypeGenerative
}

type generativeSubmitRequest struct {
	AvatarID string `json:"avatar_id"`
	Script   string `json:"script,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

type generativeSubmitResponse struct {
	VideoID string `json:"video_id"`
}

type generativeStatusResponse struct {
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	VideoURL string  `json:"video_url"`
	Error    string  `json:"error"`
}

// Submit creates an avatar video generation task and returns its id.
func (p *GenerativeProvider) Submit(ctx context.Context, req Request) (string, error) {
	if p.endpoint == "" {
		return "", services.Wrap(services.ErrConfiguration, "generative", "submit", "endpoint not configured", nil)
	}
	body := generativeSubmitRequest{
		AvatarID: p.avatarID,
		Script:   req.Script,
		AudioURL: req.AudioURL,
	}
	if override := req.Params["avatar_id"]; override != "" {
		body.AvatarID = override
	}

	var resp generativeSubmitResponse
	if err := p.do(ctx, http.MethodPost, "/videos", body, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.VideoID) == "" {
		return "", services.Wrap(services.ErrExternalService, "generative", "submit", "service returned no video id", nil)
	}
	return resp.VideoID, nil
}

// Poll fetches the current status of a generation task.
func (p *GenerativeProvider) Poll(ctx context.Context, externalID string) (PollResult, error) {
	var resp generativeStatusResponse
	if err := p.do(ctx, http.MethodGet, "/videos/"+externalID, nil, &resp); err != nil {
		return PollResult{}, err
	}
	return PollResult{
		Status:       normalizeGenerativeStatus(resp.Status),
		Progress:     resp.Progress,
		ResultURL:    resp.VideoURL,
		ErrorMessage: resp.Error,
	}, nil
}

// Cancel asks the service to stop a generation task.
func (p *GenerativeProvider) Cancel(ctx context.Context, externalID string) error {
	return p.do(ctx, http.MethodPost, "/videos/"+externalID+"/cancel", nil, nil)
}

// HealthCheck verifies the service is configured and reachable.
func (p *GenerativeProvider) HealthCheck(ctx context.Context) error {
	if p.endpoint == "" {
		return services.Wrap(services.ErrConfiguration, "generative", "health", "endpoint not configured", nil)
	}
	return p.do(ctx, http.MethodGet, "/health", nil, nil)
}

func normalizeGenerativeStatus(status string) Status {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "queued", "pending", "waiting":
		return StatusQueued
	case "processing", "running", "in_progress":
		return StatusRunning
	case "done", "completed", "succeeded":
		return StatusSucceeded
	case "cancelled", "canceled":
		return StatusCancelled
	default:
		return StatusFailed
	}
}

func (p *GenerativeProvider) do(ctx context.Context, method, path string, body, out any) error {
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
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrExternalService, "generative", method+" "+path, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return services.Wrap(services.ErrExternalService, "generative", method+" "+path,
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrExternalService, "generative", method+" "+path, "decode response", err)
	}
	return nil
}
