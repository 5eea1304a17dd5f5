package rendering

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"
)

// BackendGraph uploads documents to a remote graph-style conversion API and
// fetches rendered slide images over HTTP.
const BackendGraph = "graph"

// GraphBackend creates strategies backed by a remote conversion service.
// All instances share one session cache keyed by document fingerprint.
type GraphBackend struct {
	endpoint     string
	apiKey       string
	client       *http.Client
	cache        *sessionCache
	cacheEnabled bool
}

// NewGraphBackend constructs the graph backend.
func NewGraphBackend(endpoint, apiKey string, timeoutSeconds int, cacheEnabled bool) *GraphBackend {
	timeout := time.Duration(timeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &GraphBackend{
		endpoint:     strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		apiKey:       apiKey,
		client:       &http.Client{Timeout: timeout},
		cache:        newSessionCache(),
		cacheEnabled: cacheEnabled,
	}
}

func (b *GraphBackend) Name() string { return BackendGraph }

// Available reports whether the remote service is configured. Availability
// is deliberately configuration-only so selection stays deterministic.
func (b *GraphBackend) Available(context.Context) bool {
	return b.endpoint != "" && b.apiKey != ""
}

func (b *GraphBackend) NewStrategy() Strategy {
	return &graphStrategy{backend: b}
}

// graphStrategy holds one remote conversion session between prepare and
// cleanup. Cached sessions are owned by the backend cache and survive
// cleanup; uncached sessions are deleted remotely.
type graphStrategy struct {
	backend     *GraphBackend
	sessionID   string
	fingerprint string
	slideCount  int
	fromCache   bool
	prepared    bool
}

type graphSessionResponse struct {
	ID         string `json:"id"`
	SlideCount int    `json:"slide_count"`
}

func (s *graphStrategy) Name() string { return BackendGraph }

// PrepareForRendering uploads the document for remote conversion, reusing a
// cached session when the same document was converted before. The remote
// call happens outside the cache lock; only the finished entry is published.
func (s *graphStrategy) PrepareForRendering(ctx context.Context, document []byte) error {
	if s.prepared {
		return &PreparationError{Backend: BackendGraph, Err: fmt.Errorf("already prepared")}
	}

	fingerprint := Fingerprint(document)
	s.fingerprint = fingerprint
	if s.backend.cacheEnabled {
		if entry, ok := s.backend.cache.get(fingerprint); ok {
			s.sessionID = entry.sessionID
			s.slideCount = entry.slideCount
			s.fromCache = true
			s.prepared = true
			return nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.backend.endpoint+"/sessions", bytes.NewReader(document))
	if err != nil {
		return &PreparationError{Backend: BackendGraph, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+s.backend.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.backend.client.Do(req)
	if err != nil {
		return &PreparationError{Backend: BackendGraph, Err: fmt.Errorf("upload document: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &PreparationError{Backend: BackendGraph, Err: fmt.Errorf("upload rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))}
	}

	var session graphSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return &PreparationError{Backend: BackendGraph, Err: fmt.Errorf("decode session: %w", err)}
	}
	if session.ID == "" || session.SlideCount < 1 {
		return &PreparationError{Backend: BackendGraph, Err: fmt.Errorf("service returned unusable session %q with %d slides", session.ID, session.SlideCount)}
	}

	s.sessionID = session.ID
	s.slideCount = session.SlideCount
	s.prepared = true

	if s.backend.cacheEnabled {
		s.backend.cache.put(fingerprint, sessionEntry{sessionID: session.ID, slideCount: session.SlideCount})
		s.fromCache = true
	}
	return nil
}

func (s *graphStrategy) RenderSlide(ctx context.Context, slideNumber, width, height int) (image.Image, error) {
	if !s.prepared {
		return nil, ErrNotPrepared
	}
	if slideNumber < 1 || slideNumber > s.slideCount {
		return nil, &RenderError{Backend: BackendGraph, Slide: slideNumber, Err: fmt.Errorf("slide out of range (session has %d)", s.slideCount)}
	}
	if width <= 0 || height <= 0 {
		return nil, &RenderError{Backend: BackendGraph, Slide: slideNumber, Err: fmt.Errorf("invalid dimensions %dx%d", width, height)}
	}

	url := fmt.Sprintf("%s/sessions/%s/slides/%d/image?width=%d&height=%d",
		s.backend.endpoint, s.sessionID, slideNumber, width, height)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &RenderError{Backend: BackendGraph, Slide: slideNumber, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+s.backend.apiKey)

	resp, err := s.backend.client.Do(req)
	if err != nil {
		return nil, &RenderError{Backend: BackendGraph, Slide: slideNumber, Err: fmt.Errorf("fetch slide image: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		// The remote session expired. Evict it so the next prepare
		// re-uploads instead of reusing the dead session forever.
		if s.fromCache && s.backend.cacheEnabled {
			s.backend.cache.delete(s.fingerprint)
		}
		return nil, &RenderError{Backend: BackendGraph, Slide: slideNumber, Err: fmt.Errorf("remote session expired with status %d", resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RenderError{Backend: BackendGraph, Slide: slideNumber, Err: fmt.Errorf("slide image request rejected with status %d", resp.StatusCode)}
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, &RenderError{Backend: BackendGraph, Slide: slideNumber, Err: fmt.Errorf("decode slide image: %w", err)}
	}
	return img, nil
}

func (s *graphStrategy) SlideCount() int {
	return s.slideCount
}

// Cleanup releases the remote session unless the shared cache owns it.
// Safe to call repeatedly and after partial failure.
func (s *graphStrategy) Cleanup(ctx context.Context) error {
	if s.sessionID == "" || s.fromCache {
		s.prepared = false
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.backend.endpoint+"/sessions/"+s.sessionID, nil)
	if err != nil {
		return fmt.Errorf("build session delete: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.backend.apiKey)

	resp, err := s.backend.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete remote session: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	s.sessionID = ""
	s.prepared = false
	return nil
}
