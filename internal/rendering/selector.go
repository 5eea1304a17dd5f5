package rendering

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"slidecast/internal/logging"
)

// Selector chooses the first available backend from a priority list and
// owns the fallback policy when preparation fails.
type Selector struct {
	backends    map[string]Backend
	defaultName string
	logger      *slog.Logger
}

// NewSelector indexes the given backends by name. defaultName designates the
// backend used when nothing in a priority list is available; empty means no
// default.
func NewSelector(logger *slog.Logger, defaultName string, backends ...Backend) (*Selector, error) {
	indexed := make(map[string]Backend, len(backends))
	for _, backend := range backends {
		if backend == nil {
			continue
		}
		name := backend.Name()
		if _, exists := indexed[name]; exists {
			return nil, fmt.Errorf("duplicate rendering backend registered for name %q", name)
		}
		indexed[name] = backend
	}
	if defaultName != "" {
		if _, ok := indexed[defaultName]; !ok {
			return nil, fmt.Errorf("default rendering backend %q is not registered", defaultName)
		}
	}
	return &Selector{
		backends:    indexed,
		defaultName: defaultName,
		logger:      logging.NewComponentLogger(logger, "renderer-selector"),
	}, nil
}

// Select walks the priority list in order and returns a fresh strategy from
// the first available backend. Unknown names are logged and skipped. When
// nothing matches, the default backend is used if registered; otherwise
// ErrNoRendererAvailable. Selection is deterministic and order-preserving.
func (s *Selector) Select(ctx context.Context, priority []string) (Strategy, error) {
	backend, err := s.selectBackend(ctx, priority, nil)
	if err != nil {
		return nil, err
	}
	return backend.NewStrategy(), nil
}

func (s *Selector) selectBackend(ctx context.Context, priority []string, skip map[string]bool) (Backend, error) {
	for _, name := range priority {
		if skip[name] {
			continue
		}
		backend, ok := s.backends[name]
		if !ok {
			s.logger.Warn("unknown rendering backend in priority list; skipping",
				logging.String(logging.FieldBackend, name),
			)
			continue
		}
		if !backend.Available(ctx) {
			s.logger.Debug("rendering backend unavailable",
				logging.String(logging.FieldBackend, name),
			)
			continue
		}
		return backend, nil
	}

	if s.defaultName != "" && !skip[s.defaultName] {
		if backend, ok := s.backends[s.defaultName]; ok && backend.Available(ctx) {
			s.logger.Info("falling back to default rendering backend",
				logging.String(logging.FieldBackend, s.defaultName),
			)
			return backend, nil
		}
	}

	return nil, ErrNoRendererAvailable
}

// RenderDocument renders every slide of the document at the requested size.
// Preparation failure triggers fallback to the next priority entry with a
// fresh strategy; a single slide failure aborts the whole presentation so no
// partial-quality output escapes.
func (s *Selector) RenderDocument(ctx context.Context, priority []string, document []byte, width, height int) ([]image.Image, error) {
	skip := make(map[string]bool)
	var lastErr error

	for {
		backend, err := s.selectBackend(ctx, priority, skip)
		if err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, err
		}
		skip[backend.Name()] = true

		var images []image.Image
		runErr := WithStrategy(ctx, backend.NewStrategy(), document, func(strategy Strategy) error {
			count := strategy.SlideCount()
			images = make([]image.Image, 0, count)
			for slide := 1; slide <= count; slide++ {
				img, renderErr := strategy.RenderSlide(ctx, slide, width, height)
				if renderErr != nil {
					return renderErr
				}
				images = append(images, img)
			}
			return nil
		})
		if runErr == nil {
			return images, nil
		}

		var prepErr *PreparationError
		if errors.As(runErr, &prepErr) {
			s.logger.Warn("rendering backend preparation failed; trying next candidate",
				logging.String(logging.FieldBackend, backend.Name()),
				logging.Error(runErr),
			)
			lastErr = runErr
			continue
		}
		return nil, runErr
	}
}

// Names returns the registered backend names.
func (s *Selector) Names() []string {
	names := make([]string, 0, len(s.backends))
	for name := range s.backends {
		names = append(names, name)
	}
	return names
}
