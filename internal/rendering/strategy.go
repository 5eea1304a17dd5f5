package rendering

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
)

// ErrNoRendererAvailable is returned when every entry in the priority list is
// unavailable and no default backend is registered.
var ErrNoRendererAvailable = errors.New("no rendering backend available")

// ErrNotPrepared is returned when RenderSlide is called before
// PrepareForRendering succeeded.
var ErrNotPrepared = errors.New("rendering strategy not prepared")

// PreparationError wraps a backend setup failure. It is fatal for the
// current attempt; the selector may fall back to the next priority entry.
type PreparationError struct {
	Backend string
	Err     error
}

func (e *PreparationError) Error() string {
	return fmt.Sprintf("prepare %s backend: %v", e.Backend, e.Err)
}

func (e *PreparationError) Unwrap() error { return e.Err }

// RenderError wraps a single-slide failure. The prepared state stays valid;
// callers may retry the slide or abort the presentation.
type RenderError struct {
	Backend string
	Slide   int
	Err     error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render slide %d with %s backend: %v", e.Slide, e.Backend, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Strategy renders one presentation document. Instances are transient and
// presentation-scoped: PrepareForRendering must be called exactly once
// before any RenderSlide, Cleanup must run on every exit path and is safe to
// call repeatedly. Instances are not safe for concurrent slide calls.
type Strategy interface {
	// Name returns the backend name for logging and selection.
	Name() string
	// PrepareForRendering performs backend-specific setup: loading the
	// document in process or uploading and converting it remotely.
	PrepareForRendering(ctx context.Context, document []byte) error
	// RenderSlide rasterizes the 1-based slide to the requested pixel size.
	RenderSlide(ctx context.Context, slideNumber, width, height int) (image.Image, error)
	// SlideCount reports the number of slides once prepared.
	SlideCount() int
	// Cleanup releases all backend resources. Idempotent and safe after
	// partial failure.
	Cleanup(ctx context.Context) error
}

// Backend creates presentation-scoped strategy instances for one rendering
// engine and reports whether the engine is usable in this process.
type Backend interface {
	Name() string
	Available(ctx context.Context) bool
	NewStrategy() Strategy
}

// WithStrategy runs fn with a prepared strategy and guarantees cleanup on
// every exit path, including preparation failure and panics inside fn.
func WithStrategy(ctx context.Context, strategy Strategy, document []byte, fn func(Strategy) error) (err error) {
	defer func() {
		if cleanupErr := strategy.Cleanup(ctx); cleanupErr != nil && err == nil {
			err = cleanupErr
		}
	}()
	if err = strategy.PrepareForRendering(ctx, document); err != nil {
		return err
	}
	return fn(strategy)
}

// Fingerprint derives the content identity of a document, used for cache
// keys and duplicate registration detection.
func Fingerprint(document []byte) string {
	sum := sha256.Sum256(document)
	return hex.EncodeToString(sum[:])
}
