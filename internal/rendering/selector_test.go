package rendering

import (
	"context"
	"errors"
	"image"
	"testing"
)

type fakeStrategy struct {
	name       string
	prepareErr error
	renderErr  error
	slideCount int

	prepared bool
	cleanups int
	rendered []int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) PrepareForRendering(context.Context, []byte) error {
	if f.prepareErr != nil {
		return &PreparationError{Backend: f.name, Err: f.prepareErr}
	}
	f.prepared = true
	return nil
}

func (f *fakeStrategy) RenderSlide(_ context.Context, slideNumber, _, _ int) (image.Image, error) {
	if !f.prepared {
		return nil, ErrNotPrepared
	}
	if f.renderErr != nil {
		return nil, &RenderError{Backend: f.name, Slide: slideNumber, Err: f.renderErr}
	}
	f.rendered = append(f.rendered, slideNumber)
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

func (f *fakeStrategy) SlideCount() int { return f.slideCount }

func (f *fakeStrategy) Cleanup(context.Context) error {
	f.cleanups++
	return nil
}

type fakeBackend struct {
	name      string
	available bool
	strategy  *fakeStrategy
}

func (f *fakeBackend) Name() string                   { return f.name }
func (f *fakeBackend) Available(context.Context) bool { return f.available }
func (f *fakeBackend) NewStrategy() Strategy          { return f.strategy }

func TestNewSelectorRejectsDuplicates(t *testing.T) {
	_, err := NewSelector(nil, "",
		&fakeBackend{name: "a"},
		&fakeBackend{name: "a"},
	)
	if err == nil {
		t.Fatal("expected duplicate backend name to be rejected")
	}
}

func TestNewSelectorRejectsUnregisteredDefault(t *testing.T) {
	_, err := NewSelector(nil, "missing", &fakeBackend{name: "a"})
	if err == nil {
		t.Fatal("expected unregistered default to be rejected")
	}
}

func TestSelectWalksPriorityInOrder(t *testing.T) {
	first := &fakeBackend{name: "first", available: false, strategy: &fakeStrategy{name: "first"}}
	second := &fakeBackend{name: "second", available: true, strategy: &fakeStrategy{name: "second"}}

	selector, err := NewSelector(nil, "", first, second)
	if err != nil {
		t.Fatalf("build selector: %v", err)
	}

	strategy, err := selector.Select(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if strategy.Name() != "second" {
		t.Fatalf("expected second backend, got %s", strategy.Name())
	}
}

func TestSelectSkipsUnknownNames(t *testing.T) {
	known := &fakeBackend{name: "known", available: true, strategy: &fakeStrategy{name: "known"}}
	selector, err := NewSelector(nil, "", known)
	if err != nil {
		t.Fatalf("build selector: %v", err)
	}

	strategy, err := selector.Select(context.Background(), []string{"mystery", "known"})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if strategy.Name() != "known" {
		t.Fatalf("expected known backend, got %s", strategy.Name())
	}
}

func TestSelectFallsBackToDefault(t *testing.T) {
	unavailable := &fakeBackend{name: "remote", available: false}
	fallback := &fakeBackend{name: "local", available: true, strategy: &fakeStrategy{name: "local"}}

	selector, err := NewSelector(nil, "local", unavailable, fallback)
	if err != nil {
		t.Fatalf("build selector: %v", err)
	}

	strategy, err := selector.Select(context.Background(), []string{"remote"})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if strategy.Name() != "local" {
		t.Fatalf("expected default backend, got %s", strategy.Name())
	}
}

func TestSelectExhaustedReturnsErrNoRendererAvailable(t *testing.T) {
	unavailable := &fakeBackend{name: "remote", available: false}
	selector, err := NewSelector(nil, "", unavailable)
	if err != nil {
		t.Fatalf("build selector: %v", err)
	}

	_, err = selector.Select(context.Background(), []string{"remote", "unknown"})
	if !errors.Is(err, ErrNoRendererAvailable) {
		t.Fatalf("expected ErrNoRendererAvailable, got %v", err)
	}
}

func TestRenderDocumentFallsBackOnPreparationFailure(t *testing.T) {
	failing := &fakeStrategy{name: "remote", prepareErr: errors.New("upload refused"), slideCount: 2}
	working := &fakeStrategy{name: "local", slideCount: 2}

	selector, err := NewSelector(nil, "",
		&fakeBackend{name: "remote", available: true, strategy: failing},
		&fakeBackend{name: "local", available: true, strategy: working},
	)
	if err != nil {
		t.Fatalf("build selector: %v", err)
	}

	images, err := selector.RenderDocument(context.Background(), []string{"remote", "local"}, []byte("doc"), 640, 480)
	if err != nil {
		t.Fatalf("render document: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("expected 2 slides, got %d", len(images))
	}
	if failing.cleanups != 1 {
		t.Fatalf("failed strategy must still be cleaned up, cleanups=%d", failing.cleanups)
	}
	if working.cleanups != 1 {
		t.Fatalf("working strategy cleanup missing, cleanups=%d", working.cleanups)
	}
}

func TestRenderDocumentAbortsOnSlideFailure(t *testing.T) {
	broken := &fakeStrategy{name: "local", renderErr: errors.New("rasterize failed"), slideCount: 3}
	spare := &fakeStrategy{name: "spare", slideCount: 3}

	selector, err := NewSelector(nil, "",
		&fakeBackend{name: "local", available: true, strategy: broken},
		&fakeBackend{name: "spare", available: true, strategy: spare},
	)
	if err != nil {
		t.Fatalf("build selector: %v", err)
	}

	_, err = selector.RenderDocument(context.Background(), []string{"local", "spare"}, []byte("doc"), 640, 480)
	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("expected RenderError, got %v", err)
	}
	// Mid-render failure is not a preparation failure: no fallback.
	if len(spare.rendered) != 0 || spare.cleanups != 0 {
		t.Fatal("slide failure must abort, not fall back to the next backend")
	}
	if broken.cleanups != 1 {
		t.Fatalf("cleanup missing after slide failure, cleanups=%d", broken.cleanups)
	}
}
