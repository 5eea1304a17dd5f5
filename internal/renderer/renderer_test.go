package renderer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"slidecast/internal/rendering"
	"slidecast/internal/store"
	"slidecast/internal/testsupport"
)

const testDeck = `<deck>
<canvas width="400" height="300"/>
<slide bg="white" fg="black">
<text xp="50" yp="80">opening</text>
</slide>
<slide>
<text xp="50" yp="50">closing</text>
</slide>
</deck>`

func newTestRenderer(t *testing.T) (*Renderer, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithRenderingPriority("decksh"))
	st := testsupport.MustOpenStore(t, cfg)
	selector, err := rendering.NewSelector(nil, rendering.BackendDecksh, rendering.NewDeckshBackend())
	if err != nil {
		t.Fatalf("build selector: %v", err)
	}
	return NewRendererWithSelector(cfg, st, nil, selector), st
}

func registeredDeck(t *testing.T, st *store.Store, content string) *store.Presentation {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deck.xml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write deck: %v", err)
	}
	pres := testsupport.NewPresentation(t, st, "deck", "fp-"+t.Name())
	pres.SourcePath = path
	if err := st.UpdatePresentation(context.Background(), pres); err != nil {
		t.Fatalf("update presentation: %v", err)
	}
	return pres
}

func TestPrepareValidatesSource(t *testing.T) {
	r, st := newTestRenderer(t)
	ctx := context.Background()

	pres := testsupport.NewPresentation(t, st, "deck", "fp-no-source")
	pres.SourcePath = ""
	if err := r.Prepare(ctx, pres); err == nil {
		t.Fatal("empty source path must be rejected")
	}

	pres.SourcePath = filepath.Join(t.TempDir(), "gone.dsh")
	if err := r.Prepare(ctx, pres); err == nil {
		t.Fatal("unreadable source must be rejected")
	}

	good := registeredDeck(t, st, testDeck)
	if err := r.Prepare(ctx, good); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if good.ProgressStage != "Rendering" {
		t.Fatalf("prepare must reset progress, got %+v", good.ProgressStage)
	}
}

func TestExecuteWritesSlideImages(t *testing.T) {
	r, st := newTestRenderer(t)
	ctx := context.Background()
	pres := registeredDeck(t, st, testDeck)

	if err := r.Execute(ctx, pres); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if pres.SlideCount != 2 {
		t.Fatalf("slide count = %d, want 2", pres.SlideCount)
	}
	if pres.ProgressPercent != 100 {
		t.Fatalf("progress = %f, want 100", pres.ProgressPercent)
	}
	for slide := 1; slide <= 2; slide++ {
		path := r.SlideImagePath(pres.ID, slide)
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("slide %d image missing: %v", slide, err)
		}
		if info.Size() == 0 {
			t.Fatalf("slide %d image is empty", slide)
		}
	}
}

func TestExecuteFailsWhenNoBackendCanRender(t *testing.T) {
	r, st := newTestRenderer(t)
	ctx := context.Background()
	pres := registeredDeck(t, st, "not a deck, not markup {{{")

	err := r.Execute(ctx, pres)
	if err == nil {
		t.Fatal("unrenderable document must fail")
	}
	if !strings.Contains(err.Error(), "rendering") {
		t.Fatalf("error must carry rendering context: %v", err)
	}
}

func TestSlideImagePathLayout(t *testing.T) {
	r, _ := newTestRenderer(t)

	got := r.SlideImagePath(7, 3)
	if filepath.Base(got) != "slide-003.png" {
		t.Fatalf("file name = %q", filepath.Base(got))
	}
	if filepath.Base(filepath.Dir(got)) != "presentation-7" {
		t.Fatalf("directory = %q", filepath.Dir(got))
	}
}

func TestHealthCheck(t *testing.T) {
	r, _ := newTestRenderer(t)
	if health := r.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("configured renderer must be healthy: %+v", health)
	}

	bare := &Renderer{}
	if health := bare.HealthCheck(context.Background()); health.Ready {
		t.Fatal("renderer without a selector must be unhealthy")
	}
}
