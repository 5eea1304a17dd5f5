package composer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"slidecast/internal/config"
	"slidecast/internal/generation"
	"slidecast/internal/providers"
	"slidecast/internal/store"
	"slidecast/internal/testsupport"
)

// fakeComposerProvider records the clip lists it is asked to assemble.
type fakeComposerProvider struct {
	resultURL string

	mu       sync.Mutex
	submits  []providers.Request
	sequence int
}

func (f *fakeComposerProvider) Type() providers.Type { return providers.TypeComposer }

func (f *fakeComposerProvider) Submit(ctx context.Context, req providers.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sequence++
	f.submits = append(f.submits, req)
	return fmt.Sprintf("render-%d", f.sequence), nil
}

func (f *fakeComposerProvider) Poll(ctx context.Context, externalID string) (providers.PollResult, error) {
	return providers.PollResult{Status: providers.StatusSucceeded, Progress: 100, ResultURL: f.resultURL}, nil
}

func (f *fakeComposerProvider) Cancel(ctx context.Context, externalID string) error { return nil }

func (f *fakeComposerProvider) HealthCheck(ctx context.Context) error { return nil }

func (f *fakeComposerProvider) lastClips() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.submits) == 0 {
		return nil
	}
	return f.submits[len(f.submits)-1].ImageURLs
}

func newTestComposer(t *testing.T, provider *fakeComposerProvider) (*Composer, *store.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Providers.Composer.Endpoint = "https://compose.example.com/v1"
	st := testsupport.MustOpenStore(t, cfg)

	registry, err := providers.NewRegistry(providers.TypeComposer, provider)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	tracker := generation.NewTracker(st, registry, nil, nil, generation.TrackerConfig{
		PollInterval: 10 * time.Millisecond,
	})
	if err := tracker.Start(context.Background()); err != nil {
		t.Fatalf("start tracker: %v", err)
	}
	t.Cleanup(tracker.Stop)

	return NewComposer(cfg, st, tracker, nil), st, cfg
}

func generatedPresentation(t *testing.T, st *store.Store, slideCount int, introURL string) *store.Presentation {
	t.Helper()
	pres := testsupport.NewPresentation(t, st, "deck", "fp-"+t.Name())
	pres.Status = store.StatusGenerated
	pres.SlideCount = slideCount
	pres.IntroVideoURL = introURL
	if err := st.UpdatePresentation(context.Background(), pres); err != nil {
		t.Fatalf("update presentation: %v", err)
	}
	for slide := 1; slide <= slideCount; slide++ {
		if _, err := st.SaveSlideNarrative(context.Background(), &store.SlideNarrative{
			PresentationID: pres.ID,
			SlideNumber:    slide,
			NarrativeText:  fmt.Sprintf("slide %d", slide),
			AudioURL:       fmt.Sprintf("https://cdn/a%d.mp3", slide),
			AvatarVideoURL: fmt.Sprintf("https://cdn/v%d.mp4", slide),
		}); err != nil {
			t.Fatalf("save narrative: %v", err)
		}
	}
	return pres
}

func TestPrepareRequiresAvatarVideos(t *testing.T) {
	c, st, _ := newTestComposer(t, &fakeComposerProvider{resultURL: "https://cdn/final.mp4"})
	ctx := context.Background()

	pres := testsupport.NewPresentation(t, st, "deck", "fp-unfinished")
	if _, err := st.SaveSlideNarrative(ctx, &store.SlideNarrative{
		PresentationID: pres.ID,
		SlideNumber:    1,
		NarrativeText:  "text",
	}); err != nil {
		t.Fatalf("save narrative: %v", err)
	}
	if err := c.Prepare(ctx, pres); err == nil {
		t.Fatal("slide without avatar video must block composition")
	}

	ready := generatedPresentation(t, st, 1, "")
	if err := c.Prepare(ctx, ready); err != nil {
		t.Fatalf("prepare: %v", err)
	}
}

func TestExecuteComposesFinalVideo(t *testing.T) {
	provider := &fakeComposerProvider{resultURL: "https://cdn/final.mp4"}
	c, st, _ := newTestComposer(t, provider)
	ctx := context.Background()
	pres := generatedPresentation(t, st, 2, "https://cdn/intro.mp4")

	if err := c.Execute(ctx, pres); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if pres.FinalVideoURL != "https://cdn/final.mp4" {
		t.Fatalf("final video url = %q", pres.FinalVideoURL)
	}
	if pres.ProgressPercent != 100 {
		t.Fatalf("progress = %f", pres.ProgressPercent)
	}

	clips := provider.lastClips()
	want := []string{"https://cdn/intro.mp4", "https://cdn/v1.mp4", "https://cdn/v2.mp4"}
	if len(clips) != len(want) {
		t.Fatalf("clips = %v", clips)
	}
	for i, clip := range want {
		if clips[i] != clip {
			t.Fatalf("clip[%d] = %q, want %q", i, clips[i], clip)
		}
	}
}

func TestExecuteWithoutIntroOmitsIntroClip(t *testing.T) {
	provider := &fakeComposerProvider{resultURL: "https://cdn/final.mp4"}
	c, st, _ := newTestComposer(t, provider)
	ctx := context.Background()
	pres := generatedPresentation(t, st, 1, "")

	if err := c.Execute(ctx, pres); err != nil {
		t.Fatalf("execute: %v", err)
	}
	clips := provider.lastClips()
	if len(clips) != 1 || clips[0] != "https://cdn/v1.mp4" {
		t.Fatalf("clips = %v", clips)
	}
}

func TestExecuteRequiresPublishedResult(t *testing.T) {
	provider := &fakeComposerProvider{resultURL: ""}
	c, st, _ := newTestComposer(t, provider)
	ctx := context.Background()
	pres := generatedPresentation(t, st, 1, "")

	err := c.Execute(ctx, pres)
	if err == nil {
		t.Fatal("completed render without a locator must fail composition")
	}
	if !strings.Contains(err.Error(), generation.AnnotationNotPublished) {
		t.Fatalf("error must carry the annotation: %v", err)
	}
	if pres.FinalVideoURL != "" {
		t.Fatalf("final video url must stay empty, got %q", pres.FinalVideoURL)
	}
}

func TestHealthCheck(t *testing.T) {
	c, st, cfg := newTestComposer(t, &fakeComposerProvider{resultURL: "https://cdn/final.mp4"})
	if health := c.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("configured composer must be healthy: %+v", health)
	}

	cfg.Providers.Composer.Endpoint = ""
	if health := c.HealthCheck(context.Background()); health.Ready {
		t.Fatal("composer without endpoint must be unhealthy")
	}

	bare := NewComposer(cfg, st, nil, nil)
	if health := bare.HealthCheck(context.Background()); health.Ready {
		t.Fatal("composer without tracker must be unhealthy")
	}
}
