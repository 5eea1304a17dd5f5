package generator

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

// fakeProvider accepts every submission and reports a scripted poll outcome.
type fakeProvider struct {
	ptype      providers.Type
	pollStatus providers.Status
	pollError  string

	mu       sync.Mutex
	submits  []providers.Request
	sequence int
}

func (f *fakeProvider) Type() providers.Type { return f.ptype }

func (f *fakeProvider) Submit(ctx context.Context, req providers.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sequence++
	f.submits = append(f.submits, req)
	return fmt.Sprintf("ext-%d", f.sequence), nil
}

func (f *fakeProvider) Poll(ctx context.Context, externalID string) (providers.PollResult, error) {
	result := providers.PollResult{Status: f.pollStatus}
	switch f.pollStatus {
	case providers.StatusSucceeded:
		result.ResultURL = "https://cdn/" + externalID + ".mp4"
		result.Progress = 100
	case providers.StatusFailed:
		result.ErrorMessage = f.pollError
	}
	return result, nil
}

func (f *fakeProvider) Cancel(ctx context.Context, externalID string) error { return nil }

func (f *fakeProvider) HealthCheck(ctx context.Context) error { return nil }

func (f *fakeProvider) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits)
}

type fixture struct {
	cfg      *config.Config
	store    *store.Store
	provider *fakeProvider
	gen      *Generator
}

type imagesStub struct{}

func (imagesStub) SlideImagePath(presentationID int64, slideNumber int) string {
	return fmt.Sprintf("/renders/presentation-%d/slide-%03d.png", presentationID, slideNumber)
}

func newFixture(t *testing.T, provider *fakeProvider, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{
		testsupport.WithProvider("generative"),
	}, opts...)...)
	st := testsupport.MustOpenStore(t, cfg)

	registry, err := providers.NewRegistry(providers.TypeGenerative, provider)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	tracker := generation.NewTracker(st, registry, nil, nil, generation.TrackerConfig{
		PollInterval: 10 * time.Millisecond,
		Timeouts:     map[generation.Kind]time.Duration{generation.KindAvatar: time.Hour},
	})
	if err := tracker.Start(context.Background()); err != nil {
		t.Fatalf("start tracker: %v", err)
	}
	t.Cleanup(tracker.Stop)

	return &fixture{
		cfg:      cfg,
		store:    st,
		provider: provider,
		gen:      NewGenerator(cfg, st, tracker, imagesStub{}, nil),
	}
}

func renderedPresentation(t *testing.T, st *store.Store, slideCount int) *store.Presentation {
	t.Helper()
	pres := testsupport.NewPresentation(t, st, "deck", "fp-"+t.Name())
	pres.Status = store.StatusRendered
	pres.SlideCount = slideCount
	if err := st.UpdatePresentation(context.Background(), pres); err != nil {
		t.Fatalf("update presentation: %v", err)
	}
	return pres
}

func TestPrepareValidations(t *testing.T) {
	f := newFixture(t, &fakeProvider{ptype: providers.TypeGenerative, pollStatus: providers.StatusSucceeded})
	ctx := context.Background()

	pres := testsupport.NewPresentation(t, f.store, "deck", "fp-prepare")
	if err := f.gen.Prepare(ctx, pres); err == nil {
		t.Fatal("presentation without rendered slides must be rejected")
	}

	pres.SlideCount = 1
	if err := f.gen.Prepare(ctx, pres); err == nil {
		t.Fatal("presentation without narratives must be rejected")
	}

	if _, err := f.store.SaveSlideNarrative(ctx, &store.SlideNarrative{
		PresentationID: pres.ID,
		SlideNumber:    1,
		NarrativeText:  "text",
		AudioURL:       "https://cdn/a.mp3",
	}); err != nil {
		t.Fatalf("save narrative: %v", err)
	}
	if err := f.gen.Prepare(ctx, pres); err != nil {
		t.Fatalf("prepare: %v", err)
	}
}

func TestReadyForWorkWaitsForNarration(t *testing.T) {
	f := newFixture(t, &fakeProvider{ptype: providers.TypeGenerative, pollStatus: providers.StatusSucceeded})
	ctx := context.Background()
	pres := renderedPresentation(t, f.store, 1)

	ready, reason, err := f.gen.ReadyForWork(ctx, pres)
	if err != nil {
		t.Fatalf("ready for work: %v", err)
	}
	if ready {
		t.Fatal("presentation without narration must wait, not proceed")
	}
	if reason == "" {
		t.Fatal("held presentations must carry a reason for operators")
	}

	if _, err := f.store.SaveSlideNarrative(ctx, &store.SlideNarrative{
		PresentationID: pres.ID,
		SlideNumber:    1,
		NarrativeText:  "text",
		AudioURL:       "https://cdn/a.mp3",
	}); err != nil {
		t.Fatalf("save narrative: %v", err)
	}
	ready, _, err = f.gen.ReadyForWork(ctx, pres)
	if err != nil {
		t.Fatalf("ready for work: %v", err)
	}
	if !ready {
		t.Fatal("imported narration must release the presentation")
	}
}

func TestExecuteGeneratesAvatarsAndIntro(t *testing.T) {
	provider := &fakeProvider{ptype: providers.TypeGenerative, pollStatus: providers.StatusSucceeded}
	f := newFixture(t, provider, testsupport.WithPreflight(true, false))
	ctx := context.Background()
	pres := renderedPresentation(t, f.store, 2)
	for slide := 1; slide <= 2; slide++ {
		if _, err := f.store.SaveSlideNarrative(ctx, &store.SlideNarrative{
			PresentationID: pres.ID,
			SlideNumber:    slide,
			NarrativeText:  fmt.Sprintf("slide %d", slide),
			AudioURL:       fmt.Sprintf("https://cdn/a%d.mp3", slide),
		}); err != nil {
			t.Fatalf("save narrative: %v", err)
		}
	}

	if err := f.gen.Execute(ctx, pres); err != nil {
		t.Fatalf("execute: %v", err)
	}

	// Two avatar jobs plus the intro job.
	if got := provider.submitCount(); got != 3 {
		t.Fatalf("submits = %d, want 3", got)
	}

	narratives, err := f.store.LatestNarratives(ctx, pres.ID)
	if err != nil {
		t.Fatalf("load narratives: %v", err)
	}
	for _, narrative := range narratives {
		if narrative.AvatarVideoURL == "" {
			t.Fatalf("slide %d has no avatar video", narrative.SlideNumber)
		}
		if narrative.AvatarJobID == "" {
			t.Fatalf("slide %d has no job id recorded", narrative.SlideNumber)
		}
	}

	intro, err := f.store.LatestIntroVideo(ctx, pres.ID)
	if err != nil {
		t.Fatalf("load intro: %v", err)
	}
	if intro == nil || intro.VideoURL == "" || intro.Generating {
		t.Fatalf("intro video not finalized: %+v", intro)
	}
	if pres.IntroVideoURL != intro.VideoURL {
		t.Fatalf("presentation intro url = %q, want %q", pres.IntroVideoURL, intro.VideoURL)
	}
	if pres.ProgressPercent != 100 {
		t.Fatalf("progress = %f", pres.ProgressPercent)
	}
}

func TestExecuteSkipsSatisfiedAndSilentSlides(t *testing.T) {
	provider := &fakeProvider{ptype: providers.TypeGenerative, pollStatus: providers.StatusSucceeded}
	f := newFixture(t, provider, testsupport.WithPreflight(false, false))
	ctx := context.Background()
	pres := renderedPresentation(t, f.store, 2)

	// Slide 1 already has its video; slide 2 has no audio to lip-sync against.
	if _, err := f.store.SaveSlideNarrative(ctx, &store.SlideNarrative{
		PresentationID: pres.ID,
		SlideNumber:    1,
		NarrativeText:  "done",
		AudioURL:       "https://cdn/a1.mp3",
		AvatarVideoURL: "https://cdn/v1.mp4",
	}); err != nil {
		t.Fatalf("save narrative: %v", err)
	}
	if _, err := f.store.SaveSlideNarrative(ctx, &store.SlideNarrative{
		PresentationID: pres.ID,
		SlideNumber:    2,
		NarrativeText:  "silent",
	}); err != nil {
		t.Fatalf("save narrative: %v", err)
	}

	if err := f.gen.Execute(ctx, pres); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := provider.submitCount(); got != 0 {
		t.Fatalf("submits = %d, want 0", got)
	}
}

func TestExecuteSurfacesJobFailure(t *testing.T) {
	provider := &fakeProvider{ptype: providers.TypeGenerative, pollStatus: providers.StatusFailed, pollError: "quota exceeded"}
	f := newFixture(t, provider, testsupport.WithPreflight(false, false))
	ctx := context.Background()
	pres := renderedPresentation(t, f.store, 1)
	if _, err := f.store.SaveSlideNarrative(ctx, &store.SlideNarrative{
		PresentationID: pres.ID,
		SlideNumber:    1,
		NarrativeText:  "text",
		AudioURL:       "https://cdn/a.mp3",
	}); err != nil {
		t.Fatalf("save narrative: %v", err)
	}

	err := f.gen.Execute(ctx, pres)
	if err == nil {
		t.Fatal("failed job must fail the stage")
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("provider message must survive: %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t, &fakeProvider{ptype: providers.TypeGenerative, pollStatus: providers.StatusSucceeded})
	if health := f.gen.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("configured generator must be healthy: %+v", health)
	}

	bare := NewGenerator(f.cfg, f.store, nil, nil, nil)
	if health := bare.HealthCheck(context.Background()); health.Ready {
		t.Fatal("generator without tracker must be unhealthy")
	}
}
