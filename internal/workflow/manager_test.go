package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"slidecast/internal/notifications"
	"slidecast/internal/stage"
	"slidecast/internal/store"
	"slidecast/internal/testsupport"
)

type fakeHandler struct {
	name       string
	prepareErr error
	execErr    error
	executed   int
	onExecute  func(pres *store.Presentation)
}

func (f *fakeHandler) Prepare(ctx context.Context, pres *store.Presentation) error {
	return f.prepareErr
}

func (f *fakeHandler) Execute(ctx context.Context, pres *store.Presentation) error {
	f.executed++
	if f.execErr != nil {
		return f.execErr
	}
	if f.onExecute != nil {
		f.onExecute(pres)
	}
	return nil
}

func (f *fakeHandler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(f.name)
}

type gatedHandler struct {
	fakeHandler
	ready  bool
	reason string
}

func (g *gatedHandler) ReadyForWork(ctx context.Context, pres *store.Presentation) (bool, string, error) {
	return g.ready, g.reason, nil
}

type countingNotifier struct {
	notifications.Service
	rendered  int
	generated int
	ready     int
	failures  int
}

func (c *countingNotifier) NotifyRenderingCompleted(ctx context.Context, title string, slideCount int) error {
	c.rendered++
	return nil
}

func (c *countingNotifier) NotifyGenerationCompleted(ctx context.Context, kind, title string) error {
	c.generated++
	return nil
}

func (c *countingNotifier) NotifyPresentationReady(ctx context.Context, title, videoURL string) error {
	c.ready++
	return nil
}

func (c *countingNotifier) NotifyError(ctx context.Context, err error, context string) error {
	c.failures++
	return nil
}

func newTestManager(t *testing.T, set StageSet) (*Manager, *store.Store, *countingNotifier) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	notifier := &countingNotifier{Service: notifications.Noop()}
	mgr := NewManagerWithNotifier(cfg, st, nil, notifier)
	mgr.ConfigureStages(set)
	return mgr, st, notifier
}

func TestConfigureStagesOrder(t *testing.T) {
	mgr, _, _ := newTestManager(t, StageSet{
		Renderer:  &fakeHandler{name: "renderer"},
		Generator: &fakeHandler{name: "generator"},
		Composer:  &fakeHandler{name: "composer"},
	})

	want := []store.Status{store.StatusPending, store.StatusRendered, store.StatusGenerated}
	if len(mgr.statusOrder) != len(want) {
		t.Fatalf("status order = %v", mgr.statusOrder)
	}
	for i, status := range want {
		if mgr.statusOrder[i] != status {
			t.Fatalf("status order[%d] = %s, want %s", i, mgr.statusOrder[i], status)
		}
	}
	if stg := mgr.stageByStart[store.StatusRendered]; stg.name != "generator" || stg.doneStatus != store.StatusGenerated {
		t.Fatalf("rendered must map to generator, got %+v", stg)
	}
}

func TestStartRequiresConfiguredStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	mgr := NewManagerWithNotifier(cfg, st, nil, notifications.Noop())

	if err := mgr.Start(context.Background()); err == nil {
		t.Fatal("start without stages must fail")
	}

	mgr.ConfigureStages(StageSet{Renderer: &fakeHandler{name: "renderer"}})
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer mgr.Stop()

	if err := mgr.Start(context.Background()); err == nil {
		t.Fatal("second start must fail while running")
	}
}

func TestProcessPresentationAdvancesStage(t *testing.T) {
	renderer := &fakeHandler{name: "renderer", onExecute: func(pres *store.Presentation) {
		pres.SlideCount = 4
	}}
	mgr, st, notifier := newTestManager(t, StageSet{Renderer: renderer})
	ctx := context.Background()
	pres := testsupport.NewPresentation(t, st, "deck", "fp-advance")

	if err := mgr.processPresentation(ctx, pres); err != nil {
		t.Fatalf("process: %v", err)
	}
	if renderer.executed != 1 {
		t.Fatalf("renderer executed %d times", renderer.executed)
	}

	got, err := st.GetPresentation(ctx, pres.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != store.StatusRendered {
		t.Fatalf("status = %s, want rendered", got.Status)
	}
	if got.SlideCount != 4 {
		t.Fatalf("slide count = %d, handler result must persist", got.SlideCount)
	}
	if got.LastHeartbeat != nil {
		t.Fatal("heartbeat must be cleared after the stage finishes")
	}
	if notifier.rendered != 1 {
		t.Fatalf("rendering notifications = %d, want 1", notifier.rendered)
	}
}

func TestProcessPresentationCompletionProgress(t *testing.T) {
	composer := &fakeHandler{name: "composer", onExecute: func(pres *store.Presentation) {
		pres.FinalVideoURL = "https://cdn/final.mp4"
	}}
	mgr, st, notifier := newTestManager(t, StageSet{Composer: composer})
	ctx := context.Background()
	pres := testsupport.NewPresentation(t, st, "deck", "fp-complete")
	pres.Status = store.StatusGenerated
	if err := st.UpdatePresentation(ctx, pres); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := mgr.processPresentation(ctx, pres); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, err := st.GetPresentation(ctx, pres.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != store.StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.ProgressPercent != 100 || got.ProgressStage != "Completed" {
		t.Fatalf("completion progress not applied: %+v", got)
	}
	if got.FinalVideoURL != "https://cdn/final.mp4" {
		t.Fatalf("final video url = %q", got.FinalVideoURL)
	}
	if notifier.ready != 1 {
		t.Fatalf("ready notifications = %d, want 1", notifier.ready)
	}
}

func TestProcessPresentationStageFailure(t *testing.T) {
	renderer := &fakeHandler{name: "renderer", execErr: errors.New("render backend unavailable")}
	mgr, st, notifier := newTestManager(t, StageSet{Renderer: renderer})
	ctx := context.Background()
	pres := testsupport.NewPresentation(t, st, "deck", "fp-failure")

	if err := mgr.processPresentation(ctx, pres); err == nil {
		t.Fatal("stage failure must propagate")
	}

	got, err := st.GetPresentation(ctx, pres.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != store.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "render backend unavailable") {
		t.Fatalf("error message = %q", got.ErrorMessage)
	}
	if notifier.failures != 1 {
		t.Fatalf("failure notifications = %d, want 1", notifier.failures)
	}
}

func TestProcessPresentationPrepareFailure(t *testing.T) {
	renderer := &fakeHandler{name: "renderer", prepareErr: errors.New("source file missing")}
	mgr, st, _ := newTestManager(t, StageSet{Renderer: renderer})
	ctx := context.Background()
	pres := testsupport.NewPresentation(t, st, "deck", "fp-prepare")

	if err := mgr.processPresentation(ctx, pres); err == nil {
		t.Fatal("prepare failure must propagate")
	}
	if renderer.executed != 0 {
		t.Fatal("execute must not run after prepare fails")
	}

	got, err := st.GetPresentation(ctx, pres.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != store.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
}

func TestNextProcessableHoldsGatedPresentations(t *testing.T) {
	generator := &gatedHandler{fakeHandler: fakeHandler{name: "generator"}, reason: "no slide narratives imported yet"}
	mgr, st, _ := newTestManager(t, StageSet{
		Renderer:  &fakeHandler{name: "renderer"},
		Generator: generator,
	})
	ctx := context.Background()

	waiting := testsupport.NewPresentation(t, st, "deck", "fp-waiting")
	waiting.Status = store.StatusRendered
	waiting.SlideCount = 3
	if err := st.UpdatePresentation(ctx, waiting); err != nil {
		t.Fatalf("update: %v", err)
	}

	// Nothing processable: waiting stays in rendered, untouched.
	pres, err := mgr.nextProcessable(ctx)
	if err != nil {
		t.Fatalf("next processable: %v", err)
	}
	if pres != nil {
		t.Fatalf("gated presentation must be held back, got %d", pres.ID)
	}
	got, err := st.GetPresentation(ctx, waiting.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != store.StatusRendered {
		t.Fatalf("status = %s, held presentations must stay rendered", got.Status)
	}
	if got.ErrorMessage != "" {
		t.Fatalf("held presentation must not fail, got %q", got.ErrorMessage)
	}

	// A younger pending presentation is not starved by the held one.
	younger := testsupport.NewPresentation(t, st, "deck", "fp-younger")
	pres, err = mgr.nextProcessable(ctx)
	if err != nil {
		t.Fatalf("next processable: %v", err)
	}
	if pres == nil || pres.ID != younger.ID {
		t.Fatalf("next = %+v, want pending presentation %d", pres, younger.ID)
	}

	// Once the gate opens the held presentation is oldest and goes first.
	generator.ready = true
	pres, err = mgr.nextProcessable(ctx)
	if err != nil {
		t.Fatalf("next processable: %v", err)
	}
	if pres == nil || pres.ID != waiting.ID {
		t.Fatalf("next = %+v, want released presentation %d", pres, waiting.ID)
	}
}

func TestProcessPresentationUnknownStatus(t *testing.T) {
	mgr, st, _ := newTestManager(t, StageSet{Renderer: &fakeHandler{name: "renderer"}})
	pres := testsupport.NewPresentation(t, st, "deck", "fp-unknown")
	pres.Status = store.StatusCompleted

	// Cancelled context keeps the no-stage path from sleeping out the poll interval.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := mgr.processPresentation(ctx, pres); err != nil {
		t.Fatalf("unmatched status must be a no-op, got %v", err)
	}
}

func TestStatusSummary(t *testing.T) {
	mgr, st, _ := newTestManager(t, StageSet{
		Renderer: &fakeHandler{name: "renderer"},
		Composer: &fakeHandler{name: "composer"},
	})
	ctx := context.Background()
	testsupport.NewPresentation(t, st, "deck", "fp-status")

	summary := mgr.Status(ctx)
	if summary.Running {
		t.Fatal("manager was never started")
	}
	if summary.Stats[store.StatusPending] != 1 {
		t.Fatalf("stats = %v", summary.Stats)
	}
	if len(summary.StageHealth) != 2 {
		t.Fatalf("stage health = %v", summary.StageHealth)
	}
	if !summary.StageHealth["renderer"].Ready {
		t.Fatal("fake renderer reports healthy")
	}
}
