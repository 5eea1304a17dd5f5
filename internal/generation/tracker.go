package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"slidecast/internal/logging"
	"slidecast/internal/notifications"
	"slidecast/internal/providers"
	"slidecast/internal/services"
)

// JobStore is the persistence surface the tracker needs. Implemented by the
// SQLite store.
type JobStore interface {
	SaveJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ActiveJobs(ctx context.Context) ([]*Job, error)
}

// TrackerConfig holds tracker timing parameters.
type TrackerConfig struct {
	PollInterval time.Duration
	Timeouts     map[Kind]time.Duration
}

// Tracker drives the async state machine for long-running external jobs.
// Each in-flight job gets its own polling goroutine so a stuck poll never
// delays unrelated jobs.
type Tracker struct {
	store    JobStore
	registry *providers.Registry
	logger   *slog.Logger
	notifier notifications.Service
	cfg      TrackerConfig
	now      func() time.Time

	mu       sync.Mutex
	watchers map[string]context.CancelFunc
	wg       sync.WaitGroup
	baseCtx  context.Context
	cancel   context.CancelFunc
}

// NewTracker constructs a job tracker. Start must be called before Submit.
func NewTracker(store JobStore, registry *providers.Registry, notifier notifications.Service, logger *slog.Logger, cfg TrackerConfig) *Tracker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.Noop()
	}
	return &Tracker{
		store:    store,
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "generation"),
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		watchers: make(map[string]context.CancelFunc),
	}
}

// Start resumes polling for any persisted non-terminal jobs and prepares the
// tracker to accept submissions.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.baseCtx != nil {
		t.mu.Unlock()
		return fmt.Errorf("tracker already started")
	}
	t.baseCtx, t.cancel = context.WithCancel(ctx)
	t.mu.Unlock()

	active, err := t.store.ActiveJobs(ctx)
	if err != nil {
		return fmt.Errorf("load active jobs: %w", err)
	}
	for _, job := range active {
		t.watch(job)
		t.logger.Info("resumed job polling",
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldJobKind, string(job.Kind)),
		)
	}
	return nil
}

// Stop halts all polling goroutines and waits for them to finish. Jobs stay
// in their persisted states and are resumed on the next Start.
func (t *Tracker) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.baseCtx = nil
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.wg.Wait()
}

// Submit sends work to the named provider and begins tracking the resulting
// external job. The job starts in PENDING once the request is accepted.
func (t *Tracker) Submit(ctx context.Context, providerType providers.Type, kind Kind, req providers.Request) (*Job, error) {
	provider, err := t.registry.Get(providerType)
	if err != nil {
		return nil, err
	}

	externalID, err := provider.Submit(ctx, req)
	if err != nil {
		return nil, err
	}

	now := t.now().UTC()
	job := &Job{
		ID:             uuid.NewString(),
		PresentationID: req.PresentationID,
		SlideNumber:    req.SlideNumber,
		Kind:           kind,
		Provider:       string(provider.Type()),
		ExternalID:     externalID,
		State:          StatePending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := t.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("persist submitted job: %w", err)
	}

	t.logger.Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobKind, string(kind)),
		logging.String(logging.FieldProvider, job.Provider),
		logging.Int64(logging.FieldPresentationID, job.PresentationID),
	)

	t.watch(job)
	return job, nil
}

// Cancel records operator cancellation. The external service is asked to
// stop on a best-effort basis; the tracker records intent, not a hard abort.
// Cancelling an already terminal job is a no-op.
func (t *Tracker) Cancel(ctx context.Context, jobID string) error {
	job, err := t.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return services.Wrap(services.ErrNotFound, "generation", "cancel", fmt.Sprintf("job %s", jobID), nil)
	}
	if job.IsTerminal() {
		return nil
	}

	if provider, ok := t.registry.Find(providers.Type(job.Provider)); ok && job.ExternalID != "" {
		if cancelErr := provider.Cancel(ctx, job.ExternalID); cancelErr != nil {
			t.logger.Warn("provider cancel request failed; recording cancellation anyway",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(cancelErr),
			)
		}
	}

	if err := job.MarkCancelled(t.now().UTC()); err != nil {
		return err
	}
	if err := t.store.SaveJob(ctx, job); err != nil {
		return err
	}
	t.stopWatcher(job.ID)
	t.logger.Info("job cancelled", logging.String(logging.FieldJobID, job.ID))
	return nil
}

// Await blocks until the job reaches a terminal state, the context is
// cancelled, or the job disappears from the store.
func (t *Tracker) Await(ctx context.Context, jobID string) (*Job, error) {
	interval := t.cfg.PollInterval
	if interval > time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := t.store.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, services.Wrap(services.ErrNotFound, "generation", "await", fmt.Sprintf("job %s", jobID), nil)
		}
		if job.IsTerminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (t *Tracker) timeoutFor(kind Kind) time.Duration {
	if timeout, ok := t.cfg.Timeouts[kind]; ok && timeout > 0 {
		return timeout
	}
	return time.Hour
}

func (t *Tracker) watch(job *Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.baseCtx == nil {
		return
	}
	if _, exists := t.watchers[job.ID]; exists {
		return
	}
	watchCtx, cancel := context.WithCancel(t.baseCtx)
	t.watchers[job.ID] = cancel
	t.wg.Add(1)
	go t.pollLoop(watchCtx, job.ID, job.Kind, job.CreatedAt)
}

func (t *Tracker) stopWatcher(jobID string) {
	t.mu.Lock()
	cancel := t.watchers[jobID]
	delete(t.watchers, jobID)
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (t *Tracker) pollLoop(ctx context.Context, jobID string, kind Kind, startedAt time.Time) {
	defer t.wg.Done()
	defer t.stopWatcher(jobID)

	deadline := startedAt.Add(t.timeoutFor(kind))
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if t.now().After(deadline) {
			t.timeoutJob(ctx, jobID, kind)
			return
		}

		done, err := t.pollOnce(ctx, jobID)
		if err != nil {
			t.logger.Warn("job poll failed; will retry",
				logging.String(logging.FieldJobID, jobID),
				logging.Error(err),
			)
			continue
		}
		if done {
			return
		}
	}
}

// pollOnce fetches external status and applies at most one round of
// transitions. Polling identical remote state twice produces no additional
// transitions or notifications.
func (t *Tracker) pollOnce(ctx context.Context, jobID string) (bool, error) {
	job, err := t.store.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job == nil || job.IsTerminal() {
		return true, nil
	}

	provider, err := t.registry.Get(providers.Type(job.Provider))
	if err != nil {
		return false, err
	}

	result, err := provider.Poll(ctx, job.ExternalID)
	if err != nil {
		return false, err
	}

	changed, err := t.apply(job, result)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	if err := t.store.SaveJob(ctx, job); err != nil {
		return false, err
	}
	if job.IsTerminal() {
		t.announce(ctx, job)
		return true, nil
	}
	return false, nil
}

// apply folds one poll observation into the job. Returns whether anything
// changed; transition side effects happen only on actual change.
func (t *Tracker) apply(job *Job, result providers.PollResult) (bool, error) {
	now := t.now().UTC()
	changed := false

	switch result.Status {
	case providers.StatusQueued:
		// Still waiting; only progress may move.
	case providers.StatusRunning:
		if job.State == StatePending {
			if err := job.Transition(StateProcessing, now); err != nil {
				return false, err
			}
			changed = true
		}
	case providers.StatusSucceeded:
		if job.State == StatePending {
			if err := job.Transition(StateProcessing, now); err != nil {
				return false, err
			}
		}
		if err := job.MarkCompleted(result.ResultURL, now); err != nil {
			return false, err
		}
		return true, nil
	case providers.StatusFailed:
		message := strings.TrimSpace(result.ErrorMessage)
		if message == "" {
			message = "external generation failed"
		}
		if err := job.MarkFailed(message, now); err != nil {
			return false, err
		}
		return true, nil
	case providers.StatusCancelled:
		if err := job.MarkCancelled(now); err != nil {
			return false, err
		}
		return true, nil
	}

	if result.Progress > job.Progress {
		job.Progress = result.Progress
		job.UpdatedAt = now
		changed = true
	}
	return changed, nil
}

func (t *Tracker) timeoutJob(ctx context.Context, jobID string, kind Kind) {
	job, err := t.store.GetJob(ctx, jobID)
	if err != nil || job == nil || job.IsTerminal() {
		return
	}
	message := fmt.Sprintf("%s generation timed out after %s", kind, t.timeoutFor(kind))
	if err := job.MarkFailed(message, t.now().UTC()); err != nil {
		t.logger.Error("failed to record job timeout",
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err),
		)
		return
	}
	if err := t.store.SaveJob(ctx, job); err != nil {
		t.logger.Error("failed to persist job timeout",
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err),
		)
		return
	}
	t.logger.Warn("job timed out",
		logging.String(logging.FieldJobID, jobID),
		logging.String(logging.FieldJobKind, string(kind)),
	)
	t.announce(ctx, job)
}

func (t *Tracker) announce(ctx context.Context, job *Job) {
	title := fmt.Sprintf("presentation %d", job.PresentationID)
	switch job.State {
	case StateCompleted:
		t.logger.Info("job completed",
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldJobKind, string(job.Kind)),
			logging.String("result_url", job.ResultURL),
			logging.String("annotation", job.Annotation),
		)
		if err := t.notifier.NotifyGenerationCompleted(ctx, string(job.Kind), title); err != nil {
			t.logger.Debug("completion notification failed", logging.Error(err))
		}
	case StateFailed:
		t.logger.Warn("job failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldJobKind, string(job.Kind)),
			logging.String("reason", job.ErrorMessage),
		)
		if err := t.notifier.NotifyGenerationFailed(ctx, string(job.Kind), title, job.ErrorMessage); err != nil {
			t.logger.Debug("failure notification failed", logging.Error(err))
		}
	}
}
