package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"slidecast/internal/config"
	"slidecast/internal/generation"
	"slidecast/internal/logging"
	"slidecast/internal/notifications"
	"slidecast/internal/rendering"
	"slidecast/internal/store"
	"slidecast/internal/workflow"
)

// supported registration extensions; decksh markup plus office documents
// handled by the soffice and graph backends.
var documentExtensions = map[string]struct{}{
	".dsh":  {},
	".xml":  {},
	".pptx": {},
	".odp":  {},
}

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	tracker  *generation.Tracker
	workflow *workflow.Manager

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, tracker *generation.Tracker, wf *workflow.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || tracker == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, tracker, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "slidecastd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		tracker:  tracker,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, recovers interrupted work, and launches
// the tracker and workflow manager.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another slidecast daemon instance is already running")
	}

	reset, err := d.store.ResetStuckProcessing(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("reset stuck presentations: %w", err)
	}
	if reset > 0 {
		d.logger.Info("reset interrupted presentations", logging.Int64("count", reset))
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.tracker.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start job tracker: %w", err)
	}
	if err := d.workflow.Start(runCtx); err != nil {
		d.tracker.Stop()
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("slidecast daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	d.tracker.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("slidecast daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// AddPresentation registers a slide deck document for processing. Documents
// are deduplicated by content fingerprint.
func (d *Daemon) AddPresentation(ctx context.Context, sourcePath string) (*store.Presentation, error) {
	pres, err := RegisterPresentation(ctx, d.store, sourcePath)
	if err != nil {
		return nil, err
	}
	d.logger.Info("presentation registered",
		logging.Int64(logging.FieldPresentationID, pres.ID),
		logging.String("source", pres.SourcePath))
	return pres, nil
}

// RegisterPresentation validates a source document and records it in the
// store, deduplicating by content fingerprint. Shared by the daemon and the
// CLI.
func RegisterPresentation(ctx context.Context, st *store.Store, sourcePath string) (*store.Presentation, error) {
	trimmed := strings.TrimSpace(sourcePath)
	if trimmed == "" {
		return nil, errors.New("source path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat source document: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source path %q is a directory", absPath)
	}
	ext := strings.ToLower(filepath.Ext(info.Name()))
	if _, ok := documentExtensions[ext]; !ok {
		return nil, fmt.Errorf("unsupported document extension %q", ext)
	}

	document, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}
	fingerprint := rendering.Fingerprint(document)

	if existing, err := st.FindByFingerprint(ctx, fingerprint); err != nil {
		return nil, fmt.Errorf("check for existing presentation: %w", err)
	} else if existing != nil {
		return existing, nil
	}

	title := strings.TrimSuffix(info.Name(), ext)
	pres, err := st.NewPresentation(ctx, title, absPath, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("register presentation: %w", err)
	}
	return pres, nil
}

// List returns presentations filtered by optional statuses.
func (d *Daemon) List(ctx context.Context, statuses []store.Status) ([]*store.Presentation, error) {
	if len(statuses) == 0 {
		return d.store.List(ctx)
	}
	return d.store.List(ctx, statuses...)
}

// ResetStuck transitions in-flight presentations back to the start of their
// stage.
func (d *Daemon) ResetStuck(ctx context.Context) (int64, error) {
	return d.store.ResetStuckProcessing(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
	}
}
