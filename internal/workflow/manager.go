package workflow

import (
	"log/slog"
	"sync"
	"time"

	"slidecast/internal/config"
	"slidecast/internal/logging"
	"slidecast/internal/notifications"
	"slidecast/internal/stage"
	"slidecast/internal/store"
)

// StageSet bundles the concrete pipeline handlers the manager orchestrates.
type StageSet struct {
	Renderer  stage.Handler
	Generator stage.Handler
	Composer  stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      store.Status
	processingStatus store.Status
	doneStatus       store.Status
}

// Manager coordinates presentation processing using registered stage handlers.
type Manager struct {
	cfg          *config.Config
	store        *store.Store
	logger       *slog.Logger
	pollInterval time.Duration
	notifier     notifications.Service

	heartbeat *HeartbeatMonitor

	stages       []pipelineStage
	stageByStart map[store.Status]pipelineStage
	statusOrder  []store.Status

	mu       sync.RWMutex
	running  bool
	cancel   func()
	wg       sync.WaitGroup
	lastErr  error
	lastPres *store.Presentation
}

// NewManager constructs a workflow manager using the configured notifier.
func NewManager(cfg *config.Config, st *store.Store, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, st, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier
// (used in tests).
func NewManagerWithNotifier(cfg *config.Config, st *store.Store, logger *slog.Logger, notifier notifications.Service) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:          cfg,
		store:        st,
		logger:       logger.With(logging.String(logging.FieldComponent, "workflow-manager")),
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			st,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
	}
}

// ConfigureStages registers the pipeline handlers in execution order. Must be
// called before Start.
func (m *Manager) ConfigureStages(set StageSet) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stages = nil
	if set.Renderer != nil {
		m.stages = append(m.stages, pipelineStage{
			name:             "renderer",
			handler:          set.Renderer,
			startStatus:      store.StatusPending,
			processingStatus: store.StatusRendering,
			doneStatus:       store.StatusRendered,
		})
	}
	if set.Generator != nil {
		m.stages = append(m.stages, pipelineStage{
			name:             "generator",
			handler:          set.Generator,
			startStatus:      store.StatusRendered,
			processingStatus: store.StatusGenerating,
			doneStatus:       store.StatusGenerated,
		})
	}
	if set.Composer != nil {
		m.stages = append(m.stages, pipelineStage{
			name:             "composer",
			handler:          set.Composer,
			startStatus:      store.StatusGenerated,
			processingStatus: store.StatusComposing,
			doneStatus:       store.StatusCompleted,
		})
	}

	m.stageByStart = make(map[store.Status]pipelineStage, len(m.stages))
	m.statusOrder = make([]store.Status, 0, len(m.stages))
	for _, stg := range m.stages {
		m.stageByStart[stg.startStatus] = stg
		m.statusOrder = append(m.statusOrder, stg.startStatus)
	}
}
