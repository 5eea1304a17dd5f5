package workflow

import (
	"context"
	"errors"
	"time"

	"slidecast/internal/logging"
	"slidecast/internal/stage"
	"slidecast/internal/store"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.statusOrder) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.heartbeat.ReclaimStale(ctx); err != nil {
			m.logger.Warn("reclaim stale processing failed; stuck presentations may remain",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
				logging.String(logging.FieldErrorHint, "check database access"),
			)
		}

		pres, err := m.nextProcessable(ctx)
		if err != nil {
			m.handleNextError(ctx, err)
			continue
		}
		if pres == nil {
			m.waitForWorkOrShutdown(ctx)
			continue
		}

		if err := m.processPresentation(ctx, pres); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

// nextProcessable returns the oldest presentation whose stage is willing to
// take it. Presentations held back by an input gate stay in their start
// status and do not block younger work behind them.
func (m *Manager) nextProcessable(ctx context.Context) (*store.Presentation, error) {
	candidates, err := m.store.List(ctx, m.statusOrder...)
	if err != nil {
		return nil, err
	}
	for _, pres := range candidates {
		stg, ok := m.stageByStart[pres.Status]
		if !ok {
			continue
		}
		gate, gated := stg.handler.(stage.InputGate)
		if !gated {
			return pres, nil
		}
		ready, reason, err := gate.ReadyForWork(ctx, pres)
		if err != nil {
			m.logger.Warn("stage readiness check failed",
				logging.String(logging.FieldStage, stg.name),
				logging.Int64(logging.FieldPresentationID, pres.ID),
				logging.Error(err),
			)
			continue
		}
		if !ready {
			m.logger.Debug("presentation waiting for input",
				logging.String(logging.FieldStage, stg.name),
				logging.Int64(logging.FieldPresentationID, pres.ID),
				logging.String("reason", reason),
			)
			continue
		}
		return pres, nil
	}
	return nil, nil
}

func (m *Manager) handleNextError(ctx context.Context, err error) {
	m.setLastError(err)
	m.logger.Error("failed to fetch next presentation",
		logging.Error(err),
		logging.String(logging.FieldEventType, "store_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check database access"),
	)
	select {
	case <-ctx.Done():
		return
	case <-time.After(time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second):
	}
}

func (m *Manager) waitForWorkOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(m.pollInterval):
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastPresentation(pres *store.Presentation) {
	m.mu.Lock()
	if pres != nil {
		cp := *pres
		m.lastPres = &cp
	} else {
		m.lastPres = nil
	}
	m.mu.Unlock()
}
