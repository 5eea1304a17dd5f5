package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"slidecast/internal/logging"
	"slidecast/internal/services"
	"slidecast/internal/stage"
	"slidecast/internal/store"
)

func (m *Manager) processPresentation(ctx context.Context, pres *store.Presentation) error {
	stg, ok := m.stageByStart[pres.Status]
	if !ok {
		m.logger.Warn("no stage configured for status", logging.String("status", string(pres.Status)))
		m.waitForWorkOrShutdown(ctx)
		return nil
	}

	requestID := uuid.NewString()
	stageCtx := services.WithRequestID(services.WithPresentationID(services.WithStage(ctx, stg.name), pres.ID), requestID)
	stageLogger := m.logger.With(
		logging.String(logging.FieldStage, stg.name),
		logging.Int64(logging.FieldPresentationID, pres.ID),
		logging.String(logging.FieldRequestID, requestID),
	)

	if err := m.transitionToProcessing(stageCtx, stg, pres); err != nil {
		stageLogger.Error("failed to transition presentation to processing", logging.Error(err))
		m.setLastError(err)
		return err
	}

	return m.executeStage(stageCtx, stageLogger, stg, pres)
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, pres *store.Presentation) error {
	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(stg.processingStatus)),
		logging.String("title", strings.TrimSpace(pres.Title)),
		logging.String("source_file", strings.TrimSpace(pres.SourcePath)),
	)

	if err := stg.handler.Prepare(ctx, pres); err != nil {
		m.handleStageFailure(ctx, stg.name, pres, err)
		m.setLastError(err)
		return err
	}
	if err := m.store.UpdatePresentation(ctx, pres); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	execErr := m.executeWithHeartbeat(ctx, stg.handler, pres)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		m.handleStageFailure(ctx, stg.name, pres, execErr)
		m.setLastError(execErr)
		return execErr
	}

	if pres.Status == stg.processingStatus || pres.Status == "" {
		pres.Status = stg.doneStatus
	}
	pres.LastHeartbeat = nil
	if pres.Status == store.StatusCompleted {
		if pres.ProgressPercent < 100 {
			pres.ProgressPercent = 100
		}
		if strings.TrimSpace(pres.ProgressMessage) == "" {
			pres.ProgressMessage = "Completed"
		}
		pres.ProgressStage = "Completed"
	}
	if err := m.store.UpdatePresentation(ctx, pres); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(pres.Status)),
		logging.String("progress_stage", strings.TrimSpace(pres.ProgressStage)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastPresentation(pres)
	m.notifyStageCompleted(ctx, stg.name, pres)
	return nil
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, pres *store.Presentation) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, pres.ID)

	execErr := handler.Execute(ctx, pres)
	hbCancel()
	hbWG.Wait()
	return execErr
}

func (m *Manager) transitionToProcessing(ctx context.Context, stg pipelineStage, pres *store.Presentation) error {
	if stg.processingStatus == "" {
		return errors.New("processing status must not be empty")
	}

	now := time.Now().UTC()
	pres.Status = stg.processingStatus
	pres.SetProgress(stg.name, fmt.Sprintf("%s started", stg.name), 0)
	pres.ErrorMessage = ""
	pres.LastHeartbeat = &now
	if err := m.store.UpdatePresentation(ctx, pres); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}
	m.setLastPresentation(pres)
	return nil
}
