package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"slidecast/internal/logging"
	"slidecast/internal/services"
	"slidecast/internal/store"
)

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, pres *store.Presentation, stageErr error) {
	message := m.classifyStageFailure(stageName, stageErr)
	pres.SetFailed(message)

	m.logger.Error("stage failed",
		logging.String(logging.FieldStage, stageName),
		logging.Int64(logging.FieldPresentationID, pres.ID),
		logging.String("error_message", strings.TrimSpace(message)),
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.Error(stageErr),
	)

	if err := m.store.UpdatePresentation(ctx, pres); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not update stage failure")
		} else {
			m.logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	m.setLastPresentation(pres)
	if err := m.notifier.NotifyError(ctx, stageErr, fmt.Sprintf("%s: %s", stageName, pres.Title)); err != nil {
		m.logger.Warn("failed to send failure notification", logging.Error(err))
	}
}

func (m *Manager) classifyStageFailure(stageName string, stageErr error) string {
	if stageErr == nil {
		return fmt.Sprintf("%s failed without error detail", stageName)
	}
	message := strings.TrimSpace(services.Reason(stageErr))
	if message == "" {
		message = fmt.Sprintf("%s failed", stageName)
	}
	return message
}

func (m *Manager) notifyStageCompleted(ctx context.Context, stageName string, pres *store.Presentation) {
	var err error
	switch stageName {
	case "renderer":
		err = m.notifier.NotifyRenderingCompleted(ctx, pres.Title, pres.SlideCount)
	case "generator":
		err = m.notifier.NotifyGenerationCompleted(ctx, "avatar", pres.Title)
	case "composer":
		err = m.notifier.NotifyPresentationReady(ctx, pres.Title, pres.FinalVideoURL)
	}
	if err != nil {
		m.logger.Warn("failed to send completion notification",
			logging.String(logging.FieldStage, stageName),
			logging.Error(err))
	}
}
