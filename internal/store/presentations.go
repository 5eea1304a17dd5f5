package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const presentationColumns = "id, title, source_path, fingerprint, slide_count, status, error_message, progress_stage, progress_percent, progress_message, intro_video_url, final_video_url, created_at, updated_at, last_heartbeat"

// NewPresentation inserts a presentation awaiting rendering. The fingerprint
// identifies the document content and must be unique.
func (s *Store) NewPresentation(ctx context.Context, title, sourcePath, fingerprint string) (*Presentation, error) {
	if strings.TrimSpace(fingerprint) == "" {
		return nil, errors.New("fingerprint required")
	}
	if strings.TrimSpace(title) == "" {
		title = inferTitleFromPath(sourcePath)
	}
	timestamp := formatTime(time.Now())

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO presentations (
            title, source_path, fingerprint, status, created_at, updated_at, progress_percent
        ) VALUES (?, ?, ?, ?, ?, ?, 0)`,
		title,
		nullableString(sourcePath),
		fingerprint,
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert presentation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetPresentation(ctx, id)
}

// GetPresentation fetches a presentation by id. Returns nil when absent.
func (s *Store) GetPresentation(ctx context.Context, id int64) (*Presentation, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+presentationColumns+` FROM presentations WHERE id = ?`,
		id,
	)
	pres, err := scanPresentation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get presentation: %w", err)
	}
	return pres, nil
}

// FindByFingerprint returns the presentation with the given document
// fingerprint, or nil.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) (*Presentation, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+presentationColumns+` FROM presentations WHERE fingerprint = ?`,
		fingerprint,
	)
	pres, err := scanPresentation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by fingerprint: %w", err)
	}
	return pres, nil
}

// UpdatePresentation persists all mutable presentation fields.
func (s *Store) UpdatePresentation(ctx context.Context, pres *Presentation) error {
	if pres == nil {
		return errors.New("presentation required")
	}
	pres.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE presentations SET
            title = ?, source_path = ?, fingerprint = ?, slide_count = ?, status = ?,
            error_message = ?, progress_stage = ?, progress_percent = ?, progress_message = ?,
            intro_video_url = ?, final_video_url = ?, updated_at = ?, last_heartbeat = ?
        WHERE id = ?`,
		pres.Title,
		nullableString(pres.SourcePath),
		nullableString(pres.Fingerprint),
		pres.SlideCount,
		pres.Status,
		nullableString(pres.ErrorMessage),
		nullableString(pres.ProgressStage),
		pres.ProgressPercent,
		nullableString(pres.ProgressMessage),
		nullableString(pres.IntroVideoURL),
		nullableString(pres.FinalVideoURL),
		formatTime(pres.UpdatedAt),
		nullableTimePtr(pres.LastHeartbeat),
		pres.ID,
	); err != nil {
		return fmt.Errorf("update presentation: %w", err)
	}
	return nil
}

// List returns presentations ordered by id, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Presentation, error) {
	query := `SELECT ` + presentationColumns + ` FROM presentations`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list presentations: %w", err)
	}
	defer rows.Close()

	var items []*Presentation
	for rows.Next() {
		pres, err := scanPresentation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan presentation: %w", err)
		}
		items = append(items, pres)
	}
	return items, rows.Err()
}

// Stats returns presentation counts grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(*) FROM presentations GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("presentation stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var raw string
		var count int
		if err := rows.Scan(&raw, &count); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		if status, ok := ParseStatus(raw); ok {
			stats[status] = count
		}
	}
	return stats, rows.Err()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight presentation.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := formatTime(time.Now())
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE presentations SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now,
		now,
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ResetStuckProcessing returns presentations stuck in processing states to
// the start of their current stage, typically after an unclean shutdown.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE presentations
         SET status = CASE status
             WHEN ? THEN ?
             WHEN ? THEN ?
             WHEN ? THEN ?
             ELSE status
         END,
             progress_stage = 'Reset from stuck processing',
             progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?, ?)`,
		StatusRendering, stageRollbackTransitions[StatusRendering],
		StatusGenerating, stageRollbackTransitions[StatusGenerating],
		StatusComposing, stageRollbackTransitions[StatusComposing],
		formatTime(time.Now()),
		StatusRendering,
		StatusGenerating,
		StatusComposing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck presentations: %w", err)
	}
	return res.RowsAffected()
}

// ReclaimStaleProcessing rolls back in-flight presentations whose heartbeat
// expired before the cutoff.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE presentations
         SET status = CASE status
             WHEN ? THEN ?
             WHEN ? THEN ?
             WHEN ? THEN ?
             ELSE status
         END,
             progress_stage = 'Reclaimed from stale processing',
             progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?, ?) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusRendering, stageRollbackTransitions[StatusRendering],
		StatusGenerating, stageRollbackTransitions[StatusGenerating],
		StatusComposing, stageRollbackTransitions[StatusComposing],
		formatTime(time.Now()),
		StatusRendering,
		StatusGenerating,
		StatusComposing,
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale presentations: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed returns a failed presentation to the pipeline. Work resumes at
// the earliest stage whose output is missing: unrendered presentations start
// over from pending, everything else from rendered. Stages skip artifacts
// that already exist, so re-running earlier stages is cheap.
func (s *Store) RetryFailed(ctx context.Context, id int64) (*Presentation, error) {
	pres, err := s.GetPresentation(ctx, id)
	if err != nil {
		return nil, err
	}
	if pres == nil {
		return nil, fmt.Errorf("presentation %d not found", id)
	}
	if pres.Status != StatusFailed {
		return nil, fmt.Errorf("presentation %d is %s, only failed presentations can be retried", id, pres.Status)
	}

	pres.Status = StatusRendered
	if pres.SlideCount < 1 {
		pres.Status = StatusPending
	}
	pres.ErrorMessage = ""
	pres.SetProgress("Retry", "Queued for retry", 0)
	pres.LastHeartbeat = nil
	if err := s.UpdatePresentation(ctx, pres); err != nil {
		return nil, fmt.Errorf("persist retry: %w", err)
	}
	return pres, nil
}

// FailProcessing marks all in-flight presentations failed with the given
// reason, used at daemon shutdown.
func (s *Store) FailProcessing(ctx context.Context, reason string) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE presentations
         SET status = ?, error_message = ?, progress_stage = 'Failed',
             progress_percent = 0, progress_message = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?, ?)`,
		StatusFailed,
		reason,
		reason,
		formatTime(time.Now()),
		StatusRendering,
		StatusGenerating,
		StatusComposing,
	)
	if err != nil {
		return 0, fmt.Errorf("fail processing presentations: %w", err)
	}
	return res.RowsAffected()
}

// Delete removes a presentation and, through cascading foreign keys, its
// narratives, intro videos, and job records.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM presentations WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete presentation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func scanPresentation(scanner interface{ Scan(dest ...any) error }) (*Presentation, error) {
	var (
		id              int64
		title           sql.NullString
		sourcePath      sql.NullString
		fingerprint     sql.NullString
		slideCount      sql.NullInt64
		statusStr       string
		errorMessage    sql.NullString
		progressStage   sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		introVideoURL   sql.NullString
		finalVideoURL   sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
		heartbeatRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&sourcePath,
		&fingerprint,
		&slideCount,
		&statusStr,
		&errorMessage,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&introVideoURL,
		&finalVideoURL,
		&createdRaw,
		&updatedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	status, ok := ParseStatus(statusStr)
	if !ok {
		return nil, fmt.Errorf("unknown presentation status %q", statusStr)
	}

	return &Presentation{
		ID:              id,
		Title:           title.String,
		SourcePath:      sourcePath.String,
		Fingerprint:     fingerprint.String,
		SlideCount:      int(slideCount.Int64),
		Status:          status,
		ErrorMessage:    errorMessage.String,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		IntroVideoURL:   introVideoURL.String,
		FinalVideoURL:   finalVideoURL.String,
		CreatedAt:       parseTime(createdRaw),
		UpdatedAt:       parseTime(updatedRaw),
		LastHeartbeat:   parseTimePtr(heartbeatRaw),
	}, nil
}

func inferTitleFromPath(path string) string {
	base := filepath.Base(strings.TrimSpace(path))
	if base == "." || base == "/" || base == "" {
		return "Untitled"
	}
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" {
		return base
	}
	return name
}
