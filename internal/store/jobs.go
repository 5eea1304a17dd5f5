package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"slidecast/internal/generation"
)

const jobColumns = "id, presentation_id, slide_number, kind, provider, external_id, state, progress, result_url, error_message, annotation, created_at, updated_at, started_at, completed_at"

// SaveJob inserts or replaces a generation job record.
func (s *Store) SaveJob(ctx context.Context, job *generation.Job) error {
	if job == nil || job.ID == "" {
		return errors.New("job with id required")
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	job.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO generation_jobs (
            id, presentation_id, slide_number, kind, provider, external_id, state,
            progress, result_url, error_message, annotation,
            created_at, updated_at, started_at, completed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            external_id = excluded.external_id,
            state = excluded.state,
            progress = excluded.progress,
            result_url = excluded.result_url,
            error_message = excluded.error_message,
            annotation = excluded.annotation,
            updated_at = excluded.updated_at,
            started_at = excluded.started_at,
            completed_at = excluded.completed_at`,
		job.ID,
		job.PresentationID,
		job.SlideNumber,
		string(job.Kind),
		nullableString(job.Provider),
		nullableString(job.ExternalID),
		string(job.State),
		job.Progress,
		nullableString(job.ResultURL),
		nullableString(job.ErrorMessage),
		nullableString(job.Annotation),
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
		nullableTimePtr(job.StartedAt),
		nullableTimePtr(job.CompletedAt),
	); err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

// GetJob fetches a generation job by id. Returns nil when absent.
func (s *Store) GetJob(ctx context.Context, id string) (*generation.Job, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+jobColumns+` FROM generation_jobs WHERE id = ?`,
		id,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ActiveJobs returns all jobs not yet in a terminal state.
func (s *Store) ActiveJobs(ctx context.Context) ([]*generation.Job, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+jobColumns+` FROM generation_jobs
         WHERE state IN (?, ?)
         ORDER BY created_at ASC`,
		generation.StatePending,
		generation.StateProcessing,
	)
	if err != nil {
		return nil, fmt.Errorf("active jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// JobsForPresentation returns all job records for a presentation, newest first.
func (s *Store) JobsForPresentation(ctx context.Context, presentationID int64) ([]*generation.Job, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+jobColumns+` FROM generation_jobs
         WHERE presentation_id = ?
         ORDER BY created_at DESC`,
		presentationID,
	)
	if err != nil {
		return nil, fmt.Errorf("jobs for presentation: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// LatestJobForKind returns the newest job of the given kind for a
// presentation (slide-level jobs are matched by slide number), or nil.
func (s *Store) LatestJobForKind(ctx context.Context, presentationID int64, kind generation.Kind, slideNumber int) (*generation.Job, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+jobColumns+` FROM generation_jobs
         WHERE presentation_id = ? AND kind = ? AND slide_number = ?
         ORDER BY created_at DESC LIMIT 1`,
		presentationID,
		string(kind),
		slideNumber,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest job for kind: %w", err)
	}
	return job, nil
}

func collectJobs(rows *sql.Rows) ([]*generation.Job, error) {
	var jobs []*generation.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*generation.Job, error) {
	var (
		id             string
		presentationID int64
		slideNumber    int64
		kindStr        string
		provider       sql.NullString
		externalID     sql.NullString
		stateStr       string
		progress       sql.NullFloat64
		resultURL      sql.NullString
		errorMessage   sql.NullString
		annotation     sql.NullString
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
		startedRaw     sql.NullString
		completedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&presentationID,
		&slideNumber,
		&kindStr,
		&provider,
		&externalID,
		&stateStr,
		&progress,
		&resultURL,
		&errorMessage,
		&annotation,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	state, ok := generation.ParseState(stateStr)
	if !ok {
		return nil, fmt.Errorf("unknown job state %q", stateStr)
	}
	kind, ok := generation.ParseKind(kindStr)
	if !ok {
		return nil, fmt.Errorf("unknown job kind %q", kindStr)
	}

	return &generation.Job{
		ID:             id,
		PresentationID: presentationID,
		SlideNumber:    int(slideNumber),
		Kind:           kind,
		Provider:       provider.String,
		ExternalID:     externalID.String,
		State:          state,
		Progress:       progress.Float64,
		ResultURL:      resultURL.String,
		ErrorMessage:   errorMessage.String,
		Annotation:     annotation.String,
		CreatedAt:      parseTime(createdRaw),
		UpdatedAt:      parseTime(updatedRaw),
		StartedAt:      parseTimePtr(startedRaw),
		CompletedAt:    parseTimePtr(completedRaw),
	}, nil
}
