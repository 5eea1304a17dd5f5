package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const narrativeColumns = "id, presentation_id, slide_number, narrative_text, enhanced_text, audio_url, avatar_video_url, avatar_job_id, created_at, updated_at"

const introColumns = "id, presentation_id, job_id, video_url, generating, created_at, updated_at"

// SaveSlideNarrative appends a narrative row for a slide. Earlier rows for
// the same slide are retained; readers use the latest.
func (s *Store) SaveSlideNarrative(ctx context.Context, narrative *SlideNarrative) (*SlideNarrative, error) {
	if narrative == nil {
		return nil, errors.New("narrative required")
	}
	if narrative.PresentationID == 0 {
		return nil, errors.New("presentation id required")
	}
	if narrative.SlideNumber < 1 {
		return nil, errors.New("slide number must be 1-based")
	}
	timestamp := formatTime(time.Now())

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO slide_narratives (
            presentation_id, slide_number, narrative_text, enhanced_text,
            audio_url, avatar_video_url, avatar_job_id, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		narrative.PresentationID,
		narrative.SlideNumber,
		nullableString(narrative.NarrativeText),
		nullableString(narrative.EnhancedText),
		nullableString(narrative.AudioURL),
		nullableString(narrative.AvatarVideoURL),
		nullableString(narrative.AvatarJobID),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert slide narrative: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.getSlideNarrative(ctx, id)
}

// UpdateSlideNarrative persists mutable asset fields on an existing row.
func (s *Store) UpdateSlideNarrative(ctx context.Context, narrative *SlideNarrative) error {
	if narrative == nil || narrative.ID == 0 {
		return errors.New("persisted narrative required")
	}
	narrative.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE slide_narratives SET
            narrative_text = ?, enhanced_text = ?, audio_url = ?,
            avatar_video_url = ?, avatar_job_id = ?, updated_at = ?
        WHERE id = ?`,
		nullableString(narrative.NarrativeText),
		nullableString(narrative.EnhancedText),
		nullableString(narrative.AudioURL),
		nullableString(narrative.AvatarVideoURL),
		nullableString(narrative.AvatarJobID),
		formatTime(narrative.UpdatedAt),
		narrative.ID,
	); err != nil {
		return fmt.Errorf("update slide narrative: %w", err)
	}
	return nil
}

// LatestNarratives returns the newest narrative row per slide for a
// presentation, ordered by slide number.
func (s *Store) LatestNarratives(ctx context.Context, presentationID int64) ([]*SlideNarrative, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+narrativeColumns+` FROM slide_narratives
         WHERE id IN (
             SELECT MAX(id) FROM slide_narratives
             WHERE presentation_id = ?
             GROUP BY slide_number
         )
         ORDER BY slide_number ASC`,
		presentationID,
	)
	if err != nil {
		return nil, fmt.Errorf("latest narratives: %w", err)
	}
	defer rows.Close()

	var narratives []*SlideNarrative
	for rows.Next() {
		narrative, err := scanNarrative(rows)
		if err != nil {
			return nil, fmt.Errorf("scan narrative: %w", err)
		}
		narratives = append(narratives, narrative)
	}
	return narratives, rows.Err()
}

// LatestNarrativeForSlide returns the newest narrative row for one slide, or nil.
func (s *Store) LatestNarrativeForSlide(ctx context.Context, presentationID int64, slideNumber int) (*SlideNarrative, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+narrativeColumns+` FROM slide_narratives
         WHERE presentation_id = ? AND slide_number = ?
         ORDER BY id DESC LIMIT 1`,
		presentationID,
		slideNumber,
	)
	narrative, err := scanNarrative(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest narrative for slide: %w", err)
	}
	return narrative, nil
}

// SaveIntroVideo appends an intro video row for a presentation.
func (s *Store) SaveIntroVideo(ctx context.Context, intro *IntroVideo) (*IntroVideo, error) {
	if intro == nil {
		return nil, errors.New("intro video required")
	}
	if intro.PresentationID == 0 {
		return nil, errors.New("presentation id required")
	}
	timestamp := formatTime(time.Now())

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO intro_videos (
            presentation_id, job_id, video_url, generating, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?)`,
		intro.PresentationID,
		nullableString(intro.JobID),
		nullableString(intro.VideoURL),
		boolToInt(intro.Generating),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert intro video: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.getIntroVideo(ctx, id)
}

// UpdateIntroVideo persists mutable fields on an existing intro video row.
func (s *Store) UpdateIntroVideo(ctx context.Context, intro *IntroVideo) error {
	if intro == nil || intro.ID == 0 {
		return errors.New("persisted intro video required")
	}
	intro.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE intro_videos SET job_id = ?, video_url = ?, generating = ?, updated_at = ? WHERE id = ?`,
		nullableString(intro.JobID),
		nullableString(intro.VideoURL),
		boolToInt(intro.Generating),
		formatTime(intro.UpdatedAt),
		intro.ID,
	); err != nil {
		return fmt.Errorf("update intro video: %w", err)
	}
	return nil
}

// LatestIntroVideo returns the newest intro video row for a presentation, or nil.
func (s *Store) LatestIntroVideo(ctx context.Context, presentationID int64) (*IntroVideo, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+introColumns+` FROM intro_videos
         WHERE presentation_id = ?
         ORDER BY id DESC LIMIT 1`,
		presentationID,
	)
	intro, err := scanIntro(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest intro video: %w", err)
	}
	return intro, nil
}

func (s *Store) getSlideNarrative(ctx context.Context, id int64) (*SlideNarrative, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+narrativeColumns+` FROM slide_narratives WHERE id = ?`,
		id,
	)
	narrative, err := scanNarrative(row)
	if err != nil {
		return nil, fmt.Errorf("get slide narrative: %w", err)
	}
	return narrative, nil
}

func (s *Store) getIntroVideo(ctx context.Context, id int64) (*IntroVideo, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+introColumns+` FROM intro_videos WHERE id = ?`,
		id,
	)
	intro, err := scanIntro(row)
	if err != nil {
		return nil, fmt.Errorf("get intro video: %w", err)
	}
	return intro, nil
}

func scanNarrative(scanner interface{ Scan(dest ...any) error }) (*SlideNarrative, error) {
	var (
		id             int64
		presentationID int64
		slideNumber    int64
		narrativeText  sql.NullString
		enhancedText   sql.NullString
		audioURL       sql.NullString
		avatarVideoURL sql.NullString
		avatarJobID    sql.NullString
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&presentationID,
		&slideNumber,
		&narrativeText,
		&enhancedText,
		&audioURL,
		&avatarVideoURL,
		&avatarJobID,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	return &SlideNarrative{
		ID:             id,
		PresentationID: presentationID,
		SlideNumber:    int(slideNumber),
		NarrativeText:  narrativeText.String,
		EnhancedText:   enhancedText.String,
		AudioURL:       audioURL.String,
		AvatarVideoURL: avatarVideoURL.String,
		AvatarJobID:    avatarJobID.String,
		CreatedAt:      parseTime(createdRaw),
		UpdatedAt:      parseTime(updatedRaw),
	}, nil
}

func scanIntro(scanner interface{ Scan(dest ...any) error }) (*IntroVideo, error) {
	var (
		id             int64
		presentationID int64
		jobID          sql.NullString
		videoURL       sql.NullString
		generating     sql.NullInt64
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&presentationID,
		&jobID,
		&videoURL,
		&generating,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	return &IntroVideo{
		ID:             id,
		PresentationID: presentationID,
		JobID:          jobID.String,
		VideoURL:       videoURL.String,
		Generating:     generating.Int64 != 0,
		CreatedAt:      parseTime(createdRaw),
		UpdatedAt:      parseTime(updatedRaw),
	}, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
