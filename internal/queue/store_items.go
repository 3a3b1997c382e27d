package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"montage/internal/services"
)

const jobColumns = `id, owner_id, entity_id, scenes_json, style, aspect_ratio,
    narration_script, voice_id, background_track_id, background_volume, priority,
    status, attempts, output_url, thumbnail_url, duration_seconds, error_message,
    created_at, updated_at, completed_at`

// NewJob validates the spec and inserts a pending job.
func (s *Store) NewJob(ctx context.Context, spec JobSpec) (*Job, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	scenesJSON, err := json.Marshal(spec.Scenes)
	if err != nil {
		return nil, fmt.Errorf("marshal scenes: %w", err)
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            owner_id, entity_id, scenes_json, style, aspect_ratio,
            narration_script, voice_id, background_track_id, background_volume,
            priority, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		spec.OwnerID,
		spec.EntityID,
		string(scenesJSON),
		spec.Style,
		spec.AspectRatio,
		spec.NarrationScript,
		spec.VoiceID,
		spec.BackgroundTrackID,
		spec.BackgroundVolume,
		spec.Priority,
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. Returns a not-found tagged error when
// the id is unknown.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "", "get job", fmt.Sprintf("job %d", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// Update persists mutable job fields. Terminal rows are immutable: the write
// is conditional on the stored status, so a completed or failed job can only
// be revived through ResetForRetry.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is required")
	}
	job.UpdatedAt = time.Now().UTC()

	var completedAt any
	if job.CompletedAt != nil {
		completedAt = job.CompletedAt.UTC().Format(time.RFC3339Nano)
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET
            status = ?, attempts = ?, output_url = ?, thumbnail_url = ?,
            duration_seconds = ?, error_message = ?, updated_at = ?, completed_at = ?
        WHERE id = ? AND status NOT IN (?, ?)`,
		string(job.Status),
		job.Attempts,
		job.OutputURL,
		job.ThumbnailURL,
		job.DurationSeconds,
		job.ErrorMessage,
		job.UpdatedAt.Format(time.RFC3339Nano),
		completedAt,
		job.ID,
		string(StatusCompleted),
		string(StatusFailed),
	)
	if err != nil {
		return fmt.Errorf("update job %d: %w", job.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job %d: rows affected: %w", job.ID, err)
	}
	if affected == 0 {
		current, getErr := s.GetByID(ctx, job.ID)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("job %d is %s and immutable", job.ID, current.Status)
	}
	return nil
}

// ClaimNextPending atomically claims the next pending job ordered by priority
// then age, transitioning it to the first pipeline stage and counting the
// attempt. Returns nil when the queue is empty.
func (s *Store) ClaimNextPending(ctx context.Context) (*Job, error) {
	ctx = ensureContext(ctx)
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	var id int64
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`UPDATE jobs SET status = ?, attempts = attempts + 1, updated_at = ?
            WHERE id = (
                SELECT id FROM jobs WHERE status = ?
                ORDER BY priority DESC, created_at ASC, id ASC LIMIT 1
            )
            RETURNING id`,
			string(StatusGeneratingScenes),
			timestamp,
			string(StatusPending),
		)
		return row.Scan(&id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next pending: %w", err)
	}
	return s.GetByID(ctx, id)
}

// ResetForRetry returns a failed job to the first pipeline stage for another
// attempt, clearing the previous error. It is the only sanctioned transition
// out of the failed state.
func (s *Store) ResetForRetry(ctx context.Context, id int64) (*Job, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, error_message = '', attempts = attempts + 1, updated_at = ?
        WHERE id = ? AND status = ?`,
		string(StatusGeneratingScenes),
		timestamp,
		id,
		string(StatusFailed),
	)
	if err != nil {
		return nil, fmt.Errorf("reset job %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("reset job %d: rows affected: %w", id, err)
	}
	if affected == 0 {
		return nil, services.Wrap(services.ErrNotFound, "", "reset job", fmt.Sprintf("job %d is not failed", id), nil)
	}
	return s.GetByID(ctx, id)
}

// RequeueFailed returns a failed job to the pending queue for a fresh
// lifecycle, clearing the previous error and attempt count. Used by operator
// tooling; the in-process retry path goes through ResetForRetry instead.
func (s *Store) RequeueFailed(ctx context.Context, id int64) (*Job, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, error_message = '', attempts = 0, updated_at = ?
        WHERE id = ? AND status = ?`,
		string(StatusPending),
		timestamp,
		id,
		string(StatusFailed),
	)
	if err != nil {
		return nil, fmt.Errorf("requeue job %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("requeue job %d: rows affected: %w", id, err)
	}
	if affected == 0 {
		return nil, services.Wrap(services.ErrNotFound, "", "requeue job", fmt.Sprintf("job %d is not failed", id), nil)
	}
	return s.GetByID(ctx, id)
}

// Delete removes a job row entirely.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete job %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete job %d: rows affected: %w", id, err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "", "delete job", fmt.Sprintf("job %d", id), nil)
	}
	return nil
}

// ListOptions filters and paginates job listings.
type ListOptions struct {
	Owner  string
	Entity string
	Status Status
	Limit  int
	Offset int
}

// ListResult is one page of jobs plus pagination metadata.
type ListResult struct {
	Jobs    []*Job
	Total   int
	HasMore bool
}

// List returns jobs filtered by owner/entity/status, newest first, with
// limit/offset pagination and a total count.
func (s *Store) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	ctx = ensureContext(ctx)

	where := " WHERE 1=1"
	args := make([]any, 0, 3)
	if opts.Owner != "" {
		where += " AND owner_id = ?"
		args = append(args, opts.Owner)
	}
	if opts.Entity != "" {
		where += " AND entity_id = ?"
		args = append(args, opts.Entity)
	}
	if opts.Status != "" {
		where += " AND status = ?"
		args = append(args, string(opts.Status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM jobs`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + jobColumns + ` FROM jobs` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*Job, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	return &ListResult{
		Jobs:    jobs,
		Total:   total,
		HasMore: offset+len(jobs) < total,
	}, nil
}

// HealthSummary describes aggregated job counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
}

// Health aggregates job counts for status output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("job health: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, fmt.Errorf("job health scan: %w", err)
		}
		summary.Total += count
		parsed, ok := ParseStatus(status)
		if !ok {
			continue
		}
		switch {
		case parsed == StatusPending:
			summary.Pending += count
		case parsed == StatusCompleted:
			summary.Completed += count
		case parsed == StatusFailed:
			summary.Failed += count
		case parsed.IsProcessing():
			summary.Processing += count
		}
	}
	return summary, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		job         Job
		scenesJSON  string
		createdAt   string
		updatedAt   string
		completedAt sql.NullString
		status      string
	)
	err := scanner.Scan(
		&job.ID,
		&job.OwnerID,
		&job.EntityID,
		&scenesJSON,
		&job.Style,
		&job.AspectRatio,
		&job.NarrationScript,
		&job.VoiceID,
		&job.BackgroundTrackID,
		&job.BackgroundVolume,
		&job.Priority,
		&status,
		&job.Attempts,
		&job.OutputURL,
		&job.ThumbnailURL,
		&job.DurationSeconds,
		&job.ErrorMessage,
		&createdAt,
		&updatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Status = Status(status)
	if err := json.Unmarshal([]byte(scenesJSON), &job.Scenes); err != nil {
		return nil, fmt.Errorf("decode scenes: %w", err)
	}
	if job.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if job.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if completedAt.Valid && completedAt.String != "" {
		ts, err := parseTimestamp(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		job.CompletedAt = &ts
	}
	return &job, nil
}

func parseTimestamp(value string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}
