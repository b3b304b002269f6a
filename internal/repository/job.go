package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/docextract/internal/domain"
	"github.com/cloo-solutions/docextract/internal/pagination"
	"github.com/cloo-solutions/docextract/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const jobColumns = `id, document_name, mode, text, source_key, status, retries, error, run_id, result_key, created_at, processed_at`

type JobRepository struct {
	db dbtx
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{db: pool}
}

func NewJobRepositoryWithTx(tx pgx.Tx) *JobRepository {
	return &JobRepository{db: tx}
}

func scanJob(row pgx.Row) (*domain.ExtractionJob, error) {
	var job domain.ExtractionJob
	var text, sourceKey, errMsg, runID, resultKey *string
	err := row.Scan(&job.ID, &job.DocumentName, &job.Mode, &text, &sourceKey, &job.Status, &job.Retries,
		&errMsg, &runID, &resultKey, &job.CreatedAt, &job.ProcessedAt)
	if err != nil {
		return nil, err
	}
	job.Text = deref(text)
	job.SourceKey = deref(sourceKey)
	job.Error = deref(errMsg)
	job.RunID = deref(runID)
	job.ResultKey = deref(resultKey)
	return &job, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func collectJobs(rows pgx.Rows) ([]*domain.ExtractionJob, error) {
	defer rows.Close()

	jobs := []*domain.ExtractionJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *JobRepository) Create(ctx context.Context, job *domain.ExtractionJob) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO extraction_jobs (`+jobColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		job.ID, job.DocumentName, job.Mode, nullableString(job.Text), nullableString(job.SourceKey), job.Status, job.Retries,
		nullableString(job.Error), nullableString(job.RunID), nullableString(job.ResultKey), job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.ExtractionJob, error) {
	job, err := scanJob(r.db.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM extraction_jobs WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListWithCursor pages through jobs newest first. An empty status lists all.
func (r *JobRepository) ListWithCursor(ctx context.Context, status domain.ExtractionJobStatus, cursor *pagination.Cursor, limit int) (*service.JobPageResult, error) {
	limit = pagination.NormalizeLimit(limit)

	var (
		where []string
		args  []any
	)
	if status != "" {
		args = append(args, status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if cursor != nil {
		args = append(args, cursor.Timestamp, cursor.LastID)
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, limit+1)

	query := `SELECT ` + jobColumns + ` FROM extraction_jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, err
	}

	items, next, hasMore := pagination.Trim(jobs, limit, func(j *domain.ExtractionJob) (string, time.Time) {
		return j.ID, j.CreatedAt
	})
	return &service.JobPageResult{
		Items:      items,
		NextCursor: next,
		HasMore:    hasMore,
	}, nil
}

// ClaimPending moves up to limit pending jobs to processing, oldest first,
// skipping rows already locked by another worker.
func (r *JobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.ExtractionJob, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM extraction_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE extraction_jobs j
		 SET status = $3,
		     processed_at = NULL
		 FROM cte
		 WHERE j.id = cte.id
		 RETURNING j.id, j.document_name, j.mode, j.text, j.source_key, j.status, j.retries,
		           j.error, j.run_id, j.result_key, j.created_at, j.processed_at`,
		domain.ExtractionJobStatusPending, limit, domain.ExtractionJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

func (r *JobRepository) UpdateStatus(ctx context.Context, id string, status domain.ExtractionJobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.ExtractionJobStatusCompleted || status == domain.ExtractionJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE extraction_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *JobRepository) IncrementRetries(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE extraction_jobs SET retries = retries + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// MarkCompleted links a job to its run and result object and completes it
func (r *JobRepository) MarkCompleted(ctx context.Context, id, runID, resultKey string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE extraction_jobs
		 SET status = $1, error = NULL, run_id = $2, result_key = $3, processed_at = $4
		 WHERE id = $5`,
		domain.ExtractionJobStatusCompleted, runID, nullableString(resultKey), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}
