package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloo-solutions/docextract/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RunRepository struct {
	db dbtx
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{db: pool}
}

func NewRunRepositoryWithTx(tx pgx.Tx) *RunRepository {
	return &RunRepository{db: tx}
}

func (r *RunRepository) Create(ctx context.Context, run *domain.ExtractionRun) error {
	failures := run.FailedChunks
	if failures == nil {
		failures = []domain.ChunkFailure{}
	}
	failedJSON, err := json.Marshal(failures)
	if err != nil {
		return fmt.Errorf("failed to encode chunk failures: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO extraction_runs (id, document_name, mode, chunk_count, failed_chunks, entity_count, dropped_entities, extraction_date, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.DocumentName, run.Mode, run.ChunkCount, failedJSON, run.EntityCount, run.DroppedEntities,
		nullableString(run.ExtractionDate), run.StartedAt, run.FinishedAt,
	)
	return err
}

func (r *RunRepository) GetByID(ctx context.Context, id string) (*domain.ExtractionRun, error) {
	var run domain.ExtractionRun
	var failedJSON []byte
	var extractionDate *string
	err := r.db.QueryRow(ctx,
		`SELECT id, document_name, mode, chunk_count, failed_chunks, entity_count, dropped_entities, extraction_date, started_at, finished_at
		 FROM extraction_runs WHERE id = $1`,
		id,
	).Scan(&run.ID, &run.DocumentName, &run.Mode, &run.ChunkCount, &failedJSON, &run.EntityCount,
		&run.DroppedEntities, &extractionDate, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, err
	}
	if extractionDate != nil {
		run.ExtractionDate = *extractionDate
	}
	if err := json.Unmarshal(failedJSON, &run.FailedChunks); err != nil {
		return nil, fmt.Errorf("failed to decode chunk failures: %w", err)
	}
	return &run, nil
}
