package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloo-solutions/docextract/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EntityRepository stores extracted entities as JSON documents keyed by run
// and position within the run.
type EntityRepository struct {
	db dbtx
}

func NewEntityRepository(pool *pgxpool.Pool) *EntityRepository {
	return &EntityRepository{db: pool}
}

func NewEntityRepositoryWithTx(tx pgx.Tx) *EntityRepository {
	return &EntityRepository{db: tx}
}

func (r *EntityRepository) CreateBatch(ctx context.Context, runID string, entities []domain.ExtractedEntity) error {
	for i, e := range entities {
		doc, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode entity %s: %w", e.RecordID, err)
		}
		_, err = r.db.Exec(ctx,
			`INSERT INTO extracted_entities (record_id, run_id, ordinal, entity_type, primary_name, entity)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			e.RecordID, runID, i, e.EntityType, e.PrimaryName, doc,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *EntityRepository) ListByRun(ctx context.Context, runID string) ([]domain.ExtractedEntity, error) {
	rows, err := r.db.Query(ctx,
		`SELECT entity FROM extracted_entities WHERE run_id = $1 ORDER BY ordinal ASC`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entities := []domain.ExtractedEntity{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var e domain.ExtractedEntity
		if err := json.Unmarshal(doc, &e); err != nil {
			return nil, fmt.Errorf("failed to decode entity: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}
