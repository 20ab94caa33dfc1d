package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/hackollab/core/internal/domain"
)

// VectorStore handles pgvector-specific operations for file embeddings.
// The vector dimension is fixed at construction and holds for the lifetime
// of every project index it serves.
type VectorStore struct {
	store     *PostgresStore
	dimension int
}

// NewVectorStore creates a vector store backed by the given Postgres store.
func NewVectorStore(store *PostgresStore, dimension int) *VectorStore {
	return &VectorStore{store: store, dimension: dimension}
}

// InsertFileEmbedding persists a file record without its vector and returns
// the new row id. The vector is attached in a second step.
func (v *VectorStore) InsertFileEmbedding(ctx context.Context, e *domain.FileEmbedding) (string, error) {
	query := `INSERT INTO file_embeddings (project_id, file_name, source_code, summary)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id`

	var id string
	err := v.store.db.QueryRowContext(ctx, query,
		e.ProjectID, e.FileName, e.SourceCode, e.Summary,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert file embedding: %w", err)
	}
	return id, nil
}

// AttachVector sets the embedding vector on a previously inserted record.
// The vector must match the dimension the store was created with.
func (v *VectorStore) AttachVector(ctx context.Context, id string, vector []float32) error {
	if len(vector) != v.dimension {
		return fmt.Errorf("attach vector: got %d dimensions, want %d", len(vector), v.dimension)
	}
	query := `UPDATE file_embeddings SET embedding = $1::vector WHERE id = $2`
	if _, err := v.store.db.ExecContext(ctx, query, vectorToString(vector), id); err != nil {
		return fmt.Errorf("attach vector: %w", err)
	}
	return nil
}

// DeleteByProject removes all embeddings for a project. Called before a
// re-index so the project's record set is replaced wholesale.
func (v *VectorStore) DeleteByProject(ctx context.Context, projectID string) error {
	_, err := v.store.db.ExecContext(ctx,
		`DELETE FROM file_embeddings WHERE project_id = $1`, projectID)
	if err != nil {
		return fmt.Errorf("delete embeddings: %w", err)
	}
	return nil
}

// SearchSimilar performs a cosine similarity search, returning only records
// strictly above the threshold, ordered by similarity descending.
func (v *VectorStore) SearchSimilar(ctx context.Context, projectID string, vector []float32, threshold float64, limit int) ([]domain.QueryResult, error) {
	query := `SELECT file_name, source_code, summary,
	                 1 - (embedding <=> $1::vector) AS similarity
	          FROM file_embeddings
	          WHERE project_id = $2
	            AND embedding IS NOT NULL
	            AND 1 - (embedding <=> $1::vector) > $3
	          ORDER BY similarity DESC
	          LIMIT $4`

	rows, err := v.store.db.QueryContext(ctx, query, vectorToString(vector), projectID, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("search similar: %w", err)
	}
	defer rows.Close()

	var results []domain.QueryResult
	for rows.Next() {
		var r domain.QueryResult
		if err := rows.Scan(&r.FileName, &r.SourceCode, &r.Summary, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scan similar: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// RandomSample returns up to limit records in random order, used as
// grounding context when similarity search yields nothing.
func (v *VectorStore) RandomSample(ctx context.Context, projectID string, limit int) ([]domain.QueryResult, error) {
	query := `SELECT file_name, source_code, summary
	          FROM file_embeddings
	          WHERE project_id = $1
	          ORDER BY RANDOM()
	          LIMIT $2`

	rows, err := v.store.db.QueryContext(ctx, query, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("random sample: %w", err)
	}
	defer rows.Close()

	var results []domain.QueryResult
	for rows.Next() {
		var r domain.QueryResult
		if err := rows.Scan(&r.FileName, &r.SourceCode, &r.Summary); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// CountByProject returns the number of embedding records for a project.
func (v *VectorStore) CountByProject(ctx context.Context, projectID string) (int, error) {
	var count int
	err := v.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM file_embeddings WHERE project_id = $1`, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}

// vectorToString converts a float32 slice to pgvector string format: [0.1,0.2,0.3].
func vectorToString(v []float32) string {
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = fmt.Sprintf("%g", val)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
