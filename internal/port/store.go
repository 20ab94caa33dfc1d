package port

import (
	"context"
	"time"

	"github.com/hackollab/core/internal/domain"
)

// ProjectStore provides read access to project records. Project CRUD and
// ownership live outside this core; services only need the repository URL
// and token behind a project id.
type ProjectStore interface {
	GetProject(ctx context.Context, id string) (*domain.Project, error)
}

// EmbeddingStore persists per-file summaries and vectors and exposes
// similarity queries. Insert and AttachVector are separate steps: a record
// is written first, then its vector is attached.
type EmbeddingStore interface {
	InsertFileEmbedding(ctx context.Context, e *domain.FileEmbedding) (string, error)
	AttachVector(ctx context.Context, id string, vector []float32) error
	DeleteByProject(ctx context.Context, projectID string) error

	// SearchSimilar returns records whose cosine similarity to the query
	// vector is strictly greater than threshold, ordered by similarity
	// descending, capped at limit.
	SearchSimilar(ctx context.Context, projectID string, vector []float32, threshold float64, limit int) ([]domain.QueryResult, error)

	// RandomSample returns up to limit records in no particular order.
	RandomSample(ctx context.Context, projectID string, limit int) ([]domain.QueryResult, error)

	CountByProject(ctx context.Context, projectID string) (int, error)
}

// CommitStore persists the append-only commit history of a project.
type CommitStore interface {
	// LatestCommitDate returns the timestamp of the most recent persisted
	// commit, or the zero value when none exist.
	LatestCommitDate(ctx context.Context, projectID string) (time.Time, error)

	// ListCommitHashes returns every persisted hash for dedup.
	ListCommitHashes(ctx context.Context, projectID string) ([]string, error)

	// InsertCommits writes a batch of commit records.
	InsertCommits(ctx context.Context, commits []domain.CommitRecord) error

	// ListCommits returns records ordered by commit date descending.
	ListCommits(ctx context.Context, projectID string) ([]domain.CommitRecord, error)
}
