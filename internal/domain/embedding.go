package domain

import "time"

// FileEmbedding represents a summarized, vectorized source file stored in pgvector.
type FileEmbedding struct {
	ID         string    `json:"id"          db:"id"`
	ProjectID  string    `json:"project_id"  db:"project_id"`
	FileName   string    `json:"file_name"   db:"file_name"`
	SourceCode string    `json:"source_code" db:"source_code"`
	Summary    string    `json:"summary"     db:"summary"`
	Vector     []float32 `json:"-"           db:"embedding"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
}

// QueryResult is returned by semantic search, including similarity score.
// It is transient and never persisted.
type QueryResult struct {
	FileName   string  `json:"file_name"`
	SourceCode string  `json:"source_code"`
	Summary    string  `json:"summary"`
	Similarity float64 `json:"similarity"`
}
