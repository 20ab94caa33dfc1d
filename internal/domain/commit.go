package domain

import "time"

// CommitInfo is a lightweight representation of an upstream commit,
// as returned by the source hosting API before summarization.
type CommitInfo struct {
	Hash       string    `json:"hash"`
	Message    string    `json:"message"`
	AuthorName string    `json:"author_name"`
	AvatarURL  string    `json:"avatar_url"`
	Date       time.Time `json:"date"`
}

// CommitRecord is a persisted commit with its AI-generated summary.
// Records are append-only; commit_hash is unique within a project.
type CommitRecord struct {
	ID         string    `json:"id"           db:"id"`
	ProjectID  string    `json:"project_id"   db:"project_id"`
	Hash       string    `json:"commit_hash"  db:"commit_hash"`
	Message    string    `json:"commit_message" db:"commit_message"`
	AuthorName string    `json:"commit_author_name" db:"commit_author_name"`
	AvatarURL  string    `json:"commit_avatar" db:"commit_avatar"`
	Date       time.Time `json:"commit_date"  db:"commit_date"`
	Summary    string    `json:"commit_summary" db:"commit_summary"`
}
