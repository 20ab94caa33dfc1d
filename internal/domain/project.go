package domain

import "time"

// Project represents a tracked GitHub repository index.
type Project struct {
	ID          string    `json:"id"           db:"id"`
	Name        string    `json:"name"         db:"name"`
	GithubURL   string    `json:"github_url"   db:"github_url"`
	GithubToken string    `json:"-"            db:"github_token"` // never serialized to JSON
	CreatedAt   time.Time `json:"created_at"   db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"   db:"updated_at"`
}

// SourceFile is a single file fetched from the repository content tree.
type SourceFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}
