package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hackollab/core/internal/domain"
	"github.com/hackollab/core/internal/port"
)

// PostgresStore handles all relational database operations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and returns a store instance.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// --- Projects ---

// CreateProject inserts a new project record.
func (s *PostgresStore) CreateProject(ctx context.Context, p *domain.Project) (*domain.Project, error) {
	query := `INSERT INTO projects (name, github_url, github_token)
	          VALUES ($1, $2, $3)
	          RETURNING id, name, github_url, COALESCE(github_token, ''), created_at, updated_at`

	var project domain.Project
	err := s.db.QueryRowContext(ctx, query, p.Name, p.GithubURL, nullable(p.GithubToken)).Scan(
		&project.ID, &project.Name, &project.GithubURL, &project.GithubToken,
		&project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return &project, nil
}

// GetProject retrieves a project by ID.
func (s *PostgresStore) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	query := `SELECT id, name, github_url, COALESCE(github_token, ''), created_at, updated_at
	          FROM projects WHERE id = $1`

	var project domain.Project
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID, &project.Name, &project.GithubURL, &project.GithubToken,
		&project.CreatedAt, &project.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &project, nil
}

// DeleteProject removes a project; owned embeddings and commits cascade.
func (s *PostgresStore) DeleteProject(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// --- Commits ---

// LatestCommitDate returns the most recent persisted commit timestamp for a
// project, or the zero time when no commits exist.
func (s *PostgresStore) LatestCommitDate(ctx context.Context, projectID string) (time.Time, error) {
	query := `SELECT commit_date FROM commits WHERE project_id = $1
	          ORDER BY commit_date DESC LIMIT 1`

	var date time.Time
	err := s.db.QueryRowContext(ctx, query, projectID).Scan(&date)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("latest commit date: %w", err)
	}
	return date, nil
}

// ListCommitHashes returns every persisted commit hash for a project.
func (s *PostgresStore) ListCommitHashes(ctx context.Context, projectID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT commit_hash FROM commits WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list commit hashes: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan commit hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// InsertCommits writes a batch of commit records in one transaction.
// The (project_id, commit_hash) unique constraint backs sync idempotence;
// conflicting rows are skipped rather than erroring the batch.
func (s *PostgresStore) InsertCommits(ctx context.Context, commits []domain.CommitRecord) error {
	if len(commits) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO commits (project_id, commit_hash, commit_message, commit_author_name, commit_avatar, commit_date, commit_summary)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (project_id, commit_hash) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range commits {
		if _, err := stmt.ExecContext(ctx,
			c.ProjectID, c.Hash, c.Message, c.AuthorName, c.AvatarURL, c.Date, c.Summary,
		); err != nil {
			return fmt.Errorf("insert commit %s: %w", c.Hash, err)
		}
	}

	return tx.Commit()
}

// ListCommits returns commit records for a project, newest first.
func (s *PostgresStore) ListCommits(ctx context.Context, projectID string) ([]domain.CommitRecord, error) {
	query := `SELECT id, project_id, commit_hash, commit_message, commit_author_name, commit_avatar, commit_date, commit_summary
	          FROM commits WHERE project_id = $1 ORDER BY commit_date DESC`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}
	defer rows.Close()

	var commits []domain.CommitRecord
	for rows.Next() {
		var c domain.CommitRecord
		if err := rows.Scan(
			&c.ID, &c.ProjectID, &c.Hash, &c.Message,
			&c.AuthorName, &c.AvatarURL, &c.Date, &c.Summary,
		); err != nil {
			return nil, fmt.Errorf("scan commit: %w", err)
		}
		commits = append(commits, c)
	}
	return commits, rows.Err()
}

// --- Audit Logs ---

// WriteAudit implements middleware.AuditWriter.
func (s *PostgresStore) WriteAudit(action, resource, resourceID, details, ip, userAgent string) error {
	query := `INSERT INTO audit_logs (action, resource, resource_id, details, ip, user_agent)
	          VALUES ($1, $2, $3, $4::jsonb, $5, $6)`
	_, err := s.db.ExecContext(context.Background(),
		query, action, resource, resourceID, details, ip, userAgent)
	return err
}

func nullable(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

// IsUniqueViolation reports whether err is a Postgres unique constraint error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
