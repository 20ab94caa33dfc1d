package port

import (
	"context"
	"time"

	"github.com/hackollab/core/internal/domain"
)

// SourceProvider abstracts the source hosting read API (GitHub and compatible).
// All operations try the primary branch first and fall back to the secondary
// conventional branch before failing with ErrRepoUnavailable.
type SourceProvider interface {
	// LoadRepository returns every text file in the repository's default
	// content tree, excluding lock-file artifacts. Token may be empty for
	// public repositories.
	LoadRepository(ctx context.Context, repoURL, token string) ([]domain.SourceFile, error)

	// ListCommits returns commits newer than since (all commits when since
	// is the zero value), sorted newest-first.
	ListCommits(ctx context.Context, repoURL, token string, since time.Time) ([]domain.CommitInfo, error)

	// FetchDiff returns the unified diff of a single commit.
	FetchDiff(ctx context.Context, repoURL, hash string) (string, error)
}
