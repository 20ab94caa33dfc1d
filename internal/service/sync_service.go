package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/hackollab/core/internal/domain"
	"github.com/hackollab/core/internal/port"
)

// maxCommitsPerSync bounds how many new commits are summarized and
// persisted per invocation, to keep sync latency predictable.
const maxCommitsPerSync = 10

// SyncService incrementally syncs a project's commit history: it fetches
// commits newer than the last persisted one, dedupes by hash, summarizes
// each new commit's diff and persists the batch.
type SyncService struct {
	projects port.ProjectStore
	commits  port.CommitStore
	source   port.SourceProvider
	llm      port.LLMProvider
}

// NewSyncService creates a new commit synchronizer.
func NewSyncService(projects port.ProjectStore, commits port.CommitStore, source port.SourceProvider, llm port.LLMProvider) *SyncService {
	return &SyncService{projects: projects, commits: commits, source: source, llm: llm}
}

// SyncCommits fetches, dedupes, summarizes and persists new commits for a
// project. apiKey may be empty: summaries then degrade to the first line of
// each commit message. The persisted records are returned newest-first.
func (s *SyncService) SyncCommits(ctx context.Context, projectID, apiKey string) ([]domain.CommitRecord, error) {
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}

	since, err := s.commits.LatestCommitDate(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("latest commit date: %w", err)
	}

	upstream, err := s.source.ListCommits(ctx, project.GithubURL, project.GithubToken, since)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}

	unprocessed, err := s.filterProcessed(ctx, projectID, upstream)
	if err != nil {
		return nil, err
	}

	sort.Slice(unprocessed, func(i, j int) bool {
		return unprocessed[i].Date.After(unprocessed[j].Date)
	})
	if len(unprocessed) > maxCommitsPerSync {
		unprocessed = unprocessed[:maxCommitsPerSync]
	}

	slog.Info("syncing commits",
		"project_id", projectID, "upstream", len(upstream), "new", len(unprocessed))

	records := make([]domain.CommitRecord, 0, len(unprocessed))
	for _, c := range unprocessed {
		// A failed summary degrades to an empty string for that commit;
		// it never aborts the batch.
		summary := s.summarizeCommit(ctx, project.GithubURL, c, apiKey)
		records = append(records, domain.CommitRecord{
			ProjectID:  projectID,
			Hash:       c.Hash,
			Message:    c.Message,
			AuthorName: c.AuthorName,
			AvatarURL:  c.AvatarURL,
			Date:       c.Date,
			Summary:    summary,
		})
	}

	if err := s.commits.InsertCommits(ctx, records); err != nil {
		return nil, fmt.Errorf("insert commits: %w", err)
	}
	return records, nil
}

// filterProcessed drops commits whose hash is already persisted for the project.
func (s *SyncService) filterProcessed(ctx context.Context, projectID string, upstream []domain.CommitInfo) ([]domain.CommitInfo, error) {
	hashes, err := s.commits.ListCommitHashes(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list commit hashes: %w", err)
	}

	seen := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		seen[h] = true
	}

	var unprocessed []domain.CommitInfo
	for _, c := range upstream {
		if !seen[c.Hash] {
			unprocessed = append(unprocessed, c)
		}
	}
	return unprocessed, nil
}

func (s *SyncService) summarizeCommit(ctx context.Context, repoURL string, c domain.CommitInfo, apiKey string) string {
	if apiKey == "" {
		return firstLine(c.Message)
	}

	diff, err := s.source.FetchDiff(ctx, repoURL, c.Hash)
	if err != nil {
		slog.Warn("diff fetch failed, storing empty summary", "hash", c.Hash, "error", err)
		return ""
	}

	summary, err := s.llm.SummarizeDiff(ctx, apiKey, diff)
	if err != nil {
		slog.Warn("diff summarization failed, storing empty summary", "hash", c.Hash, "error", err)
		return ""
	}
	return summary
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
