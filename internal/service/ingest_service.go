package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hackollab/core/internal/domain"
	"github.com/hackollab/core/internal/port"
)

// IngestConfig tunes the ingestion pipeline. Values are configurable so
// tests run without real delays; defaults match production behavior.
type IngestConfig struct {
	// FileCap bounds the number of files processed per run.
	FileCap int
	// PacingDelay is inserted between files to respect LLM rate limits.
	PacingDelay time.Duration
	// BreakerThreshold is the consecutive-failure count that halts a run.
	BreakerThreshold int
}

// DefaultIngestConfig returns production pipeline settings.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		FileCap:          50,
		PacingDelay:      2 * time.Second,
		BreakerThreshold: 3,
	}
}

// IngestResult reports the outcome of one ingestion run.
type IngestResult struct {
	FilesTotal int  `json:"files_total"`
	Indexed    int  `json:"indexed"`
	Failed     int  `json:"failed"`
	Halted     bool `json:"halted"` // true when the circuit breaker tripped
}

// Partial reports whether the run succeeded with caveats: some records were
// written but the run was truncated or lost files along the way.
func (r *IngestResult) Partial() bool {
	return r.Indexed > 0 && (r.Halted || r.Failed > 0 || r.Indexed < r.FilesTotal)
}

// IngestService drives the fetch → summarize → embed → persist pipeline
// that turns a repository into searchable records.
type IngestService struct {
	projects   port.ProjectStore
	source     port.SourceProvider
	llm        port.LLMProvider
	embeddings port.EmbeddingStore
	cfg        IngestConfig
	locks      *projectLocks
}

// NewIngestService creates a new ingestion service.
func NewIngestService(projects port.ProjectStore, source port.SourceProvider, llm port.LLMProvider, embeddings port.EmbeddingStore, cfg IngestConfig) *IngestService {
	return &IngestService{
		projects:   projects,
		source:     source,
		llm:        llm,
		embeddings: embeddings,
		cfg:        cfg,
		locks:      newProjectLocks(),
	}
}

// IndexRepository populates the embedding store with one record per
// processed file of the project's repository. Files are processed
// sequentially with a pacing delay; per-file failures are skipped and
// counted by a circuit breaker that halts the run after
// BreakerThreshold consecutive failures, preserving prior writes.
func (s *IngestService) IndexRepository(ctx context.Context, projectID, apiKey string) (*IngestResult, error) {
	if apiKey == "" {
		return nil, port.ErrCredentialsMissing
	}
	if !s.locks.TryLock(projectID) {
		return nil, port.ErrIndexInProgress
	}
	defer s.locks.Unlock(projectID)

	return s.run(ctx, projectID, apiKey)
}

// ReindexRepository clears all existing records for the project and runs
// the same pipeline again. The clear is all-or-nothing at the project
// scope: a re-index never mixes old and new records.
func (s *IngestService) ReindexRepository(ctx context.Context, projectID, apiKey string) (*IngestResult, error) {
	if apiKey == "" {
		return nil, port.ErrCredentialsMissing
	}
	if !s.locks.TryLock(projectID) {
		return nil, port.ErrIndexInProgress
	}
	defer s.locks.Unlock(projectID)

	if err := s.embeddings.DeleteByProject(ctx, projectID); err != nil {
		return nil, fmt.Errorf("clear project embeddings: %w", err)
	}
	return s.run(ctx, projectID, apiKey)
}

func (s *IngestService) run(ctx context.Context, projectID, apiKey string) (*IngestResult, error) {
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}

	files, err := s.source.LoadRepository(ctx, project.GithubURL, project.GithubToken)
	if err != nil {
		return nil, fmt.Errorf("load repository: %w", err)
	}

	result := &IngestResult{FilesTotal: len(files)}
	if len(files) > s.cfg.FileCap {
		slog.Warn("file cap reached, truncating run",
			"project_id", projectID, "files", len(files), "cap", s.cfg.FileCap)
		files = files[:s.cfg.FileCap]
	}

	slog.Info("indexing repository",
		"project_id", projectID, "url", project.GithubURL, "files", len(files))

	breaker := NewCircuitBreaker(s.cfg.BreakerThreshold)

	// Storage writes are fan-out concurrent and independent of each other;
	// a failed write is logged and dropped, never aborting the run.
	var (
		wg      sync.WaitGroup
		countMu sync.Mutex
		runErr  error
	)

	for i, file := range files {
		if i > 0 {
			if err := s.pace(ctx); err != nil {
				runErr = err
				break
			}
		}

		summary, err := s.llm.SummarizeFile(ctx, apiKey, file.Path, file.Content)
		if err != nil {
			result.Failed++
			breaker.Failure()
			slog.Warn("skipping file after summarize failure", "file", file.Path, "error", err)
			if breaker.Tripped() {
				result.Halted = true
				slog.Error("halting run, consecutive failures suggest quota exhausted",
					"project_id", projectID, "failures", s.cfg.BreakerThreshold)
				break
			}
			continue
		}

		vector, err := s.llm.Embed(ctx, apiKey, summary)
		if err != nil {
			result.Failed++
			breaker.Failure()
			slog.Warn("skipping file after embed failure", "file", file.Path, "error", err)
			if breaker.Tripped() {
				result.Halted = true
				slog.Error("halting run, consecutive failures suggest quota exhausted",
					"project_id", projectID, "failures", s.cfg.BreakerThreshold)
				break
			}
			continue
		}

		breaker.Success()

		record := &domain.FileEmbedding{
			ProjectID:  projectID,
			FileName:   file.Path,
			SourceCode: file.Content,
			Summary:    summary,
		}
		wg.Add(1)
		go func(record *domain.FileEmbedding, vector []float32) {
			defer wg.Done()
			id, err := s.embeddings.InsertFileEmbedding(ctx, record)
			if err != nil {
				slog.Error("store file embedding failed", "file", record.FileName, "error", err)
				return
			}
			countMu.Lock()
			result.Indexed++
			countMu.Unlock()

			if err := s.embeddings.AttachVector(ctx, id, vector); err != nil {
				slog.Error("attach vector failed", "file", record.FileName, "error", err)
			}
		}(record, vector)
	}

	wg.Wait()

	slog.Info("ingestion run finished",
		"project_id", projectID, "indexed", result.Indexed,
		"failed", result.Failed, "halted", result.Halted)

	if runErr != nil {
		return result, runErr
	}
	if result.Indexed == 0 {
		return result, port.ErrNoEmbeddings
	}
	return result, nil
}

func (s *IngestService) pace(ctx context.Context) error {
	if s.cfg.PacingDelay <= 0 {
		return nil
	}
	select {
	case <-time.After(s.cfg.PacingDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
