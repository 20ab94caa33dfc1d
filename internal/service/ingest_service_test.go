package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackollab/core/internal/domain"
	"github.com/hackollab/core/internal/port"
)

func testIngestConfig() IngestConfig {
	return IngestConfig{FileCap: 50, PacingDelay: 0, BreakerThreshold: 3}
}

func testProject() *domain.Project {
	return &domain.Project{ID: "p1", Name: "demo", GithubURL: "https://github.com/octocat/demo"}
}

func TestIndexRepositoryHappyPath(t *testing.T) {
	source := &fakeSource{files: []domain.SourceFile{
		{Path: "a.ts", Content: "export const a = 1"},
		{Path: "b.ts", Content: "export const b = 2"},
	}}
	llm := newFakeLLM()
	embeddings := newMemEmbeddingStore()

	svc := NewIngestService(newFakeProjectStore(testProject()), source, llm, embeddings, testIngestConfig())
	result, err := svc.IndexRepository(context.Background(), "p1", "api-key")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Indexed)
	assert.Equal(t, 0, result.Failed)
	assert.False(t, result.Halted)
	assert.False(t, result.Partial())

	records := embeddings.byProject("p1")
	require.Len(t, records, 2)
	assert.Equal(t, "a.ts", records[0].FileName)
	assert.Equal(t, "summary of a.ts", records[0].Summary)
	assert.Equal(t, "export const a = 1", records[0].SourceCode)
	assert.Len(t, records[0].vector, 768)
	assert.Len(t, records[1].vector, 768)
}

func TestIndexRepositoryRequiresAPIKey(t *testing.T) {
	svc := NewIngestService(newFakeProjectStore(testProject()), &fakeSource{}, newFakeLLM(), newMemEmbeddingStore(), testIngestConfig())
	_, err := svc.IndexRepository(context.Background(), "p1", "")
	assert.ErrorIs(t, err, port.ErrCredentialsMissing)
}

func TestIndexRepositoryCircuitBreaker(t *testing.T) {
	var files []domain.SourceFile
	for i := 1; i <= 10; i++ {
		files = append(files, domain.SourceFile{Path: fmt.Sprintf("f%02d.ts", i), Content: "code"})
	}
	source := &fakeSource{files: files}

	// Files 4-6 fail: three consecutive failures must trip the breaker
	// while the first three files stay persisted.
	llm := newFakeLLM()
	llm.failFiles["f04.ts"] = true
	llm.failFiles["f05.ts"] = true
	llm.failFiles["f06.ts"] = true

	embeddings := newMemEmbeddingStore()
	svc := NewIngestService(newFakeProjectStore(testProject()), source, llm, embeddings, testIngestConfig())

	result, err := svc.IndexRepository(context.Background(), "p1", "api-key")
	require.NoError(t, err, "a halted run with persisted records is a partial success, not an error")

	assert.True(t, result.Halted)
	assert.True(t, result.Partial())
	assert.Equal(t, 3, result.Indexed)
	assert.Equal(t, 3, result.Failed)
	assert.Len(t, embeddings.byProject("p1"), 3)
	// Files after the trip were never attempted.
	assert.NotContains(t, llm.summarized, "f07.ts")
}

func TestIndexRepositoryNonConsecutiveFailuresDoNotTrip(t *testing.T) {
	var files []domain.SourceFile
	for i := 1; i <= 6; i++ {
		files = append(files, domain.SourceFile{Path: fmt.Sprintf("f%02d.ts", i), Content: "code"})
	}
	source := &fakeSource{files: files}

	llm := newFakeLLM()
	llm.failFiles["f02.ts"] = true
	llm.failFiles["f04.ts"] = true

	embeddings := newMemEmbeddingStore()
	svc := NewIngestService(newFakeProjectStore(testProject()), source, llm, embeddings, testIngestConfig())

	result, err := svc.IndexRepository(context.Background(), "p1", "api-key")
	require.NoError(t, err)
	assert.False(t, result.Halted)
	assert.Equal(t, 4, result.Indexed)
	assert.Equal(t, 2, result.Failed)
}

func TestIndexRepositoryFileCap(t *testing.T) {
	var files []domain.SourceFile
	for i := 1; i <= 7; i++ {
		files = append(files, domain.SourceFile{Path: fmt.Sprintf("f%02d.ts", i), Content: "code"})
	}
	cfg := testIngestConfig()
	cfg.FileCap = 3

	embeddings := newMemEmbeddingStore()
	svc := NewIngestService(newFakeProjectStore(testProject()), &fakeSource{files: files}, newFakeLLM(), embeddings, cfg)

	result, err := svc.IndexRepository(context.Background(), "p1", "api-key")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Indexed)
	assert.Equal(t, 7, result.FilesTotal)
	assert.True(t, result.Partial(), "a capped run is a partial success")
	assert.Len(t, embeddings.byProject("p1"), 3)
}

func TestIndexRepositoryZeroRecordsIsError(t *testing.T) {
	source := &fakeSource{files: []domain.SourceFile{{Path: "a.ts", Content: "code"}}}
	llm := newFakeLLM()
	llm.failFiles["a.ts"] = true

	svc := NewIngestService(newFakeProjectStore(testProject()), source, llm, newMemEmbeddingStore(), testIngestConfig())
	result, err := svc.IndexRepository(context.Background(), "p1", "api-key")
	assert.ErrorIs(t, err, port.ErrNoEmbeddings)
	assert.Equal(t, 0, result.Indexed)
}

func TestIndexRepositoryStorageFailureDoesNotAbort(t *testing.T) {
	source := &fakeSource{files: []domain.SourceFile{
		{Path: "a.ts", Content: "code"},
		{Path: "b.ts", Content: "code"},
	}}
	embeddings := newMemEmbeddingStore()
	embeddings.insertErr = fmt.Errorf("connection reset")

	svc := NewIngestService(newFakeProjectStore(testProject()), source, newFakeLLM(), embeddings, testIngestConfig())
	result, err := svc.IndexRepository(context.Background(), "p1", "api-key")
	// Every write failed, so the run reports no embeddings; it must not panic
	// or abort mid-loop.
	assert.ErrorIs(t, err, port.ErrNoEmbeddings)
	assert.Equal(t, 0, result.Indexed)
}

func TestReindexClearsPreviousRecords(t *testing.T) {
	embeddings := newMemEmbeddingStore()
	_, err := embeddings.InsertFileEmbedding(context.Background(), &domain.FileEmbedding{
		ProjectID: "p1", FileName: "stale.ts", SourceCode: "old", Summary: "old",
	})
	require.NoError(t, err)

	source := &fakeSource{files: []domain.SourceFile{{Path: "fresh.ts", Content: "new"}}}
	svc := NewIngestService(newFakeProjectStore(testProject()), source, newFakeLLM(), embeddings, testIngestConfig())

	result, err := svc.ReindexRepository(context.Background(), "p1", "api-key")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Indexed)

	records := embeddings.byProject("p1")
	require.Len(t, records, 1)
	assert.Equal(t, "fresh.ts", records[0].FileName)
}

func TestConcurrentIndexRunsAreRejected(t *testing.T) {
	source := &fakeSource{files: []domain.SourceFile{{Path: "a.ts", Content: "code"}}}
	llm := newFakeLLM()
	llm.summarizeGate = make(chan struct{})

	svc := NewIngestService(newFakeProjectStore(testProject()), source, llm, newMemEmbeddingStore(), testIngestConfig())

	done := make(chan error, 1)
	go func() {
		_, err := svc.IndexRepository(context.Background(), "p1", "api-key")
		done <- err
	}()

	// Wait until the first run is inside the pipeline, then race a second one.
	require.Eventually(t, func() bool {
		llm.mu.Lock()
		defer llm.mu.Unlock()
		return len(llm.summarized) > 0
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		_, err := svc.IndexRepository(context.Background(), "p1", "api-key")
		return err == port.ErrIndexInProgress
	}, time.Second, 5*time.Millisecond)

	close(llm.summarizeGate)
	require.NoError(t, <-done)

	// Lock is released after the run.
	_, err := svc.IndexRepository(context.Background(), "p1", "api-key")
	require.NoError(t, err)
}

func TestIndexRepositoryPacingRespectsCancellation(t *testing.T) {
	source := &fakeSource{files: []domain.SourceFile{
		{Path: "a.ts", Content: "code"},
		{Path: "b.ts", Content: "code"},
	}}
	cfg := testIngestConfig()
	cfg.PacingDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	svc := NewIngestService(newFakeProjectStore(testProject()), source, newFakeLLM(), newMemEmbeddingStore(), cfg)

	done := make(chan error, 1)
	go func() {
		_, err := svc.IndexRepository(ctx, "p1", "api-key")
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("run did not stop on cancellation")
	}
}
