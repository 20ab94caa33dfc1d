package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hackollab/core/internal/domain"
)

// --- project store ---

type fakeProjectStore struct {
	projects map[string]*domain.Project
}

func newFakeProjectStore(projects ...*domain.Project) *fakeProjectStore {
	m := make(map[string]*domain.Project)
	for _, p := range projects {
		m[p.ID] = p
	}
	return &fakeProjectStore{projects: m}
}

func (f *fakeProjectStore) GetProject(_ context.Context, id string) (*domain.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, errors.New("project not found")
	}
	return p, nil
}

// --- source provider ---

type fakeSource struct {
	files    []domain.SourceFile
	commits  []domain.CommitInfo
	diffs    map[string]string
	diffErr  error
	loadErr  error
	gotSince time.Time
}

func (f *fakeSource) LoadRepository(context.Context, string, string) ([]domain.SourceFile, error) {
	return f.files, f.loadErr
}

func (f *fakeSource) ListCommits(_ context.Context, _, _ string, since time.Time) ([]domain.CommitInfo, error) {
	f.gotSince = since
	return f.commits, nil
}

func (f *fakeSource) FetchDiff(_ context.Context, _ string, hash string) (string, error) {
	if f.diffErr != nil {
		return "", f.diffErr
	}
	return f.diffs[hash], nil
}

// --- LLM provider ---

type fakeLLM struct {
	mu            sync.Mutex
	failFiles     map[string]bool // file names whose summarize fails
	failEmbed     bool
	summarizeGate chan struct{} // when set, SummarizeFile blocks until closed
	streamChunks  []string
	streamErr     error
	diffErr       error
	dimension     int
	summarized    []string
	gotPrompt     string
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{failFiles: map[string]bool{}, dimension: 768}
}

func (f *fakeLLM) SummarizeFile(_ context.Context, _, fileName, _ string) (string, error) {
	f.mu.Lock()
	f.summarized = append(f.summarized, fileName)
	f.mu.Unlock()
	if f.summarizeGate != nil {
		<-f.summarizeGate
	}
	if f.failFiles[fileName] {
		return "", errors.New("simulated summarize failure")
	}
	return "summary of " + fileName, nil
}

func (f *fakeLLM) SummarizeDiff(_ context.Context, _, diff string) (string, error) {
	if f.diffErr != nil {
		return "", f.diffErr
	}
	return "diff summary: " + firstLine(diff), nil
}

func (f *fakeLLM) Embed(_ context.Context, _, text string) ([]float32, error) {
	if f.failEmbed {
		return nil, errors.New("simulated embed failure")
	}
	v := make([]float32, f.dimension)
	v[0] = float32(len(text))
	return v, nil
}

func (f *fakeLLM) AnswerStream(_ context.Context, _, prompt string) (<-chan string, error) {
	f.mu.Lock()
	f.gotPrompt = prompt
	f.mu.Unlock()
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	ch := make(chan string, len(f.streamChunks))
	for _, c := range f.streamChunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

// --- embedding store ---

type memRecord struct {
	domain.FileEmbedding
	vector []float32
}

type memEmbeddingStore struct {
	mu        sync.Mutex
	seq       int
	records   map[string]*memRecord
	insertErr error

	searchResults []domain.QueryResult
	sampleResults []domain.QueryResult
}

func newMemEmbeddingStore() *memEmbeddingStore {
	return &memEmbeddingStore{records: map[string]*memRecord{}}
}

func (m *memEmbeddingStore) InsertFileEmbedding(_ context.Context, e *domain.FileEmbedding) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return "", m.insertErr
	}
	m.seq++
	id := fmt.Sprintf("rec-%d", m.seq)
	rec := *e
	rec.ID = id
	m.records[id] = &memRecord{FileEmbedding: rec}
	return id, nil
}

func (m *memEmbeddingStore) AttachVector(_ context.Context, id string, vector []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return errors.New("record not found")
	}
	rec.vector = vector
	return nil
}

func (m *memEmbeddingStore) DeleteByProject(_ context.Context, projectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rec := range m.records {
		if rec.ProjectID == projectID {
			delete(m.records, id)
		}
	}
	return nil
}

func (m *memEmbeddingStore) SearchSimilar(_ context.Context, _ string, _ []float32, _ float64, _ int) ([]domain.QueryResult, error) {
	return m.searchResults, nil
}

func (m *memEmbeddingStore) RandomSample(_ context.Context, _ string, limit int) ([]domain.QueryResult, error) {
	if len(m.sampleResults) > limit {
		return m.sampleResults[:limit], nil
	}
	return m.sampleResults, nil
}

func (m *memEmbeddingStore) CountByProject(_ context.Context, projectID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.records {
		if rec.ProjectID == projectID {
			n++
		}
	}
	return n, nil
}

// byProject returns records for a project sorted by file name.
func (m *memEmbeddingStore) byProject(projectID string) []*memRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*memRecord
	for _, rec := range m.records {
		if rec.ProjectID == projectID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileName < out[j].FileName })
	return out
}

// --- commit store ---

type memCommitStore struct {
	mu      sync.Mutex
	commits []domain.CommitRecord
}

func (m *memCommitStore) LatestCommitDate(_ context.Context, projectID string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest time.Time
	for _, c := range m.commits {
		if c.ProjectID == projectID && c.Date.After(latest) {
			latest = c.Date
		}
	}
	return latest, nil
}

func (m *memCommitStore) ListCommitHashes(_ context.Context, projectID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var hashes []string
	for _, c := range m.commits {
		if c.ProjectID == projectID {
			hashes = append(hashes, c.Hash)
		}
	}
	return hashes, nil
}

func (m *memCommitStore) InsertCommits(_ context.Context, commits []domain.CommitRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := make(map[string]bool)
	for _, c := range m.commits {
		existing[c.ProjectID+"/"+c.Hash] = true
	}
	for _, c := range commits {
		if existing[c.ProjectID+"/"+c.Hash] {
			continue
		}
		m.commits = append(m.commits, c)
	}
	return nil
}

func (m *memCommitStore) ListCommits(_ context.Context, projectID string) ([]domain.CommitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CommitRecord
	for _, c := range m.commits {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}
