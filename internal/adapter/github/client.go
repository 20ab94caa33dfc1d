package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hackollab/core/internal/domain"
	"github.com/hackollab/core/internal/port"
)

const (
	primaryBranch   = "main"
	secondaryBranch = "master"

	// maxContentWorkers bounds concurrent file content requests per load.
	maxContentWorkers = 5
)

// lockFiles are dependency lock artifacts excluded from indexing.
var lockFiles = map[string]bool{
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"bun.lockb":         true,
}

// Client implements port.SourceProvider against the GitHub REST API.
// Credentials are passed per call; public repositories work without a token.
type Client struct {
	apiBaseURL string // e.g. https://api.github.com
	httpClient *http.Client
}

// NewClient creates a GitHub source provider.
func NewClient(apiBaseURL string) *Client {
	return &Client{
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// LoadRepository fetches the full content tree of the repository, trying the
// main branch first and falling back to master. Lock files and binary
// content are skipped with a warning.
func (c *Client) LoadRepository(ctx context.Context, repoURL, token string) ([]domain.SourceFile, error) {
	owner, repo, err := parseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	files, err := c.loadTree(ctx, owner, repo, token, primaryBranch)
	if err != nil {
		slog.Warn("primary branch load failed, trying secondary",
			"repo", owner+"/"+repo, "branch", primaryBranch, "error", err)
		files, err = c.loadTree(ctx, owner, repo, token, secondaryBranch)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", port.ErrRepoUnavailable, err)
		}
	}
	return files, nil
}

// ListCommits fetches commits newer than since, newest-first, with the same
// branch fallback as LoadRepository.
func (c *Client) ListCommits(ctx context.Context, repoURL, token string, since time.Time) ([]domain.CommitInfo, error) {
	owner, repo, err := parseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	commits, err := c.listBranchCommits(ctx, owner, repo, token, primaryBranch, since)
	if err != nil {
		slog.Warn("primary branch commit fetch failed, trying secondary",
			"repo", owner+"/"+repo, "error", err)
		commits, err = c.listBranchCommits(ctx, owner, repo, token, secondaryBranch, since)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", port.ErrRepoUnavailable, err)
		}
	}

	sort.Slice(commits, func(i, j int) bool { return commits[i].Date.After(commits[j].Date) })
	return commits, nil
}

// FetchDiff retrieves the unified diff for one commit from the repository's
// web endpoint.
func (c *Client) FetchDiff(ctx context.Context, repoURL, hash string) (string, error) {
	url := strings.TrimRight(repoURL, "/") + "/commit/" + hash + ".diff"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create diff request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3.diff")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch diff %s: %w", hash, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch diff %s: status %d", hash, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read diff %s: %w", hash, err)
	}
	return string(data), nil
}

// --- internals ---

type treeResponse struct {
	Tree []struct {
		Path string `json:"path"`
		Type string `json:"type"`
	} `json:"tree"`
	Truncated bool `json:"truncated"`
}

type contentResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type commitResponse struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	Author struct {
		AvatarURL string `json:"avatar_url"`
	} `json:"author"`
}

func (c *Client) loadTree(ctx context.Context, owner, repo, token, branch string) ([]domain.SourceFile, error) {
	var tree treeResponse
	path := fmt.Sprintf("/repos/%s/%s/git/trees/%s?recursive=1", owner, repo, branch)
	if err := c.get(ctx, path, token, &tree); err != nil {
		return nil, err
	}
	if tree.Truncated {
		slog.Warn("repository tree truncated by API", "repo", owner+"/"+repo, "branch", branch)
	}

	var paths []string
	for _, entry := range tree.Tree {
		if entry.Type != "blob" {
			continue
		}
		if lockFiles[baseName(entry.Path)] {
			continue
		}
		paths = append(paths, entry.Path)
	}

	// Fetch file contents with bounded concurrency.
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		sem   = make(chan struct{}, maxContentWorkers)
		files []domain.SourceFile
	)
	for _, p := range paths {
		wg.Add(1)
		sem <- struct{}{}
		go func(filePath string) {
			defer wg.Done()
			defer func() { <-sem }()

			content, err := c.fileContent(ctx, owner, repo, token, branch, filePath)
			if err != nil {
				slog.Warn("skipping unreadable file", "file", filePath, "error", err)
				return
			}
			if !utf8.ValidString(content) || strings.ContainsRune(content, 0) {
				slog.Warn("skipping binary file", "file", filePath)
				return
			}

			mu.Lock()
			files = append(files, domain.SourceFile{Path: filePath, Content: content})
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	// Stable order for downstream processing.
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (c *Client) fileContent(ctx context.Context, owner, repo, token, branch, filePath string) (string, error) {
	var content contentResponse
	path := fmt.Sprintf("/repos/%s/%s/contents/%s?ref=%s", owner, repo, filePath, branch)
	if err := c.get(ctx, path, token, &content); err != nil {
		return "", err
	}

	if content.Encoding != "base64" {
		return content.Content, nil
	}
	raw := strings.ReplaceAll(content.Content, "\n", "")
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", filePath, err)
	}
	return string(decoded), nil
}

func (c *Client) listBranchCommits(ctx context.Context, owner, repo, token, branch string, since time.Time) ([]domain.CommitInfo, error) {
	path := fmt.Sprintf("/repos/%s/%s/commits?sha=%s&per_page=100", owner, repo, branch)
	if !since.IsZero() {
		path += "&since=" + since.UTC().Format(time.RFC3339)
	}

	var raw []commitResponse
	if err := c.get(ctx, path, token, &raw); err != nil {
		return nil, err
	}

	commits := make([]domain.CommitInfo, 0, len(raw))
	for _, r := range raw {
		authorName := r.Commit.Author.Name
		if authorName == "" {
			authorName = "Unknown"
		}
		commits = append(commits, domain.CommitInfo{
			Hash:       r.SHA,
			Message:    r.Commit.Message,
			AuthorName: authorName,
			AvatarURL:  r.Author.AvatarURL,
			Date:       r.Commit.Author.Date,
		})
	}
	return commits, nil
}

// get performs an authenticated GET against the GitHub API and decodes JSON.
func (c *Client) get(ctx context.Context, path, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("github API error (%d): %s", resp.StatusCode, string(data))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// parseRepoURL extracts owner and repo name from a GitHub URL.
func parseRepoURL(repoURL string) (owner, repo string, err error) {
	trimmed := strings.TrimSuffix(strings.TrimRight(repoURL, "/"), ".git")
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("invalid repository URL: %s", repoURL)
	}
	owner = parts[len(parts)-2]
	repo = parts[len(parts)-1]
	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("invalid repository URL: %s", repoURL)
	}
	return owner, repo, nil
}

func baseName(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
