package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// maxSummaryInput bounds the file content sent for summarization, to keep
// request cost and latency predictable.
const maxSummaryInput = 10000

// GeminiProvider implements port.LLMProvider against the Gemini REST API.
// The API key is supplied per call, never stored: one provider instance can
// safely serve many projects with different credentials.
type GeminiProvider struct {
	baseURL    string // e.g. https://generativelanguage.googleapis.com/v1beta
	model      string // e.g. gemini-1.5-flash
	dimension  int
	httpClient *http.Client
}

// NewGeminiProvider creates a Gemini-backed AI provider.
func NewGeminiProvider(baseURL, model string, dimension int) *GeminiProvider {
	return &GeminiProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimension:  dimension,
		httpClient: &http.Client{},
	}
}

// Dimension returns the fixed embedding dimensionality.
func (g *GeminiProvider) Dimension() int {
	return g.dimension
}

// SummarizeFile asks the model, acting as a senior engineer onboarding a
// junior, to explain the file's purpose in at most 100 words. Remote
// failures degrade to a placeholder summary so the surrounding pipeline is
// never aborted by one file.
func (g *GeminiProvider) SummarizeFile(ctx context.Context, apiKey, fileName, content string) (string, error) {
	if len(content) > maxSummaryInput {
		content = content[:maxSummaryInput]
	}

	system := "You are an intelligent senior software engineer who specialises in onboarding junior software engineers onto projects."
	user := fmt.Sprintf(
		"You are onboarding a junior software engineer and explaining to them the purpose of the %s file.\nHere is the code:\n---\n%s\n---\nGive a summary no more than 100 words of the code above.",
		fileName, content,
	)

	summary, err := g.generate(ctx, apiKey, system, user)
	if err != nil {
		slog.Warn("file summarization failed, using placeholder", "file", fileName, "error", err)
		return "This file contains code for " + fileName, nil
	}
	return strings.TrimSpace(summary), nil
}

// SummarizeDiff summarizes a unified git diff as a short bullet list of changes.
func (g *GeminiProvider) SummarizeDiff(ctx context.Context, apiKey, diff string) (string, error) {
	system := strings.Join([]string{
		"You are an expert programmer, and you are trying to summarize a git diff.",
		"Reminders about the git diff format:",
		"For every file, there are a few metadata lines, for example:",
		"diff --git a/lib/index.js b/lib/index.js",
		"index aadf691..bfef603 100644",
		"--- a/lib/index.js",
		"+++ b/lib/index.js",
		"This means that lib/index.js was modified in this commit.",
		"A line starting with + means it was added.",
		"A line starting with - means that line was deleted.",
		"A line that starts with neither + nor - is context code, not part of the diff.",
		"",
		"EXAMPLE SUMMARY COMMENTS:",
		"* Raised the amount of returned recordings from 10 to 100 [packages/server/recordings_api.ts], [packages/server/constants.ts]",
		"* Fixed a typo in the github action name [.github/workflows/gpt-commit-summarizer.yml]",
		"* Moved the octokit initialization to a separate file [src/octokit.ts], [src/index.ts]",
		"* Added an OpenAI API for completions [packages/utils/apis/openai.ts]",
		"* Lowered numeric tolerance for test files",
		"",
		"Most commits will have fewer comments than this example list.",
		"The last comment does not include file names because more than two files were relevant.",
		"Do not include parts of the example in your summary; it is given only as a model of appropriate comments.",
	}, "\n")

	out, err := g.generate(ctx, apiKey, system, "Please summarise the following diff file:\n\n"+diff)
	if err != nil {
		return "", fmt.Errorf("summarize diff: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Embed converts text into a fixed-length vector. The primary path asks the
// model for a comma-separated numeric representation and parses it; unusable
// output is zero-padded. Any remote failure falls back to the local
// deterministic embedding, so Embed always returns a usable vector.
func (g *GeminiProvider) Embed(ctx context.Context, apiKey, text string) ([]float32, error) {
	out, err := g.generate(ctx, apiKey, "",
		"Convert this text to a numerical representation (just numbers separated by commas): "+text)
	if err != nil {
		slog.Warn("remote embedding failed, using local fallback", "error", err)
		return FallbackEmbedding(text, g.dimension), nil
	}

	vector := make([]float32, g.dimension)
	i := 0
	for _, field := range strings.Split(out, ",") {
		if i >= g.dimension {
			break
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(field), 32)
		if err != nil {
			continue
		}
		vector[i] = float32(n)
		i++
	}
	return vector, nil
}

// AnswerStream streams a generated answer chunk by chunk. The stream API
// returns a JSON array of responses; each element is decoded as it arrives.
func (g *GeminiProvider) AnswerStream(ctx context.Context, apiKey, prompt string) (<-chan string, error) {
	payload := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?key=%s", g.baseURL, g.model, apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini stream: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("gemini API error (%d): %s", resp.StatusCode, string(data))
	}

	ch := make(chan string, 64)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		decoder := json.NewDecoder(resp.Body)
		if _, err := decoder.Token(); err != nil { // opening bracket
			return
		}
		for decoder.More() {
			var chunk generateResponse
			if err := decoder.Decode(&chunk); err != nil {
				return
			}
			if text := chunk.text(); text != "" {
				ch <- text
			}
		}
	}()

	return ch, nil
}

// --- wire types ---

type generateRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (r *generateResponse) text() string {
	var sb strings.Builder
	for _, c := range r.Candidates {
		for _, p := range c.Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// generate is a helper for non-streaming generateContent calls.
func (g *GeminiProvider) generate(ctx context.Context, apiKey, systemPrompt, userPrompt string) (string, error) {
	if apiKey == "" {
		return "", fmt.Errorf("gemini: empty API key")
	}

	payload := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: userPrompt}}}},
	}
	if systemPrompt != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: systemPrompt}}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("gemini API error (%d): %s", resp.StatusCode, string(data))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("gemini decode: %w", err)
	}
	return out.text(), nil
}
