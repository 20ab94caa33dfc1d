package port

import "context"

// LLMProvider abstracts the AI backend for summaries, embeddings and answers.
// The API key is passed per call so concurrent projects with different
// credentials never share client state.
type LLMProvider interface {
	// SummarizeFile returns a short natural-language description of a
	// source file. The production adapter degrades remote failures to a
	// deterministic placeholder referencing the file path and returns nil.
	SummarizeFile(ctx context.Context, apiKey, fileName, content string) (string, error)

	// SummarizeDiff summarizes a unified git diff.
	SummarizeDiff(ctx context.Context, apiKey, diff string) (string, error)

	// Embed converts text into a fixed-dimensionality vector. The
	// production adapter degrades remote failures to a local deterministic
	// embedding and returns nil.
	Embed(ctx context.Context, apiKey, text string) ([]float32, error)

	// AnswerStream streams an answer to a fully assembled prompt,
	// chunk by chunk.
	AnswerStream(ctx context.Context, apiKey, prompt string) (<-chan string, error)
}
