package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hackollab/core/internal/adapter/ai"
	"github.com/hackollab/core/internal/domain"
	"github.com/hackollab/core/internal/port"
)

const (
	// similarityThreshold is the minimum cosine similarity for a stored
	// record to count as relevant to a question.
	similarityThreshold = 0.1
	searchLimit         = 10
	// sampleLimit bounds the random fallback sample used when no record
	// clears the threshold.
	sampleLimit = 5
	// maxContextChars bounds the prompt context assembled from retrieved files.
	maxContextChars = 40000

	// answerUnavailable is returned whenever streaming the answer fails,
	// including rate-limit errors.
	answerUnavailable = "Sorry, the AI service is currently experiencing high demand. Please try again later or check your API quota."
)

// QueryService answers natural-language questions over a project's indexed
// code. It only reads from the embedding store, never writes.
type QueryService struct {
	llm        port.LLMProvider
	embeddings port.EmbeddingStore
	dimension  int
}

// NewQueryService creates a new semantic query engine.
func NewQueryService(llm port.LLMProvider, embeddings port.EmbeddingStore, dimension int) *QueryService {
	return &QueryService{llm: llm, embeddings: embeddings, dimension: dimension}
}

// Ask embeds the question, retrieves the most similar files, and streams an
// LLM answer grounded in them. When nothing clears the similarity threshold
// a random sample of the project's files is used as context instead, so the
// answer generator always has some grounding; the returned file references
// stay empty in that case.
func (s *QueryService) Ask(ctx context.Context, projectID, question, apiKey string) (string, []domain.QueryResult, error) {
	slog.Info("semantic query", "project_id", projectID, "question", question)

	vector, err := s.llm.Embed(ctx, apiKey, question)
	if err != nil {
		slog.Warn("question embedding failed, using local fallback", "error", err)
		vector = ai.FallbackEmbedding(question, s.dimension)
	}

	refs, err := s.embeddings.SearchSimilar(ctx, projectID, vector, similarityThreshold, searchLimit)
	if err != nil {
		return "", nil, fmt.Errorf("search similar: %w", err)
	}

	contextDocs := refs
	if len(refs) == 0 {
		count, err := s.embeddings.CountByProject(ctx, projectID)
		if err == nil {
			slog.Info("no records above similarity threshold, sampling fallback context",
				"project_id", projectID, "total_embeddings", count)
		}
		sample, err := s.embeddings.RandomSample(ctx, projectID, sampleLimit)
		if err != nil {
			return "", nil, fmt.Errorf("random sample: %w", err)
		}
		contextDocs = sample
	}

	answer := s.streamAnswer(ctx, apiKey, buildPrompt(question, contextDocs))
	return answer, refs, nil
}

func (s *QueryService) streamAnswer(ctx context.Context, apiKey, prompt string) string {
	stream, err := s.llm.AnswerStream(ctx, apiKey, prompt)
	if err != nil {
		slog.Error("answer stream failed", "error", err)
		return answerUnavailable
	}

	var sb strings.Builder
	for chunk := range stream {
		sb.WriteString(chunk)
	}
	if sb.Len() == 0 {
		return answerUnavailable
	}
	return sb.String()
}

// buildPrompt assembles the bounded context block and the answering
// instructions around the user question.
func buildPrompt(question string, docs []domain.QueryResult) string {
	var context strings.Builder
	for _, doc := range docs {
		block := fmt.Sprintf("source: %s\ncode content: %s\nsummary of file: %s\n\n",
			doc.FileName, doc.SourceCode, doc.Summary)
		if context.Len()+len(block) > maxContextChars {
			break
		}
		context.WriteString(block)
	}

	return fmt.Sprintf(`You are an AI assistant helping with code analysis and questions about a codebase.

IMPORTANT INSTRUCTIONS:
- Answer questions based on the provided code context
- If the context contains relevant information, provide a detailed answer with code examples
- If the context doesn't contain specific information about the question, provide a general answer based on your knowledge about the topic
- Always be helpful and provide actionable insights
- Include code snippets when relevant

CONTEXT BLOCK (Code from the codebase):
%s

USER QUESTION:
%s

Please provide a helpful response based on the context and your knowledge. If the context doesn't contain specific information about the question, you can still provide general guidance about the topic.`,
		context.String(), question)
}
