package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/hackollab/core/internal/domain"
	"github.com/hackollab/core/internal/service"
)

// AskHandler exposes the semantic query engine.
type AskHandler struct {
	query *service.QueryService
}

// NewAskHandler creates a new ask handler.
func NewAskHandler(query *service.QueryService) *AskHandler {
	return &AskHandler{query: query}
}

// Register sets up the ask route.
func (h *AskHandler) Register(api fiber.Router) {
	api.Post("/projects/:id/ask", h.Ask)
}

// Ask answers a free-text question about the project's codebase.
func (h *AskHandler) Ask(c fiber.Ctx) error {
	var body struct {
		Question string `json:"question"`
		APIKey   string `json:"api_key"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	if body.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "question is required"})
	}

	answer, refs, err := h.query.Ask(c.Context(), c.Params("id"), body.Question, body.APIKey)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	// refs may legitimately be empty (no-context fallback path); callers
	// still get a usable answer.
	if refs == nil {
		refs = []domain.QueryResult{}
	}
	return c.JSON(fiber.Map{"answer": answer, "file_references": refs})
}
