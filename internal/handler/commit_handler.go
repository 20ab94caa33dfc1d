package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/hackollab/core/internal/port"
	"github.com/hackollab/core/internal/service"
)

// CommitHandler exposes the commit synchronizer and commit history reads.
type CommitHandler struct {
	sync    *service.SyncService
	commits port.CommitStore
}

// NewCommitHandler creates a new commit handler.
func NewCommitHandler(sync *service.SyncService, commits port.CommitStore) *CommitHandler {
	return &CommitHandler{sync: sync, commits: commits}
}

// Register sets up commit routes.
func (h *CommitHandler) Register(api fiber.Router) {
	api.Post("/projects/:id/commits/sync", h.Sync)
	api.Get("/projects/:id/commits", h.List)
}

// Sync fetches, summarizes and persists new commits. The API key is
// optional: without one, summaries fall back to each commit message's
// first line.
func (h *CommitHandler) Sync(c fiber.Ctx) error {
	var body struct {
		APIKey string `json:"api_key"`
	}
	// Body is optional for credential-less sync.
	_ = c.Bind().JSON(&body)

	records, err := h.sync.SyncCommits(c.Context(), c.Params("id"), body.APIKey)
	if errors.Is(err, port.ErrRepoUnavailable) {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	if errors.Is(err, port.ErrProjectNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"synced": len(records), "commits": records})
}

// List returns the project's persisted commits, newest first.
func (h *CommitHandler) List(c fiber.Ctx) error {
	commits, err := h.commits.ListCommits(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"commits": commits, "count": len(commits)})
}
