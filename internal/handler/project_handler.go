package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/hackollab/core/internal/adapter/store"
	"github.com/hackollab/core/internal/domain"
	"github.com/hackollab/core/internal/port"
	"github.com/hackollab/core/internal/service"
)

// ProjectHandler exposes project registration and the ingestion surface.
// Index and reindex run as tracked background jobs: the handler answers 202
// with a job id the caller can poll or stream.
type ProjectHandler struct {
	store   *store.PostgresStore
	ingest  *service.IngestService
	tracker *JobTracker
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(s *store.PostgresStore, ingest *service.IngestService, tracker *JobTracker) *ProjectHandler {
	return &ProjectHandler{store: s, ingest: ingest, tracker: tracker}
}

// Register sets up project routes.
func (h *ProjectHandler) Register(api fiber.Router) {
	projects := api.Group("/projects")
	projects.Post("/", h.Create)
	projects.Get("/:id", h.Get)
	projects.Delete("/:id", h.Delete)
	projects.Post("/:id/index", h.Index)
	projects.Post("/:id/reindex", h.Reindex)
}

// Create registers a project record. Ownership and access control live in
// the hosting application; this surface exists so the core is exercisable
// on its own.
func (h *ProjectHandler) Create(c fiber.Ctx) error {
	var body struct {
		Name        string `json:"name"`
		GithubURL   string `json:"github_url"`
		GithubToken string `json:"github_token"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	if body.Name == "" || body.GithubURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name and github_url are required"})
	}

	project, err := h.store.CreateProject(c.Context(), &domain.Project{
		Name:        body.Name,
		GithubURL:   body.GithubURL,
		GithubToken: body.GithubToken,
	})
	if store.IsUniqueViolation(err) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "project with this github_url already exists"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(project)
}

// Get returns a project by id.
func (h *ProjectHandler) Get(c fiber.Ctx) error {
	project, err := h.store.GetProject(c.Context(), c.Params("id"))
	if errors.Is(err, port.ErrProjectNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "project not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(project)
}

// Delete removes the project; embeddings and commits cascade with it.
func (h *ProjectHandler) Delete(c fiber.Ctx) error {
	if err := h.store.DeleteProject(c.Context(), c.Params("id")); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Index starts an ingestion job for the project.
func (h *ProjectHandler) Index(c fiber.Ctx) error {
	return h.startJob(c, "index", h.ingest.IndexRepository)
}

// Reindex clears the project's records and starts a fresh ingestion job.
func (h *ProjectHandler) Reindex(c fiber.Ctx) error {
	return h.startJob(c, "reindex", h.ingest.ReindexRepository)
}

func (h *ProjectHandler) startJob(c fiber.Ctx, kind string, run func(context.Context, string, string) (*service.IngestResult, error)) error {
	projectID := c.Params("id")

	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	if body.APIKey == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": port.ErrCredentialsMissing.Error()})
	}

	jobID := uuid.NewString()
	h.tracker.Create(jobID, projectID, kind)

	go func() {
		h.tracker.Start(jobID)
		result, err := run(context.Background(), projectID, body.APIKey)

		switch {
		case err != nil && result != nil && result.Indexed > 0:
			// Truncated run that still wrote records is a partial success.
			h.tracker.Complete(jobID, JobPartial, result, err)
		case err != nil:
			slog.Error("ingestion job failed", "job_id", jobID, "project_id", projectID, "error", err)
			h.tracker.Complete(jobID, JobFailed, result, err)
		case result.Partial():
			h.tracker.Complete(jobID, JobPartial, result, nil)
		default:
			h.tracker.Complete(jobID, JobSucceeded, result, nil)
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": jobID, "status": JobQueued})
}
