package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/projecthub/internal/middleware"
	"github.com/huangang/projecthub/internal/models"
	"github.com/huangang/projecthub/internal/services"
	"github.com/huangang/projecthub/pkg/logger"
	"github.com/huangang/projecthub/pkg/response"
)

// ProjectHandler serves /api/projects. Per-project routes are gated by
// middleware.RequireProjectRole before they reach it.
type ProjectHandler struct {
	projectService *services.ProjectService
}

func NewProjectHandler(projectService *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

// List returns the caller's accessible projects
// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	var req services.ProjectListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.projectService.List(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, resp)
}

// GET /api/projects/:id
func (h *ProjectHandler) GetByID(c *gin.Context) {
	project, err := h.projectService.GetByID(c.Request.Context(), middleware.GetProjectID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, project)
}

// Create makes the caller the project's owner
// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req services.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	userID := middleware.GetUserID(c)
	project, err := h.projectService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		handleError(c, err)
		return
	}

	logger.Info().Str("request_id", logger.GetRequestID(c)).Uint("project_id", project.ID).Uint("owner_id", userID).Msg("project created")
	response.Created(c, project)
}

// PUT /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	var req services.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.projectService.Update(c.Request.Context(), middleware.GetProjectID(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, project)
}

// POST /api/projects/:id/archive
func (h *ProjectHandler) Archive(c *gin.Context) {
	h.setStatus(c, models.ProjectArchived)
}

// POST /api/projects/:id/unarchive
func (h *ProjectHandler) Unarchive(c *gin.Context) {
	h.setStatus(c, models.ProjectActive)
}

func (h *ProjectHandler) setStatus(c *gin.Context, status models.ProjectStatus) {
	project, err := h.projectService.SetStatus(c.Request.Context(), middleware.GetProjectID(c), status)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, project)
}

// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	projectID := middleware.GetProjectID(c)
	if err := h.projectService.Delete(c.Request.Context(), projectID, middleware.GetUserID(c)); err != nil {
		handleError(c, err)
		return
	}

	logger.Info().Str("request_id", logger.GetRequestID(c)).Uint("project_id", projectID).Msg("project deleted")
	response.Success(c, gin.H{"message": "project deleted"})
}
