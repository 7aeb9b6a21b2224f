package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/projecthub/internal/middleware"
	"github.com/huangang/projecthub/internal/services"
	"github.com/huangang/projecthub/pkg/logger"
	"github.com/huangang/projecthub/pkg/response"
)

// ContributorHandler serves /api/projects/:id/contributors.
type ContributorHandler struct {
	contributorService *services.ContributorService
}

func NewContributorHandler(contributorService *services.ContributorService) *ContributorHandler {
	return &ContributorHandler{contributorService: contributorService}
}

// List returns all contributors of a project, oldest first.
func (h *ContributorHandler) List(c *gin.Context) {
	items, err := h.contributorService.List(c.Request.Context(), middleware.GetProjectID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, items)
}

// Add grants a user a non-owner role in the project.
func (h *ContributorHandler) Add(c *gin.Context) {
	var req services.AddContributorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	projectID := middleware.GetProjectID(c)
	contributor, err := h.contributorService.Add(c.Request.Context(), projectID, middleware.GetUserID(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	logger.Info().Str("request_id", logger.GetRequestID(c)).
		Uint("project_id", projectID).Uint("user_id", contributor.UserID).Str("role", contributor.Role.String()).
		Msg("contributor added")
	response.Created(c, contributor)
}

// Update changes a contributor's role.
func (h *ContributorHandler) Update(c *gin.Context) {
	contributorID, ok := parseIDParam(c, "cid")
	if !ok {
		return
	}

	var req services.UpdateContributorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	contributor, err := h.contributorService.UpdateRole(c.Request.Context(), middleware.GetProjectID(c), contributorID, middleware.GetUserID(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, contributor)
}

// Remove revokes a contributor's membership.
func (h *ContributorHandler) Remove(c *gin.Context) {
	contributorID, ok := parseIDParam(c, "cid")
	if !ok {
		return
	}

	projectID := middleware.GetProjectID(c)
	if err := h.contributorService.Remove(c.Request.Context(), projectID, contributorID, middleware.GetUserID(c)); err != nil {
		handleError(c, err)
		return
	}

	logger.Info().Str("request_id", logger.GetRequestID(c)).
		Uint("project_id", projectID).Uint("contributor_id", contributorID).
		Msg("contributor removed")
	response.Success(c, gin.H{"message": "contributor removed"})
}

// Role returns the caller's own role in the project.
// GET /api/projects/:id/role
func (h *ContributorHandler) Role(c *gin.Context) {
	resp, err := h.contributorService.RoleOf(c.Request.Context(), middleware.GetUserID(c), middleware.GetProjectID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, resp)
}
