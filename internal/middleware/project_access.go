package middleware

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/huangang/projecthub/internal/models"
	"github.com/huangang/projecthub/pkg/logger"
	"github.com/huangang/projecthub/pkg/response"
)

const ContextProjectID = "project_id"

// PermissionChecker answers whether a user meets a role in a project.
// membership.Evaluator implements it.
type PermissionChecker interface {
	HasPermission(ctx context.Context, userID, projectID uint, required models.Role) (bool, error)
}

// RequireProjectRole gates a route on the caller's role in the project
// named by the :id path parameter. Non-members and under-privileged
// members get 403; a failed lookup gets 503 and is never read as a
// denial.
func RequireProjectRole(checker PermissionChecker, required models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil || projectID == 0 {
			response.BadRequest(c, "invalid project id")
			return
		}

		userID := GetUserID(c)
		ok, err := checker.HasPermission(c.Request.Context(), userID, uint(projectID), required)
		if err != nil {
			logger.Error().Err(err).
				Str("request_id", logger.GetRequestID(c)).
				Uint("user_id", userID).
				Uint64("project_id", projectID).
				Msg("permission check failed")
			response.Error(c, response.NewUnavailable("permission check unavailable, please retry"))
			return
		}
		if !ok {
			response.Forbidden(c, "insufficient project role, "+string(required)+" required")
			return
		}

		c.Set(ContextProjectID, uint(projectID))
		c.Next()
	}
}

// GetProjectID returns the project id validated by RequireProjectRole.
func GetProjectID(c *gin.Context) uint {
	if id, ok := c.Get(ContextProjectID); ok {
		if v, ok := id.(uint); ok {
			return v
		}
	}
	return 0
}
