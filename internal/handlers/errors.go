package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/huangang/projecthub/internal/membership"
	"github.com/huangang/projecthub/internal/services"
	"github.com/huangang/projecthub/pkg/logger"
	"github.com/huangang/projecthub/pkg/response"
)

// toAppError maps domain errors onto HTTP statuses. Unknown errors come
// back nil.
func toAppError(err error) *response.AppError {
	switch {
	case membership.IsNotFound(err),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrTaskNotFound):
		return response.NewNotFound(err.Error())

	case errors.Is(err, membership.ErrAlreadyMember),
		errors.Is(err, services.ErrUsernameTaken),
		membership.IsInvariantViolation(err):
		return response.NewConflict(err.Error())

	case errors.Is(err, membership.ErrInvalidRole),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrAssigneeNotContributor):
		return response.NewBadRequest(err.Error())

	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrUserDisabled):
		return response.NewUnauthorized(err.Error())

	case errors.Is(err, membership.ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return response.NewUnavailable("service temporarily unavailable, please retry")
	}
	return nil
}

// handleError writes err as a JSON error response. Infrastructure
// failures are logged with the request id; their details never reach
// the client.
func handleError(c *gin.Context, err error) {
	appErr := toAppError(err)
	if appErr == nil {
		logger.Error().Err(err).Str("request_id", logger.GetRequestID(c)).Str("path", c.FullPath()).Msg("unhandled error")
		response.ServerError(c, "internal server error")
		return
	}
	if appErr.HTTPStatus >= 500 {
		logger.Warn().Err(err).Str("request_id", logger.GetRequestID(c)).Str("path", c.FullPath()).Msg("store unavailable")
	}
	response.Error(c, appErr)
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
