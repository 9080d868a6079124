package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/microtask-api/internal/errors"
	"github.com/yukikurage/microtask-api/internal/services"
)

// respondServiceError maps typed service errors onto HTTP responses.
func respondServiceError(c *gin.Context, err error) {
	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		apierrors.WithCode(c, statusForKind(svcErr.Kind), svcErr.Code, svcErr.Message)
		return
	}

	switch {
	case errors.Is(err, services.ErrAIServiceNotConfigured):
		apierrors.ServiceUnavailable(c, err.Error())
	case errors.Is(err, services.ErrAINoValidTasks):
		apierrors.BadGateway(c, err.Error())
	default:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		apierrors.InternalError(c, "")
	}
}

func statusForKind(kind error) int {
	switch {
	case errors.Is(kind, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(kind, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(kind, services.ErrCapacityExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(kind, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(kind, services.ErrUnauthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
