package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nurpe/lease-contracts/internal/http/middleware"
	"github.com/nurpe/lease-contracts/internal/service"
)

func (h *Handler) handleError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": service.ErrValidationFailed.Error(), "errors": validationErr.Errors})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPreconditionFailed):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrExternalFailure):
		h.log.Error().Err(err).Str("request_id", middleware.GetRequestID(c)).Msg("external dependency failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "document generation failed, retry later"})
	default:
		h.log.Error().Err(err).Str("request_id", middleware.GetRequestID(c)).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
