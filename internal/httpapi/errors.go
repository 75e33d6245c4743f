package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/banking/merchant-risk-service/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

// respondError maps domain errors onto HTTP status codes.
func respondError(c echo.Context, err error) error {
	switch {
	case domain.IsValidation(err):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidState):
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		// Storage and unknown failures surface as opaque 500s.
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
