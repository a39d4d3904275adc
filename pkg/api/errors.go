package api

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/tsforge/tsforge/pkg/services"
	"github.com/tsforge/tsforge/pkg/viewport"
)

// ErrorResponse is the JSON body every non-2xx REST response uses
// (spec.md §7).
type ErrorResponse struct {
	Error string `json:"error"`
}

// httpError maps a service-layer error to a status code, following the
// teacher's pattern of translating sentinel errors at the handler
// boundary rather than leaking storage-layer types to clients.
func httpError(c *echo.Context, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	case services.IsValidationError(err):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, viewport.ErrNotParsed):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
