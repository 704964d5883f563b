package presenter

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/totegamma/culturebridge/internal/domain"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

func BadRequest(c echo.Context, err error) error {
	slog.DebugContext(c.Request().Context(), "bad request", slog.String("error", err.Error()), slog.String("module", "rest"))
	return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func BadRequestMessage(c echo.Context, msg string) error {
	slog.DebugContext(c.Request().Context(), "bad request", slog.String("error", msg), slog.String("module", "rest"))
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func NotFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, errorResponse{Error: msg})
}

func InternalError(c echo.Context, err error) error {
	slog.ErrorContext(c.Request().Context(), "internal error", slog.String("error", err.Error()), slog.String("module", "rest"))
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

// Error maps domain errors to their status codes. payload, when non-nil,
// is returned as details so callers keep partial results.
func Error(c echo.Context, err error, payload any) error {
	var (
		validation domain.ValidationError
		upload     domain.UploadError
		publish    domain.PublishError
		conflict   domain.ConflictError
	)

	switch {
	case errors.As(err, &validation):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Details: validation.Outcome})
	case errors.Is(err, domain.ErrMergeConflict):
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Details: payload})
	case errors.Is(err, domain.ErrNotFound):
		return NotFound(c, err.Error())
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error(), Details: conflict})
	case errors.Is(err, domain.ErrPermission):
		return c.JSON(http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.As(err, &upload):
		return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error(), Details: upload.Failures})
	case errors.As(err, &publish):
		return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error(), Details: publish.Results})
	default:
		return InternalError(c, err)
	}
}
