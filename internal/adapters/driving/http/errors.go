package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/custodia-labs/sibila/internal/core/domain"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string      `json:"error"`
	Kind  domain.Kind `json:"kind"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalidArgument:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindEmbeddingRejected:
		return http.StatusUnprocessableEntity
	case domain.KindEmbeddingUnavailable, domain.KindCancelled:
		return http.StatusServiceUnavailable
	case domain.KindEmbeddingTimeout:
		return http.StatusGatewayTimeout
	case domain.KindDimensionMismatch:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// kindFor maps a framework status to an error kind.
func kindFor(status int) domain.Kind {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return domain.KindInvalidArgument
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return domain.KindNotFound
	default:
		return domain.KindInternal
	}
}

// invalid wraps a client mistake as domain.ErrInvalidArgument.
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalidArgument}, args...)...)
}

// validationError turns validator output into a readable client error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return invalid("field %s failed %q", fe.Field(), fe.Tag())
	}
	return invalid("%v", err)
}

// handleError writes the JSON error body with the status of its kind.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		status int
		body   ErrorResponse
		he     *echo.HTTPError
	)
	if errors.As(err, &he) {
		status = he.Code
		body = ErrorResponse{Error: fmt.Sprint(he.Message), Kind: kindFor(he.Code)}
	} else {
		body = ErrorResponse{Error: err.Error(), Kind: domain.KindOf(err)}
		status = statusFor(body.Kind)
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("uri", c.Request().RequestURI),
			zap.String("kind", string(body.Kind)),
			zap.Error(err),
		)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, body)
	}
	if writeErr != nil {
		s.logger.Warn("writing error response", zap.Error(writeErr))
	}
}
