package serverutils

import (
	"context"
	"errors"
	"net/http"

	"compliance-navigator-be/internal/service"
	"compliance-navigator-be/pkg/answer"
	"compliance-navigator-be/pkg/corpus"
	"compliance-navigator-be/pkg/navigation"
	"compliance-navigator-be/pkg/proxy"
	"compliance-navigator-be/pkg/renderer"
	"compliance-navigator-be/pkg/session"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware renders any error returned down the chain as the
// standard error envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}
		status := StatusFor(err)
		return c.Status(status).JSON(ErrorResponse(status, err.Error()))
	}
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	var (
		fiberErr      *fiber.Error
		validationErr *ValidationError
		fetchErr      *proxy.FetchError
		upstreamErr   *proxy.UpstreamError
		contentErr    *proxy.ContentTypeError
		exhaustedErr  *renderer.ExhaustedError
		teardownErr   *renderer.TeardownError
		answerErr     *session.AnswerServiceError
		answerStatus  *answer.StatusError
	)

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.As(err, &validationErr),
		errors.Is(err, session.ErrBlankQuestion),
		errors.Is(err, service.ErrInvalidRelayURL):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrHostNotAllowed):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrWorkbenchNotFound),
		errors.Is(err, corpus.ErrDocumentNotFound),
		errors.Is(err, session.ErrCitationNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, session.ErrNoDocument),
		errors.Is(err, session.ErrNotActiveRenderer),
		errors.Is(err, navigation.ErrStaleAction):
		return fiber.StatusConflict
	case errors.Is(err, session.ErrClosed):
		return fiber.StatusGone
	case errors.Is(err, service.ErrRateLimited):
		return fiber.StatusTooManyRequests
	case errors.As(err, &contentErr):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &upstreamErr), errors.As(err, &fetchErr):
		return fiber.StatusBadGateway
	case errors.As(err, &exhaustedErr):
		return fiber.StatusFailedDependency
	case errors.As(err, &teardownErr):
		return fiber.StatusServiceUnavailable
	case errors.As(err, &answerErr), errors.As(err, &answerStatus):
		return fiber.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}
