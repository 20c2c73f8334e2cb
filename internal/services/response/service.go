// Package response provides the HTTP response helpers shared by all handlers.
package response

import (
	"errors"

	"github.com/omnigate/omnigate/internal/models"

	"github.com/gofiber/fiber/v2"
)

type Service struct{}

func NewService() *Service {
	return &Service{}
}

// ErrorResponse is the standard API error envelope
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Success sends a 200 OK response with the provided data
func (s *Service) Success(c *fiber.Ctx, data any) error {
	return c.JSON(data)
}

// Error maps an application error onto the error envelope. Provider
// credentials and upstream internals never reach the wire: anything that is
// not an AppError is sanitized down to a generic internal error first.
func (s *Service) Error(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		appErr = models.NewInternalError("internal server error", err)
	}
	sanitized := models.SanitizeError(appErr)
	return c.Status(sanitized.StatusCode).JSON(ErrorResponse{
		Error: ErrorDetail{
			Message: sanitized.Message,
			Type:    string(sanitized.Type),
			Code:    sanitized.Code,
		},
	})
}
