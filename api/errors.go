package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/mrsingh-rishi/meeting-report/apperr"
	"github.com/mrsingh-rishi/meeting-report/logger"
	"github.com/mrsingh-rishi/meeting-report/types"
)

// errorHandler renders every handler error as a JSON error body.
func errorHandler(log *logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		appErr, ok := apperr.As(err)
		if !ok {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(types.ErrorResponse{
					Error:     fe.Message,
					Code:      "HTTP_ERROR",
					RequestID: requestID(c),
				})
			}
			appErr = apperr.Internal(err)
		}

		fields := map[string]interface{}{
			logger.FieldRequestID: requestID(c),
			"code":                string(appErr.Code),
			"status":              appErr.HTTPStatus,
			"path":                c.Path(),
		}
		if appErr.HTTPStatus >= fiber.StatusInternalServerError {
			log.WithError(err).Error("request failed", fields)
		} else {
			log.WithError(err).Warn("request rejected", fields)
		}

		return c.Status(appErr.HTTPStatus).JSON(types.ErrorResponse{
			Error:     appErr.Message,
			Code:      string(appErr.Code),
			Detail:    appErr.Detail(),
			RequestID: requestID(c),
		})
	}
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}
