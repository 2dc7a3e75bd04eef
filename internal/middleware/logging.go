package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/opendrive/server/pkg/logger"
)

const RequestIDKey = "requestID"

func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := logger.GenerateRequestID()
		c.Locals(RequestIDKey, requestID)
		c.Set("X-Request-ID", requestID)

		err := c.Next()

		statusCode := c.Response().StatusCode()
		if err != nil {
			// The error handler has not run yet; report what it will send.
			statusCode = fiber.StatusInternalServerError
			if fiberErr, ok := err.(*fiber.Error); ok {
				statusCode = fiberErr.Code
			}
		}

		details := map[string]interface{}{
			"method":        c.Method(),
			"path":          c.Path(),
			"status_code":   statusCode,
			"latency_ms":    time.Since(start).Milliseconds(),
			"user_agent":    c.Get(fiber.HeaderUserAgent),
			"ip":            c.IP(),
			"request_body":  logger.GetRequestBodySummary(c),
			"response_body": logger.GetResponseSizeSummary(c),
			"request_id":    requestID,
		}

		username := logger.GetUsernameFromContext(c)
		switch {
		case statusCode >= 500 && username != nil:
			logger.ErrorWithUser(*username, "http_request", err, details)
		case statusCode >= 500:
			logger.Error("http_request", err, details)
		case username != nil:
			logger.InfoWithUser(*username, "http_request", details)
		default:
			logger.Info("http_request", details)
		}

		return err
	}
}

// SecurityLogger records refused and unresolvable requests.
func SecurityLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		statusCode := c.Response().StatusCode()
		var reason string
		switch statusCode {
		case fiber.StatusForbidden:
			reason = "access_denied"
		case fiber.StatusNotFound:
			reason = "not_found"
		default:
			return err
		}

		username := logger.GetUsernameFromContext(c)
		details := map[string]interface{}{
			"method": c.Method(),
			"path":   c.Path(),
			"ip":     c.IP(),
			"reason": reason,
		}

		if username != nil {
			logger.WarnWithUser(*username, reason, details)
		} else {
			logger.Warn(reason+"_unauthenticated", details)
		}

		return err
	}
}
