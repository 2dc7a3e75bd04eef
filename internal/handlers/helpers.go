package handlers

import (
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/opendrive/server/internal/middleware"
	"github.com/opendrive/server/internal/views"
	"github.com/opendrive/server/pkg/logger"
	"github.com/opendrive/server/pkg/utils"
)

// render writes a page inside the shared layout. The logged-in user, if any,
// is added for the navigation bar.
func render(c *fiber.Ctx, status int, name string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	if _, ok := data["Form"]; !ok {
		data["Form"] = fiber.Map{"Username": "", "Email": ""}
	}
	if session := middleware.GetSession(c); session != nil {
		data["Username"] = session.Username
	}
	return c.Status(status).Render(name, data, views.Layout)
}

// param returns a route parameter with percent-escapes decoded.
func param(c *fiber.Ctx, key string) string {
	raw := c.Params(key)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func rootPath(username string) string {
	return "/" + username + "/root"
}

func wantsJSON(c *fiber.Ctx) bool {
	return strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON)
}

// ErrorHandler is the last stop for errors handlers return. Browsers get a
// small HTML page, JSON clients the usual envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "Something went wrong."

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
		message = fiberErr.Message
	}

	details := map[string]interface{}{
		"method":      c.Method(),
		"path":        c.Path(),
		"status_code": status,
	}
	if requestID, ok := c.Locals(middleware.RequestIDKey).(string); ok {
		details["request_id"] = requestID
	}
	if status >= fiber.StatusInternalServerError {
		if username := logger.GetUsernameFromContext(c); username != nil {
			logger.ErrorWithUser(*username, "request_failed", err, details)
		} else {
			logger.Error("request_failed", err, details)
		}
	}

	if wantsJSON(c) {
		return utils.Error(c, status, message)
	}
	return utils.ErrorPage(c, status, message)
}
