package utils

import (
	"html"

	"github.com/gofiber/fiber/v2"
)

// Redirect answers a browser request with a redirect. Form posts get 303 so
// the browser follows up with a GET.
func Redirect(c *fiber.Ctx, location string) error {
	status := fiber.StatusFound
	if c.Method() != fiber.MethodGet && c.Method() != fiber.MethodHead {
		status = fiber.StatusSeeOther
	}
	return c.Redirect(location, status)
}

// ErrorPage writes a minimal HTML error document.
func ErrorPage(c *fiber.Ctx, status int, message string) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(status).SendString("<!doctype html><title>Open Drive</title><h1>" +
		html.EscapeString(message) + "</h1><p><a href=\"/\">Back to your drive</a></p>")
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

func Success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}
