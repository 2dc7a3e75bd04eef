package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/opendrive/server/internal/middleware"
	"github.com/opendrive/server/internal/views"
)

// NewApp builds the fiber application with views, middleware and routes.
func NewApp(uploadLimitMB int, sessions *middleware.SessionMiddleware, auth *AuthHandler, drive *DriveHandler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Open Drive",
		BodyLimit:             uploadLimitMB * 1024 * 1024,
		Views:                 views.New(),
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())
	app.Use(sessions.Load)

	Register(app, auth, drive)
	return app
}
