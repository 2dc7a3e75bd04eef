package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/opendrive/server/internal/middleware"
)

// Register mounts every route on app. sessions.Load must already be in the
// middleware chain.
func Register(app *fiber.App, auth *AuthHandler, drive *DriveHandler) {
	app.Get("/health", Health)
	app.Get("/version", GetVersion)

	app.Get("/", auth.Index)
	app.Get("/login", auth.LoginPage)
	app.Post("/login", auth.Login)
	app.Get("/signup", auth.SignupPage)
	app.Post("/signup", auth.Signup)
	app.Get("/logout", auth.Logout)

	app.Get("/shared", middleware.RequireUser, drive.Shared)
	app.Post("/upload", middleware.RequireUser, drive.Upload)
	app.Post("/new", middleware.RequireUser, drive.NewFolder)
	app.Get("/download/:folder/:file", middleware.RequireUser, drive.Download)
	app.Post("/delete/:folder/:file", middleware.RequireUser, drive.DeleteFile)
	app.Post("/delete/:folder", middleware.RequireUser, drive.DeleteFolder)
	app.Get("/:user/:folder", middleware.RequireUser, drive.Browse)
}
