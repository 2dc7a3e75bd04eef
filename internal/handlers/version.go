package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/opendrive/server/pkg/utils"
)

// Version is overridden at build time with -ldflags "-X ...handlers.Version=".
var Version = "dev"

func GetVersion(c *fiber.Ctx) error {
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"version": Version,
	})
}

func Health(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}
