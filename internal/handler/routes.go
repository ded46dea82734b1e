package handler

import (
	"github.com/gofiber/fiber/v2"
)

func SetupRoutes(
	app *fiber.App,
	sessionHandler *SessionHandler,
	scoreHandler *ScoreHandler,
	schoolHandler *SchoolHandler,
	healthHandler *HealthHandler,
	throttle fiber.Handler,
) {
	// Health checks (public, never throttled)
	app.Get("/health", healthHandler.Health)
	app.Get("/ready", healthHandler.Ready)

	// API v1
	api := app.Group("/api/v1", throttle)

	api.Post("/sessions", sessionHandler.CreateSession)
	api.Post("/scores", scoreHandler.UpdateScore)

	schools := api.Group("/schools")
	schools.Get("/", schoolHandler.ListSchools)
	schools.Post("/", schoolHandler.CreateSchool)
	schools.Get("/:id", schoolHandler.GetSchool)
}
