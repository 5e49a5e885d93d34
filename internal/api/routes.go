package api

import (
	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(app *fiber.App, rag Pipeline) {
	h := NewHandler(rag)

	app.Get("/health", h.Health)
	app.Post("/ingest", h.Ingest)
	app.Post("/ask", h.Ask)
}
