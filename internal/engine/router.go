package engine

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(app *fiber.App, h *Handler, authRequired fiber.Handler) {
	api := app.Group("/api", authRequired)

	api.Get("/types", h.ListTypes)

	api.Get("/types/:type/views", h.ListViews)
	api.Post("/types/:type/views", h.CreateView)
	api.Get("/views/:id", h.GetView)
	api.Put("/views/:id", h.UpdateView)
	api.Delete("/views/:id", h.DeleteView)
	api.Get("/views/:id/results", h.EvaluateView)

	api.Post("/types/:type/objects", h.CreateObject)
	api.Get("/objects/:id", h.GetObject)
	api.Put("/objects/:id/modules/:module", h.UpdateModule)
	api.Delete("/objects/:id/modules/:module", h.ClearModule)
	api.Delete("/objects/:id", h.DeleteObject)

	api.Post("/objects/:id/relations", h.CreateRelation)
	api.Delete("/relations/:id", h.DeleteRelation)

	api.Get("/types/:type/aggregate", h.Aggregate)
	api.Get("/modules/:module/count-by/:field", h.CountBy)
}
