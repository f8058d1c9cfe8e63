package route

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"abtestku_backend/internals/features/abtests/abtest/controller"
	authMiddleware "abtestku_backend/internals/middlewares/auth"
)

// AbTestRoutes memasang endpoint A/B test. Semua endpoint butuh JWT —
// identitas user diambil dari token, bukan dari body/path.
func AbTestRoutes(app *fiber.App, db *gorm.DB) {
	ctl := controller.NewAbTestController(db)

	abtest := app.Group("/api/abtest", authMiddleware.AuthMiddleware(db))

	abtest.Post("/assign/:test_name", ctl.AssignTest)
	abtest.Get("/group/:test_name", ctl.GetTestGroup)

	abtest.Post("/metrics/:test_name", ctl.RecordMetric)
	abtest.Get("/metrics/:test_name", ctl.GetUserMetrics)

	abtest.Get("/results/:test_name", ctl.GetTestResults)
}
