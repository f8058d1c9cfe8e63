// file: internals/route/index.go
package routes

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	abtestRoute "abtestku_backend/internals/features/abtests/abtest/route"
	authRoute "abtestku_backend/internals/features/users/auth/route"
	"abtestku_backend/internals/middlewares"
)

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	// rate limiter global
	app.Use(middlewares.GlobalRateLimiter())

	log.Println("[INFO] Setting up AuthRoutes...")
	authRoute.AuthRoutes(app, db)

	log.Println("[INFO] Setting up AbTestRoutes...")
	abtestRoute.AbTestRoutes(app, db)
}
