package middleware

import (
	"strings"

	"welfare-receipts-backend/config"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

const defaultCorsOrigin = "http://localhost:5173"

// InitCors applies CORS settings to the app. CORS_ORIGINS is a comma separated list; the
// download headers are exposed so the browser can name rejected-record reports and
// printed board receipts.
func InitCors(app *fiber.App) {
	app.Use(cors.New(cors.Config{
		AllowOrigins:     AllowedOrigins(config.GetEnv("CORS_ORIGINS")),
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Cookie",
		ExposeHeaders:    "Content-Disposition, Content-Length",
		AllowCredentials: true,
	}))
}

// AllowedOrigins normalises a comma separated origin list. Wildcards are dropped because
// the API is called with credentials.
func AllowedOrigins(raw string) string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" || origin == "*" {
			continue
		}
		origins = append(origins, origin)
	}
	if len(origins) == 0 {
		return defaultCorsOrigin
	}
	return strings.Join(origins, ",")
}
