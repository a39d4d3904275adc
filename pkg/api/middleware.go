package api

import (
	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

// uploadBodyLimit caps multipart/form-data request bodies at the
// server's configured UploadMaxMB, rejecting oversized uploads at the
// HTTP read level before the file ever reaches disk, the same
// middleware.BodyLimit the teacher applies server-wide in server.go.
func uploadBodyLimit(maxMB int64) echo.MiddlewareFunc {
	if maxMB <= 0 {
		maxMB = 512
	}
	return middleware.BodyLimit(int(maxMB) * 1024 * 1024)
}

// corsMiddleware allows the configured origin list to make
// cross-origin requests, needed because the dashboard is served from a
// different origin than the API during development.
func corsMiddleware(origins []string) echo.MiddlewareFunc {
	allowAll := len(origins) == 0 || (len(origins) == 1 && origins[0] == "*")
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			origin := c.Request().Header.Get("Origin")
			if origin != "" && (allowAll || allowed[origin]) {
				h := c.Response().Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
			}
			if c.Request().Method == "OPTIONS" {
				return c.NoContent(204)
			}
			return next(c)
		}
	}
}
