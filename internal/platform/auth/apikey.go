package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// APIKeyHeader carries the device credential on unattended push requests.
const APIKeyHeader = "X-Device-Key"

// APIKeyMiddleware authorizes unattended device integrations against a
// static key list. Imaging devices cannot do an OAuth dance, so pushes
// authenticate with a pre-shared key instead of a bearer token.
func APIKeyMiddleware(keys []string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			supplied := c.Request().Header.Get(APIKeyHeader)
			if supplied == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing device key")
			}
			for _, key := range keys {
				if subtle.ConstantTimeCompare([]byte(supplied), []byte(key)) == 1 {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid device key")
		}
	}
}
