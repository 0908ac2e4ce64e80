package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass clinic resolution and session handling.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
}

// PublicSkipper reports whether the matched route is a public infrastructure
// endpoint.
func PublicSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}
