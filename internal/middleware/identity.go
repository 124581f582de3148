package middleware

import "github.com/labstack/echo/v4"

// currentUserID returns the authenticated user id, or "anon" for requests
// that did not pass through JWTAuth.
func currentUserID(c echo.Context) string {
	if s, ok := c.Get(CtxUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
