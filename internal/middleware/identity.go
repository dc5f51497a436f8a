package middleware

import "github.com/labstack/echo/v4"

// UserID returns the authenticated user id set by JWTAuth, or "" when the
// request is anonymous.
func UserID(c echo.Context) string {
	if v, ok := c.Get("user_id").(string); ok {
		return v
	}
	return ""
}

// Role returns the authenticated role, or "".
func Role(c echo.Context) string {
	if v, ok := c.Get("role").(string); ok {
		return v
	}
	return ""
}
