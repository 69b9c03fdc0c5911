package middleware

// identity.go holds the helpers that read the authenticated identity back
// out of the request context, shared by the other middleware and handlers.

import "github.com/labstack/echo/v4"

// OwnerEmail returns the authenticated owner's email stored by JWTAuth, or
// an empty string on unauthenticated routes.
func OwnerEmail(c echo.Context) string {
	if v, ok := c.Get(ownerEmailKey).(string); ok {
		return v
	}
	return ""
}

// identityOrAnon is used for cache and rate-limit keys, where an empty
// segment would collapse all anonymous traffic into one bucket by accident
// rather than on purpose.
func identityOrAnon(c echo.Context) string {
	if email := OwnerEmail(c); email != "" {
		return email
	}
	return "anon"
}
