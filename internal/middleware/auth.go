package middleware

import (
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
)

// Context keys set by RequireAuth for downstream handlers.
const (
	ContextTenantID  = "tenantID"
	ContextUserUID   = "userUID"
	ContextUserEmail = "userEmail"
)

// RequireAuth returns a middleware that verifies Firebase ID tokens from the
// Authorization header and places the caller identity plus the opaque tenant
// identifier into the request context. The billing engine itself never
// inspects the token; it only consumes the tenant id and actor.
func RequireAuth(authClient *auth.Client) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if authClient == nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "authentication is not configured")
			}

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token := strings.TrimPrefix(header, "Bearer ")
			if token == "" || token == header {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			decoded, err := authClient.VerifyIDToken(c.Request().Context(), token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(ContextUserUID, decoded.UID)
			if email, ok := decoded.Claims["email"].(string); ok {
				c.Set(ContextUserEmail, email)
			}

			// Tenant comes from a custom claim set at provisioning time,
			// with a header fallback for service-to-service callers.
			tenantID, _ := decoded.Claims["tenant_id"].(string)
			if tenantID == "" {
				tenantID = c.Request().Header.Get("X-Tenant-ID")
			}
			if tenantID == "" {
				return echo.NewHTTPError(http.StatusBadRequest, "missing tenant identifier")
			}
			c.Set(ContextTenantID, tenantID)

			return next(c)
		}
	}
}
