package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	ctxUserIDKey   = "auth_user_id"
	ctxTenantIDKey = "auth_tenant_id"

	TenantHeader = "X-Tenant-ID"
	UserHeader   = "X-User-ID"
)

// NewIdentity returns an Echo middleware that establishes the acting user and tenant.
// With a signing key it requires an HS256 bearer token carrying "sub" and "ten" claims.
// Without one it trusts the X-User-ID and X-Tenant-ID headers of the upstream gateway.
func NewIdentity(signingKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var uid, tid uuid.UUID
			var err1, err2 error
			if signingKey != "" {
				auth := c.Request().Header.Get("Authorization")
				if !strings.HasPrefix(auth, "Bearer ") {
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
				}
				tok, err := jwt.Parse(strings.TrimPrefix(auth, "Bearer "), func(*jwt.Token) (any, error) {
					return []byte(signingKey), nil
				}, jwt.WithLeeway(30*time.Second), jwt.WithValidMethods([]string{"HS256"}))
				if err != nil || !tok.Valid {
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
				}
				claims, ok := tok.Claims.(jwt.MapClaims)
				if !ok {
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid claims"})
				}
				sub, _ := claims["sub"].(string)
				ten, _ := claims["ten"].(string)
				uid, err1 = uuid.Parse(sub)
				tid, err2 = uuid.Parse(ten)
			} else {
				uid, err1 = uuid.Parse(strings.TrimSpace(c.Request().Header.Get(UserHeader)))
				tid, err2 = uuid.Parse(strings.TrimSpace(c.Request().Header.Get(TenantHeader)))
			}
			if err1 != nil || err2 != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid user or tenant"})
			}
			c.Set(ctxUserIDKey, uid)
			c.Set(ctxTenantIDKey, tid)
			return next(c)
		}
	}
}

// UserID returns the acting user's ID from context.
func UserID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(ctxUserIDKey).(uuid.UUID)
	return id, ok
}

// TenantID returns the acting tenant's ID from context.
func TenantID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(ctxTenantIDKey).(uuid.UUID)
	return id, ok
}
