package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/conteo/inventory-sync/internal/core/domain"
)

// Context keys set by Auth.
const (
	ContextIdentity = "identity"
	ContextRole     = "role"
)

// Auth validates the JWT and injects the caller identity into context.
// Tokens are issued elsewhere; user_id (or sub) identifies the host.
func Auth(jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims := jwt.MapClaims{}
			tkn, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !tkn.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			id := domain.Identity{
				UserID:    claimString(claims, "user_id"),
				Username:  claimString(claims, "username"),
				Role:      claimString(claims, "role"),
				CompanyID: claimString(claims, "company_id"),
			}
			if id.UserID == "" {
				id.UserID = claimString(claims, "sub")
			}
			if id.UserID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token missing user identity")
			}

			c.Set(ContextIdentity, id)
			c.Set(ContextRole, id.Role)

			return next(c)
		}
	}
}

func claimString(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}
