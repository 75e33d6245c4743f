package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const actorContextKey = "actor"

// AuthConfig holds the admin authentication settings.
type AuthConfig struct {
	JWTSecret    string
	AdminAPIKey  string
	APIKeyHeader string
}

// AdminAuth authenticates admin requests with either the static admin API key
// or a bearer JWT. The authenticated identity is stored on the request context
// as the acting principal for audit attribution.
func AdminAuth(cfg AuthConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.AdminAPIKey != "" && c.Request().Header.Get(cfg.APIKeyHeader) == cfg.AdminAPIKey {
				c.Set(actorContextKey, "admin")
				return next(c)
			}

			if cfg.JWTSecret != "" {
				auth := c.Request().Header.Get(echo.HeaderAuthorization)
				if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
					subject, err := verifyToken(token, cfg.JWTSecret)
					if err == nil {
						c.Set(actorContextKey, subject)
						return next(c)
					}
				}
			}

			return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		}
	}
}

// verifyToken validates an HMAC-signed token and returns its subject.
func verifyToken(token, secret string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("token missing subject")
	}
	return subject, nil
}

// actor returns the authenticated principal for the request, or SYSTEM for
// unauthenticated paths.
func actor(c echo.Context) string {
	if v, ok := c.Get(actorContextKey).(string); ok && v != "" {
		return v
	}
	return "SYSTEM"
}
