/**
 * @description
 * Bearer-token authentication for write endpoints.
 * Validates JWTs against a JWKS endpoint.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2: HTTP Context
 * - github.com/golang-jwt/jwt/v5: JWT parsing
 * - github.com/MicahParks/keyfunc/v2: JWKS fetching and caching
 *
 * @notes
 * - Without AUTH_JWKS_URL the middleware lets every request through.
 * - Caches JWKS keys to prevent excessive network calls.
 */

package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stocky-project/backend/internal/config"
	"github.com/stocky-project/backend/internal/logger"
)

const subjectKey = "auth_subject"

// Authenticator validates bearer tokens
type Authenticator struct {
	keyfunc jwt.Keyfunc
	jwks    *keyfunc.JWKS
}

// NewAuthenticator fetches the JWKS at cfg.Auth.JWKSURL. An empty URL yields
// a disabled Authenticator.
func NewAuthenticator(cfg *config.Config) (*Authenticator, error) {
	if cfg.Auth.JWKSURL == "" {
		logger.Warn("AUTH_JWKS_URL is empty. Reward creation is not authenticated.")
		return &Authenticator{}, nil
	}

	// Refresh the JWKS every hour.
	jwks, err := keyfunc.Get(cfg.Auth.JWKSURL, keyfunc.Options{
		RefreshInterval: time.Hour,
		RefreshErrorHandler: func(err error) {
			logger.Error("There was an error with the JWKS refresh: %v", err)
		},
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Auth middleware initialized with JWKS")
	return &Authenticator{keyfunc: jwks.Keyfunc, jwks: jwks}, nil
}

// NewAuthenticatorWithKeyfunc builds an Authenticator around kf.
func NewAuthenticatorWithKeyfunc(kf jwt.Keyfunc) *Authenticator {
	return &Authenticator{keyfunc: kf}
}

// Enabled reports whether tokens are checked.
func (a *Authenticator) Enabled() bool {
	return a != nil && a.keyfunc != nil
}

// Close stops the background JWKS refresh.
func (a *Authenticator) Close() {
	if a != nil && a.jwks != nil {
		a.jwks.EndBackground()
	}
}

// Protected rejects requests without a valid bearer token.
func (a *Authenticator) Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !a.Enabled() {
			return c.Next()
		}

		// 1. Get Token from Header
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing authorization header"})
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token format"})
		}

		// 2. Parse and Validate Token
		token, err := jwt.Parse(tokenString, a.keyfunc)
		if err != nil || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		}

		// 3. Extract subject
		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token missing subject"})
		}

		c.Locals(subjectKey, sub)
		return c.Next()
	}
}

// GetSubject returns the authenticated subject from context
func GetSubject(c *fiber.Ctx) (string, error) {
	sub, ok := c.Locals(subjectKey).(string)
	if !ok {
		return "", errors.New("subject not found in context")
	}
	return sub, nil
}
