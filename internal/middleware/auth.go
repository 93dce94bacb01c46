// Package middleware provides authentication, logging, tracing and rate
// limiting for the HTTP API.
package middleware

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"localpulse/internal/config"
	"localpulse/internal/models"
	"localpulse/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

var (
	errNotConfigured = errors.New("authentication is not configured")
	errInvalidToken  = errors.New("Invalid or expired token")
	errBadSubject    = errors.New("Invalid user ID in token")
	errNoBearer      = errors.New("Authorization header required")
	errBearerFormat  = errors.New("Invalid authorization header format")
)

// userIDFromToken validates an HS256 bearer token and returns the user id
// carried as a decimal string in its subject.
func userIDFromToken(raw string) (uint, error) {
	if cfg == nil {
		return 0, errNotConfigured
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, errInvalidToken
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil || id == 0 {
		return 0, errBadSubject
	}
	return uint(id), nil
}

func bearerToken(c *fiber.Ctx) (string, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return "", errNoBearer
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" || strings.Contains(token, " ") {
		return "", errBearerFormat
	}
	return token, nil
}

func unauthorized(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(err.Error()))
}

// authenticate records the caller for handlers and for log records
// written further down the request.
func authenticate(c *fiber.Ctx, userID uint) error {
	c.Locals("userID", userID)
	c.SetUserContext(observability.WithUserID(c.UserContext(), userID))
	return c.Next()
}

// AuthRequired is a middleware that enforces authentication for protected routes.
func AuthRequired(c *fiber.Ctx) error {
	token, err := bearerToken(c)
	if err != nil {
		return unauthorized(c, err)
	}
	userID, err := userIDFromToken(token)
	if err != nil {
		return unauthorized(c, err)
	}
	return authenticate(c, userID)
}

// OptionalAuth sets userID when a valid bearer token is present and lets
// anonymous requests through. A malformed or expired token is still rejected.
func OptionalAuth(c *fiber.Ctx) error {
	if c.Get("Authorization") == "" {
		return c.Next()
	}
	return AuthRequired(c)
}

// WebSocketAuthRequired is middleware that validates JWT tokens from query parameters for WebSocket connections.
func WebSocketAuthRequired(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		var err error
		if token, err = bearerToken(c); err != nil {
			return unauthorized(c, err)
		}
	}
	userID, err := userIDFromToken(token)
	if err != nil {
		return unauthorized(c, err)
	}
	return authenticate(c, userID)
}

// IssueToken signs an HS256 token whose subject is userID. Identity is owned
// by an external provider; this exists for the seed tool and local testing.
func IssueToken(userID uint, ttl time.Duration) (string, error) {
	if cfg == nil {
		return "", errNotConfigured
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
}

// UserID returns the authenticated user set by AuthRequired or OptionalAuth,
// or 0 for anonymous requests.
func UserID(c *fiber.Ctx) uint {
	if id, ok := c.Locals("userID").(uint); ok {
		return id
	}
	return 0
}
