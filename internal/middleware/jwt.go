package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/coursetrack-api/internal/utils"
)

const (
	// LocalUserID is the fiber.Ctx local holding the authenticated user id (uint).
	LocalUserID = "user_id"
	// LocalUserRole is the fiber.Ctx local holding the authenticated role (lower case).
	LocalUserRole = "user_role"
)

// LoginPath is where unauthenticated or unauthorised clients are sent.
const LoginPath = "/login"

// JWTProtected validates HS256 bearer tokens and stores the subject and role as locals.
func JWTProtected(secret string) fiber.Handler {
	authenticate := newAuthenticator(secret)

	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return unauthorized(c, "authorization header missing")
		}
		if message := authenticate(c, tokenString); message != "" {
			return unauthorized(c, message)
		}
		return c.Next()
	}
}

// JWTOptional authenticates the caller when a valid bearer token is present and lets
// anonymous requests through untouched.
func JWTOptional(secret string) fiber.Handler {
	authenticate := newAuthenticator(secret)

	return func(c *fiber.Ctx) error {
		if tokenString, ok := bearerToken(c.Get(fiber.HeaderAuthorization)); ok {
			_ = authenticate(c, tokenString)
		}
		return c.Next()
	}
}

// newAuthenticator returns a func that stores the token identity as locals, or
// reports why the token was refused.
func newAuthenticator(secret string) func(c *fiber.Ctx, tokenString string) string {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	key := []byte(secret)

	return func(c *fiber.Ctx, tokenString string) string {
		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		})
		if err != nil || !token.Valid {
			return "invalid token"
		}

		userID, ok := subjectFromClaims(claims)
		if !ok {
			return "invalid token claims"
		}

		c.Locals(LocalUserID, userID)
		if role, ok := claims["role"].(string); ok {
			c.Locals(LocalUserRole, strings.ToLower(strings.TrimSpace(role)))
		}
		return ""
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func subjectFromClaims(claims jwt.MapClaims) (uint, bool) {
	switch v := claims["sub"].(type) {
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil || parsed == 0 {
			return 0, false
		}
		return uint(parsed), true
	case float64:
		if v <= 0 {
			return 0, false
		}
		return uint(v), true
	default:
		return 0, false
	}
}

func unauthorized(c *fiber.Ctx, message string) error {
	return utils.Fail(c, fiber.StatusUnauthorized, message, fiber.Map{"redirect": LoginPath})
}
