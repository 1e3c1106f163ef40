// middleware/auth.go
package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"wizzzard/models"
	"wizzzard/utils"
)

// IdentityKey is the Locals key holding the caller identity.
const IdentityKey = "identity"

// TokenIssuer signs and verifies HMAC bearer tokens carrying an Identity.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for id.
func (t *TokenIssuer) Issue(id models.Identity) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"uid":          id.UID,
		"username":     id.DisplayName,
		"is_anonymous": id.IsAnonymous,
		"iat":          now.Unix(),
		"exp":          now.Add(t.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and extracts its identity.
func (t *TokenIssuer) Parse(tokenString string) (models.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return models.Identity{}, utils.ErrUnauthenticated
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, utils.ErrUnauthenticated
	}
	if _, ok := claims["exp"].(float64); !ok {
		return models.Identity{}, utils.ErrUnauthenticated
	}

	uid, _ := claims["uid"].(string)
	if uid == "" {
		return models.Identity{}, utils.ErrUnauthenticated
	}
	username, _ := claims["username"].(string)
	anonymous, _ := claims["is_anonymous"].(bool)

	return models.Identity{UID: uid, DisplayName: username, IsAnonymous: anonymous}, nil
}

func bearerToken(c *fiber.Ctx) string {
	parts := strings.Split(c.Get("Authorization"), " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// RequireIdentity rejects requests without a valid bearer token.
func RequireIdentity(tokens *TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "error": "Missing authorization header"})
		}

		tokenString := bearerToken(c)
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "error": "Invalid authorization header format"})
		}

		id, err := tokens.Parse(tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "error": "Invalid or expired token"})
		}

		c.Locals(IdentityKey, id)
		return c.Next()
	}
}

// WebSocketAuth authenticates an upgrade request. Browsers cannot set headers
// on WebSocket requests, so the token may also come from the "token" query
// parameter or cookie.
func WebSocketAuth(tokens *TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c)
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			tokenString = c.Cookies("token")
		}
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "error": "Missing token"})
		}

		id, err := tokens.Parse(tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "error": "Invalid or expired token"})
		}

		c.Locals(IdentityKey, id)
		return c.Next()
	}
}

// CurrentIdentity returns the identity stored by the auth middleware.
func CurrentIdentity(c *fiber.Ctx) (models.Identity, error) {
	return IdentityFrom(c.Locals(IdentityKey))
}

// IdentityFrom converts a stored Locals value, such as one read from a
// websocket connection, back into an identity.
func IdentityFrom(v interface{}) (models.Identity, error) {
	id, ok := v.(models.Identity)
	if !ok || id.UID == "" {
		return models.Identity{}, utils.ErrUnauthenticated
	}
	return id, nil
}
