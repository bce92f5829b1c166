package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/negosyoko/nena/internal/auth"
	"github.com/negosyoko/nena/internal/identity"
)

// Authenticator resolves the user behind a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (identity.User, error)
}

// JWTAuth returns a middleware that validates bearer access tokens and
// stores the user ID in c.Locals(auth.UserIDLocal).
func JWTAuth(authn Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "Authentication credentials were not provided.")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		user, err := authn.Authenticate(c.UserContext(), tokenStr)
		if err != nil {
			if errors.Is(err, auth.ErrTokenInvalidated) {
				return fiber.NewError(http.StatusUnauthorized, "Token has been invalidated.")
			}
			return fiber.NewError(http.StatusUnauthorized, "Given token not valid for any token type")
		}

		c.Locals(auth.UserIDLocal, user.ID)
		c.Locals("token_version", user.TokenVersion)
		return c.Next()
	}
}
