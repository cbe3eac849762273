package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/notifystream/internal/auth"
	"github.com/charlesng35/notifystream/pkg/errors"
	"github.com/charlesng35/notifystream/pkg/response"
)

const (
	CtxIdentityKey = "authIdentity"
	CtxUserIDKey   = "userID"
)

// TokenVerifier resolves bearer tokens into identities.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (auth.Identity, error)
}

// Auth enforces bearer authentication using the supplied verifier.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			response.Abort(c, errors.ErrUnauthorized)
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), token)
		if err != nil || strings.TrimSpace(identity.UserID) == "" {
			// All verification failures look the same to the client.
			c.Header("WWW-Authenticate", "Bearer")
			response.Abort(c, errors.ErrUnauthorized.WithInternal(err))
			return
		}

		c.Set(CtxIdentityKey, identity)
		c.Set(CtxUserIDKey, identity.UserID)

		c.Next()
	}
}

// IdentityFrom returns the identity stored by Auth.
func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	value, ok := c.Get(CtxIdentityKey)
	if !ok {
		return auth.Identity{}, false
	}
	identity, ok := value.(auth.Identity)
	return identity, ok
}
