package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/notifystream/internal/models"
	"github.com/charlesng35/notifystream/pkg/errors"
	"github.com/charlesng35/notifystream/pkg/response"
)

// UserRegistrar records verified callers in the local user table.
type UserRegistrar interface {
	Ensure(ctx context.Context, id, username string) (*models.User, error)
}

// RegisterIdentity makes sure the authenticated caller exists locally before
// the handler runs. It must be installed after Auth.
func RegisterIdentity(users UserRegistrar) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			response.Abort(c, errors.ErrUnauthorized)
			return
		}

		if _, err := users.Ensure(c.Request.Context(), identity.UserID, identity.Username); err != nil {
			_ = c.Error(err)
			response.Abort(c, err)
			return
		}

		c.Next()
	}
}
