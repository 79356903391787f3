package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medimeet/telehealth-api/internal/model"
	"github.com/medimeet/telehealth-api/pkg/apperror"
	"github.com/medimeet/telehealth-api/pkg/identity"
)

const ContextUser = "current_user"

// UserSyncer maps verified identity claims to a local user, creating the
// row on first sight.
type UserSyncer interface {
	EnsureUser(ctx context.Context, claims *identity.Claims) (*model.User, error)
}

// Auth verifies the bearer token, syncs the user and stores it on the
// request context. Every route behind it can assume CurrentUser succeeds.
func Auth(verifier identity.Verifier, syncer UserSyncer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.Error(apperror.Unauthorized("missing or malformed authorization header"))
			c.Abort()
			return
		}

		claims, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}

		user, err := syncer.EnsureUser(c.Request.Context(), claims)
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}

		c.Set(ContextUser, user)
		c.Next()
	}
}

// RequireRole gates a route group to the given roles.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		c.Error(apperror.Forbidden("you do not have access to this resource"))
		c.Abort()
	}
}

// CurrentUser returns the authenticated user set by Auth. It must only be
// called on routes behind the Auth middleware.
func CurrentUser(c *gin.Context) *model.User {
	return c.MustGet(ContextUser).(*model.User)
}
