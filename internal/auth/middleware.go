package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Luis200410/Improve/internal"
	"github.com/Luis200410/Improve/internal/response"
)

// UserKey is the gin context key holding the authenticated *internal.User.
const UserKey = "user"

func AuthMiddleware(provider Provider, logger internal.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Unauthorized("missing bearer token"))
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Unauthorized("missing bearer token"))
			return
		}

		user, err := provider.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, internal.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Unauthorized("invalid token"))
				return
			}
			logger.Errorf("auth: provider failure: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.InternalError("authentication unavailable"))
			return
		}
		c.Set(UserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user stored by AuthMiddleware.
func CurrentUser(c *gin.Context) (*internal.User, bool) {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*internal.User)
	return user, ok && user != nil
}
