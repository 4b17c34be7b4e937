package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/osteo-api/pkg/auth"
	"github.com/jwalitptl/osteo-api/pkg/errors"
)

const ContextUserID = "user_id"

// Authenticate verifies the bearer token and places its subject in the
// request context as the acting user.
func Authenticate(tokens auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			fail(c, errors.Unauthorized(auth.ErrInvalidToken))
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			fail(c, errors.Unauthorized(auth.ErrInvalidToken))
			return
		}

		claims, err := tokens.ValidateToken(token)
		if err != nil {
			fail(c, errors.Unauthorized(err))
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			fail(c, errors.Unauthorized(err))
			return
		}

		c.Set(ContextUserID, userID)
		c.Request = c.Request.WithContext(auth.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
