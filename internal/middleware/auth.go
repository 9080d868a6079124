// Package middleware resolves the session user for protected routes.
package middleware

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/microtask-api/internal/constants"
	apierrors "github.com/yukikurage/microtask-api/internal/errors"
)

// RequireAuth rejects requests without a session user and stores the user id
// in the gin context as a uint64.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := toUserID(sessions.Default(c).Get(constants.ContextKeyUserID))
		if !ok {
			apierrors.Unauthorized(c, "")
			return
		}

		c.Set(constants.ContextKeyUserID, userID)
		c.Next()
	}
}

// StartSession binds userID to the caller's session cookie.
func StartSession(c *gin.Context, userID uint64) error {
	session := sessions.Default(c)
	session.Set(constants.ContextKeyUserID, userID)
	return session.Save()
}

// EndSession clears the caller's session.
func EndSession(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	return session.Save()
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (uint64, bool) {
	value, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return 0, false
	}
	return toUserID(value)
}

// CurrentUserID is GetUserID for handlers: it writes a 401 when the request is anonymous.
func CurrentUserID(c *gin.Context) (uint64, bool) {
	userID, ok := GetUserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Not authenticated")
		return 0, false
	}
	return userID, true
}

// toUserID accepts the integer types a session codec may hand back.
func toUserID(value any) (uint64, bool) {
	var id int64
	switch v := value.(type) {
	case uint64:
		return v, v > 0
	case uint:
		return uint64(v), v > 0
	case int64:
		id = v
	case int:
		id = int64(v)
	default:
		return 0, false
	}
	if id <= 0 {
		return 0, false
	}
	return uint64(id), true
}
