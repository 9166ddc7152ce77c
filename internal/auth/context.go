package auth

import (
	"context"

	"github.com/gin-gonic/gin"
)

type ctxKey struct{}

type UserContext struct {
	UserID string
	Role   string
}

const RoleAdmin = "admin"

func (u UserContext) IsAdmin() bool { return u.Role == RoleAdmin }

func WithUser(ctx context.Context, u UserContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFrom returns the authenticated caller stored by the middleware.
func UserFrom(ctx context.Context) (UserContext, bool) {
	u, ok := ctx.Value(ctxKey{}).(UserContext)
	return u, ok && u.UserID != ""
}

// GetUserID is the gin shortcut for handlers behind Authz.Require.
func GetUserID(c *gin.Context) string {
	u, _ := UserFrom(c.Request.Context())
	return u.UserID
}
