package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type Authz struct {
	secret []byte
	issuer string
}

func NewAuthz(secret, issuer string) *Authz {
	return &Authz{secret: []byte(secret), issuer: issuer}
}

// Require validates the bearer token and stores the caller on the request
// context. With admin set, callers without the admin role get 403.
func (a *Authz) Require(admin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			unauth(c, "invalid_request", "missing bearer token")
			return
		}

		raw := strings.TrimPrefix(header, "Bearer ")
		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return a.secret, nil
		}, jwt.WithLeeway(30*time.Second))
		if err != nil || !token.Valid {
			unauth(c, "invalid_token", "invalid jwt")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			unauth(c, "invalid_token", "claims parsing error")
			return
		}
		if a.issuer != "" && claims["iss"] != a.issuer {
			unauth(c, "invalid_token", "issuer mismatch")
			return
		}

		sub, _ := claims.GetSubject()
		if sub == "" {
			unauth(c, "invalid_token", "missing subject")
			return
		}
		user := UserContext{UserID: sub, Role: extractRole(claims)}

		if admin && !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"ok": false, "error": "admin access required"})
			return
		}

		c.Request = c.Request.WithContext(WithUser(c.Request.Context(), user))
		c.Next()
	}
}

// extractRole accepts both the string form and the legacy numeric form (1 = admin).
func extractRole(claims jwt.MapClaims) string {
	switch v := claims["role"].(type) {
	case string:
		return v
	case float64:
		if v == 1 {
			return RoleAdmin
		}
	}
	return ""
}

func unauth(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": desc})
}
