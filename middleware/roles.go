package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/authsvc/permission"
)

// RequireRoles admits callers whose role is one of allowed. The set is built
// once here, not per request.
func RequireRoles(allowed ...permission.Role) gin.HandlerFunc {
	set := permission.NewSet(allowed...)

	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok || !permission.HasRole(claims.Role, set) {
			abort(c, http.StatusForbidden, "access denied")
			return
		}
		c.Next()
	}
}
