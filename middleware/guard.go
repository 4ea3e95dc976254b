package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/authsvc"
)

const (
	claimsKey      = "authsvc.claims"
	accessTokenKey = "authsvc.access_token"
)

const (
	msgNoToken      = "No token provided, authorization denied"
	msgInvalidToken = "Invalid or expired token"
	msgMalformed    = "Malformed authorization header"
)

// Validator is the subset of *authsvc.Engine that Guard needs.
type Validator interface {
	ValidateAccess(ctx context.Context, token string) (*authsvc.AccessClaims, error)
}

type guardOptions struct {
	malformedStatus int
}

// GuardOption customizes [Guard].
type GuardOption func(*guardOptions)

// WithMalformedStatus sets the status for an Authorization header that is
// present but not of the form "Bearer <token>". The default is 401.
func WithMalformedStatus(status int) GuardOption {
	return func(o *guardOptions) {
		o.malformedStatus = status
	}
}

// Guard rejects requests without a valid access token. A missing header is
// 401; a rejected token is 401; a store failure is 500.
func Guard(v Validator, opts ...GuardOption) gin.HandlerFunc {
	o := guardOptions{malformedStatus: http.StatusUnauthorized}
	for _, opt := range opts {
		opt(&o)
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, http.StatusUnauthorized, msgNoToken)
			return
		}
		token, ok := bearerToken(header)
		if !ok {
			msg := msgMalformed
			if o.malformedStatus == http.StatusUnauthorized {
				msg = msgNoToken
			}
			abort(c, o.malformedStatus, msg)
			return
		}

		claims, err := v.ValidateAccess(c.Request.Context(), token)
		if err != nil {
			if authsvc.KindOf(err) == authsvc.KindDependency {
				_ = c.Error(err)
				abort(c, http.StatusInternalServerError, "Internal Server Error")
				return
			}
			abort(c, http.StatusUnauthorized, msgInvalidToken)
			return
		}

		c.Set(claimsKey, claims)
		c.Set(accessTokenKey, token)
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by Guard.
func ClaimsFrom(c *gin.Context) (*authsvc.AccessClaims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*authsvc.AccessClaims)
	return claims, ok && claims != nil
}

// AccessTokenFrom returns the raw bearer token accepted by Guard.
func AccessTokenFrom(c *gin.Context) (string, bool) {
	return c.GetString(accessTokenKey), c.GetString(accessTokenKey) != ""
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}

	return token, true
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}
