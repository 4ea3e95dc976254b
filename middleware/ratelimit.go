package middleware

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/authsvc"
	"github.com/MrEthical07/authsvc/internal/rate"
)

// LoginLimiter is the subset of *rate.Limiter used by LoginRateLimit.
type LoginLimiter interface {
	AllowLogin(ctx context.Context, ip string) (rate.Decision, error)
}

// LoginRateLimit counts every request against the client's login budget and
// answers 429 with Retry-After once it is spent. Limiter failures are 500.
func LoginRateLimit(l LoginLimiter, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := l.AllowLogin(c.Request.Context(), c.ClientIP())
		if d.Limit > 0 {
			c.Header("RateLimit-Limit", strconv.Itoa(d.Limit))
			c.Header("RateLimit-Remaining", strconv.Itoa(d.Remaining))
		}

		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, rate.ErrRateLimited):
			if d.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
			}
			abort(c, http.StatusTooManyRequests, "Too many login attempts. Please try again later.")
		default:
			log.ErrorContext(c.Request.Context(), "login limiter unavailable",
				"client_ip", c.ClientIP(),
				"error", err.Error(),
			)
			abort(c, http.StatusInternalServerError, "Internal Server Error")
		}
	}
}

// RequestMeta stores gin's resolved client address and the User-Agent on
// the request context for the engine's spans and logs.
func RequestMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		meta := authsvc.RequestMeta{ClientIP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
		c.Request = c.Request.WithContext(authsvc.WithRequestMeta(c.Request.Context(), meta))
		c.Next()
	}
}
