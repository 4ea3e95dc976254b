package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/MrEthical07/authsvc"
	"github.com/MrEthical07/authsvc/middleware"
	"github.com/MrEthical07/authsvc/permission"
)

// Provider is an external identity provider such as federation.Google.
type Provider interface {
	AuthCodeURL(ctx context.Context) (string, error)
	Exchange(ctx context.Context, code, state string) (authsvc.Identity, error)
}

// Options configures NewRouter.
type Options struct {
	Prefix         string
	TrustedProxies []string
	// Google is optional; without it the /google routes answer 404.
	Google Provider
	// Metrics serves GET <prefix>/metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
	// CORSOrigins lists allowed browser origins; empty allows any origin.
	CORSOrigins []string
}

type handler struct {
	engine *authsvc.Engine
	google Provider
	log    *slog.Logger
}

var registerTagNames sync.Once

// NewRouter builds the gin engine with every route mounted under opts.Prefix.
func NewRouter(engine *authsvc.Engine, opts Options) (*gin.Engine, error) {
	if opts.Prefix == "" {
		opts.Prefix = "/api/auth"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	useJSONFieldNames()

	r := gin.New()
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, err
	}
	r.Use(gin.CustomRecovery(recovery(opts.Logger)))
	r.Use(requestLogger(opts.Logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))
	r.Use(middleware.RequestMeta())

	h := &handler{engine: engine, google: opts.Google, log: opts.Logger}
	guard := middleware.Guard(engine)

	api := r.Group(opts.Prefix)
	{
		api.POST("/register", h.register)
		api.POST("/verify-email", h.verifyEmail)
		api.POST("/resend-verification", h.resendVerification)
		api.POST("/login", middleware.LoginRateLimit(engine, opts.Logger), h.login)
		api.POST("/refresh-token", h.refresh)

		api.GET("/profile", guard, h.profile)
		api.POST("/logout", middleware.Guard(engine, middleware.WithMalformedStatus(http.StatusBadRequest)), h.logout)
		api.POST("/logout-all", guard, h.logoutAll)
		api.POST("/change-password", guard, h.changePassword)

		tfa := api.Group("/2fa", guard)
		tfa.POST("/setup", h.setupTOTP)
		tfa.POST("/verify", h.verifyTOTP)
		tfa.POST("/disable", h.disableTOTP)

		api.POST("/forgot-password", h.forgotPassword)
		api.POST("/verify-otp", h.verifyOTP)
		api.POST("/reset-password", h.resetPassword)

		api.GET("/google", h.googleStart)
		api.GET("/google/callback", h.googleCallback)

		api.GET("/admin/dashboard", guard, middleware.RequireRoles(permission.RoleAdmin), h.adminDashboard)

		api.GET("/healthz", h.healthz)
		api.GET("/readyz", h.readyz)
		if opts.Metrics != nil {
			api.GET("/metrics", gin.WrapH(opts.Metrics))
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Route not found"})
	})

	return r, nil
}

// useJSONFieldNames makes binding errors report JSON field names.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		level := slog.LevelInfo
		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.Log(c.Request.Context(), level, "http request",
			"method", method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

func recovery(log *slog.Logger) gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		log.ErrorContext(c.Request.Context(), "panic recovered",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"panic", recovered,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": msgInternal})
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type"},
		ExposeHeaders: []string{"Retry-After", "RateLimit-Limit", "RateLimit-Remaining"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			origins = nil
			break
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
