// Command authsvc runs the authentication HTTP service.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/wneessen/go-mail"

	"github.com/MrEthical07/authsvc"
	"github.com/MrEthical07/authsvc/internal/config"
	"github.com/MrEthical07/authsvc/internal/federation"
	"github.com/MrEthical07/authsvc/internal/httpapi"
	"github.com/MrEthical07/authsvc/internal/logging"
	"github.com/MrEthical07/authsvc/internal/mailer"
	"github.com/MrEthical07/authsvc/internal/rate"
	"github.com/MrEthical07/authsvc/internal/storage/sqlstore"
	"github.com/MrEthical07/authsvc/internal/telemetry"
	otelexport "github.com/MrEthical07/authsvc/metrics/export/otel"
	promexport "github.com/MrEthical07/authsvc/metrics/export/prometheus"
)

const meterName = "github.com/MrEthical07/authsvc"

func main() {
	cfg := config.MustLoad()
	log := logging.Setup(cfg.Env)

	if err := run(cfg, log); err != nil {
		log.Error("authsvc stopped", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting authsvc", slog.String("env", cfg.Env), slog.String("address", cfg.HTTP.Address))

	providers, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(sctx); err != nil {
			log.Warn("telemetry shutdown", logging.Err(err))
		}
	}()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	users, err := sqlstore.Open(ctx, sqlstore.Dialect(cfg.Database.Driver), cfg.Database.DSN, sqlstore.Options{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		Logger:       log,
	})
	if err != nil {
		return err
	}
	defer users.Close()

	sender, err := newMailer(cfg.Mail, log)
	if err != nil {
		return err
	}

	limiter := rate.New(rdb, rate.Config{
		KeyPrefix:        cfg.Redis.KeyPrefix,
		LoginMaxAttempts: cfg.RateLimit.LoginMax,
		LoginWindow:      cfg.RateLimit.LoginWindow,
		CodeMaxRequests:  cfg.RateLimit.CodeMax,
		CodeWindow:       cfg.RateLimit.CodeWindow,
	})

	engine, err := authsvc.New().
		WithConfig(engineConfig(cfg)).
		WithRedis(rdb).
		WithUserStore(users).
		WithMailer(sender).
		WithRateLimiter(limiter).
		WithLogger(log).
		WithTracerProvider(providers.Tracer).
		Build()
	if err != nil {
		return err
	}

	metrics, err := otelexport.NewOTelExporter(providers.Meter.Meter(meterName), engine)
	if err != nil {
		return err
	}
	defer metrics.Close()

	opts := httpapi.Options{
		Prefix:         cfg.HTTP.Prefix,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Metrics:        promexport.NewPrometheusExporter(engine).Handler(),
		Logger:         log,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
	}
	if cfg.OAuth.Google.Enabled() {
		states := federation.NewStateStore(rdb, cfg.Redis.KeyPrefix, cfg.OAuth.Google.StateTTL)
		opts.Google, err = federation.NewGoogle(federation.GoogleConfig{
			ClientID:     cfg.OAuth.Google.ClientID,
			ClientSecret: cfg.OAuth.Google.ClientSecret,
			RedirectURL:  cfg.OAuth.Google.RedirectURL,
		}, states)
		if err != nil {
			return err
		}
	} else {
		log.Info("google login disabled")
	}

	if cfg.Env == config.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := httpapi.NewRouter(engine, opts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := engine.Ping(pingCtx); err != nil {
		log.Warn("dependencies not ready at startup", logging.Err(err))
	}
	cancel()

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func newMailer(cfg config.Mail, log *slog.Logger) (authsvc.Mailer, error) {
	if cfg.Driver != "smtp" {
		return mailer.NewLog(log), nil
	}
	return mailer.NewSMTP(mailer.SMTPConfig{
		Host:      cfg.Host,
		Port:      cfg.Port,
		Username:  cfg.Username,
		Password:  cfg.Password,
		From:      cfg.From,
		TLSPolicy: mail.TLSOpportunistic,
	}, log)
}

func engineConfig(cfg *config.Config) authsvc.Config {
	out := authsvc.DefaultConfig()

	out.JWT.AccessSecret = []byte(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = []byte(cfg.JWT.RefreshSecret)
	out.JWT.Issuer = cfg.JWT.Issuer
	out.JWT.AccessTTL = cfg.JWT.AccessTTL
	out.JWT.RefreshTTL = cfg.JWT.RefreshTTL
	out.JWT.Leeway = cfg.JWT.Leeway

	out.Session.RedisPrefix = cfg.Redis.KeyPrefix

	out.EmailVerification.CodeTTL = cfg.Auth.VerificationCodeTTL
	out.PasswordReset.CodeTTL = cfg.Auth.ResetCodeTTL
	out.PasswordReset.HideUnknownEmail = cfg.Auth.HideUnknownResetEmail
	out.Auth.RequireVerifiedEmail = cfg.Auth.RequireVerifiedEmail

	out.TOTP.Issuer = cfg.TOTP.Issuer
	out.TOTP.Skew = cfg.TOTP.Skew
	out.TOTP.EnforceReplayProtection = cfg.TOTP.EnforceReplayProtection

	return out
}
