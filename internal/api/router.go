package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/99minutos/identity-service/docs" // Swagger docs
	"github.com/99minutos/identity-service/internal/api/handler"
	"github.com/99minutos/identity-service/internal/api/middleware"
	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

const (
	defaultLoginRate  = rate.Limit(1)
	defaultLoginBurst = 10
	loginLimiterTTL   = 3 * time.Minute
)

// RouterConfig carries everything NewRouter wires into the Echo instance.
type RouterConfig struct {
	Credentials  ports.CredentialService
	HealthChecks map[string]handler.CheckFunc
	Logger       zerolog.Logger

	// LoginRate and LoginBurst bound login requests per client IP.
	LoginRate  rate.Limit
	LoginBurst int

	// MetricsRegisterer and MetricsGatherer default to the global Prometheus
	// registry.
	MetricsRegisterer prometheus.Registerer
	MetricsGatherer   prometheus.Gatherer
}

// NewRouter builds and returns the Echo instance with all routes registered.
//
//	@title						Identity Service API
//	@version					1.0
//	@description				Credential store and authorizer: login, sessions and role-based account management.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
func NewRouter(cfg RouterConfig) *echo.Echo {
	if cfg.LoginRate <= 0 {
		cfg.LoginRate = defaultLoginRate
	}
	if cfg.LoginBurst <= 0 {
		cfg.LoginBurst = defaultLoginBurst
	}
	if cfg.MetricsRegisterer == nil {
		cfg.MetricsRegisterer = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(cfg.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(cfg.Logger))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:                 "http",
		Registerer:                cfg.MetricsRegisterer,
		DoNotUseRequestPathFor404: true,
		Skipper:                   skipInfraPaths,
	}))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(cfg.Credentials)
	userHandler := handler.NewUserHandler(cfg.Credentials)
	healthHandler := handler.NewHealthHandler(cfg.HealthChecks)
	authenticated := middleware.Auth(cfg.Credentials)
	adminOnly := middleware.RBAC(domain.RoleAdmin)

	// --- Auth routes ---
	v1 := e.Group("/v1")
	auth := v1.Group("/auth")
	auth.POST("/login", authHandler.Login, loginLimiter(cfg.LoginRate, cfg.LoginBurst))
	auth.POST("/logout", authHandler.Logout, authenticated)
	auth.GET("/me", authHandler.Me, authenticated)

	// --- Account routes ---
	users := v1.Group("/users", authenticated)
	users.POST("", userHandler.Create, adminOnly)
	users.GET("", userHandler.List, adminOnly)
	users.GET("/:username", userHandler.Get)
	users.PUT("/:username/password", userHandler.ResetPassword)
	users.PUT("/:username/role", userHandler.ChangeRole, adminOnly)
	users.DELETE("/:username", userHandler.Delete, adminOnly)

	// --- Health probes and tooling (no auth required) ---
	e.GET("/health", healthHandler.Liveness)        // liveness  – is the process alive?
	e.GET("/health/ready", healthHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: cfg.MetricsGatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

func skipInfraPaths(c echo.Context) bool {
	p := c.Path()
	return p == "/metrics" || strings.HasPrefix(p, "/health") || strings.HasPrefix(p, "/swagger")
}

// loginLimiter throttles login requests per client IP, independently of the
// per-username attempt limiter in the service.
func loginLimiter(limit rate.Limit, burst int) echo.MiddlewareFunc {
	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      limit,
		Burst:     burst,
		ExpiresIn: loginLimiterTTL,
	})
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "access denied")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
		},
	})
}

// requestLogger logs one line per request. Headers and bodies are never
// logged, so tokens and passwords stay out of the logs.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= http.StatusInternalServerError {
				ev = log.Error()
			}
			ev.Str("method", v.Method).
				Str("path", v.URIPath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
