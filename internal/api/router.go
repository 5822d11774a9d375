package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/conteo/inventory-sync/docs"
	"github.com/conteo/inventory-sync/internal/api/handler"
	"github.com/conteo/inventory-sync/internal/api/middleware"
	"github.com/conteo/inventory-sync/internal/core/domain"
	"github.com/conteo/inventory-sync/internal/core/ports"
)

// Dependencies are the collaborators the HTTP layer is built from.
type Dependencies struct {
	Sessions     ports.SessionService
	Sync         ports.SyncService
	Reports      ports.ReportService
	JoinLimiter  middleware.Limiter
	HealthChecks []handler.HealthCheck
	JWTSecret    string
	Log          zerolog.Logger
	// Registry receives the HTTP metrics and backs /metrics. Defaults to the
	// global Prometheus registry, where the domain metrics live.
	Registry MetricsRegistry
}

type MetricsRegistry interface {
	prometheus.Registerer
	prometheus.Gatherer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Log))
	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if deps.Registry != nil {
		registerer, gatherer = deps.Registry, deps.Registry
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "counting",
		Registerer: registerer,
	}))

	// --- Handlers ---
	sessionHandler := handler.NewSessionHandler(deps.Sessions)
	syncHandler := handler.NewSyncHandler(deps.Sync)
	catalogHandler := handler.NewCatalogHandler(deps.Sync)
	reportHandler := handler.NewReportHandler(deps.Reports)
	authMiddleware := middleware.Auth(deps.JWTSecret)

	// --- Ops (no auth required) ---
	e.GET("/health", handler.NewHealthHandler().Liveness)
	e.GET("/health/ready", handler.NewHealthDependenciesHandler(deps.HealthChecks...).Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	v1 := e.Group("/v1")

	// --- Participant routes: identified by access code and participant id ---
	join := []echo.MiddlewareFunc{}
	if deps.JoinLimiter != nil {
		join = append(join, middleware.RateLimit(deps.JoinLimiter, "join", deps.Log))
	}
	v1.POST("/join", sessionHandler.Join, join...)
	v1.POST("/sessions/:id/movements", syncHandler.RecordMovements)
	v1.GET("/sessions/:id/aggregates", syncHandler.Aggregates)
	v1.POST("/sessions/:id/participants/:participant_id/leave", sessionHandler.Leave)

	// --- Host routes ---
	host := v1.Group("", authMiddleware, middleware.RBAC(domain.RoleHost, domain.RoleAdmin))
	host.POST("/sessions", sessionHandler.Create)
	host.GET("/sessions", sessionHandler.List)
	host.POST("/sessions/personal", sessionHandler.Personal)
	host.GET("/sessions/:id", sessionHandler.Get)
	host.GET("/sessions/:id/host-aggregates", syncHandler.HostAggregates)
	host.GET("/sessions/:id/sync-status", syncHandler.SyncStatus)
	host.PUT("/sessions/:id/catalog", catalogHandler.Replace)
	host.GET("/sessions/:id/catalog", catalogHandler.Get)
	host.DELETE("/sessions/:id/catalog", catalogHandler.Clear)
	host.POST("/sessions/:id/finalize", reportHandler.Finalize)
	host.POST("/sessions/:id/report/regenerate", reportHandler.Regenerate)
	host.GET("/reports", reportHandler.List)
	host.GET("/reports/:id", reportHandler.Download)
	host.GET("/reports/:id/xlsx", reportHandler.DownloadXLSX)

	// --- Admin routes ---
	admin := v1.Group("/admin", authMiddleware, middleware.RBAC(domain.RoleAdmin))
	admin.DELETE("/sessions/:id/movements", syncHandler.ResetMovements)

	return e
}

// requestLogger emits one zerolog event per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
