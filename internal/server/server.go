package server

import (
	"context"
	"net/http"

	"shopify-order-sync/internal/handler"
	"shopify-order-sync/internal/logger"
	authmw "shopify-order-sync/internal/middleware"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	echo           *echo.Echo
	webhookHandler *handler.WebhookHandler
	adminHandler   *handler.AdminHandler
	adminSecret    string
}

func NewServer(webhookHandler *handler.WebhookHandler, adminHandler *handler.AdminHandler, adminSecret string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := logger.Logger.Info()
			if v.Error != nil {
				ev = logger.Logger.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("handled request")
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())

	s := &Server{
		echo:           e,
		webhookHandler: webhookHandler,
		adminHandler:   adminHandler,
		adminSecret:    adminSecret,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// -------- storefront webhooks --------
	api.POST("/webhooks/shopify", s.webhookHandler.Receive)

	// -------- admin --------
	admin := api.Group("/admin", authmw.AdminAuth(s.adminSecret))
	admin.POST("/ledger/:id/reprocess", s.adminHandler.Reprocess)
	admin.POST("/invoices/bulk-submit", s.adminHandler.BulkSubmit)
	admin.POST("/invoices/:name/resync", s.adminHandler.ResyncInvoice)
	admin.POST("/invoices/:name/repair", s.adminHandler.RepairInvoice)
	admin.GET("/stores/:store/summary", s.adminHandler.Summary)
	admin.GET("/stores/:store/health", s.adminHandler.Health)
	admin.POST("/stores/:store/recheck-incomplete", s.adminHandler.RecheckIncomplete)
	admin.DELETE("/stores/:store/rate-limit/:api", s.adminHandler.ResetRateLimit)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
