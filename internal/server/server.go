package server

import (
	"storefront-payments/internal/handler"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Server struct {
	echo         *echo.Echo
	orderHandler *handler.OrderHandler
}

func NewServer(orderHandler *handler.OrderHandler, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogMethod: true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Error(v.Error),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:         e,
		orderHandler: orderHandler,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// -------- orders --------
	orders := api.Group("/orders")
	orders.POST("/precreate", s.orderHandler.PreCreate)
	orders.POST("", s.orderHandler.SaveOrder)
	orders.GET("", s.orderHandler.ListOrders)
	orders.PUT("/verify", s.orderHandler.VerifyPayment)

	// -------- gateway webhooks --------
	api.POST("/webhooks/gateway", s.orderHandler.GatewayWebhook)
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}
