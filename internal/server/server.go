package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"salesflow/config"
	"salesflow/internal/handler"
	"salesflow/internal/middleware"
	"salesflow/internal/transport/httpdto"
	"salesflow/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
	onShutdown []func()
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Outbox   *handler.OutboxHandler
	Event    *handler.EventHandler
	Workflow *handler.WorkflowHandler
	Payment  *handler.PaymentHandler
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// OnShutdown registers fn to run after the HTTP server has drained.
func (s *Server) OnShutdown(fn func()) {
	s.onShutdown = append(s.onShutdown, fn)
}

func (s *Server) SetupRoutes(handlers *Handlers, adminSecret []byte, checks map[string]HealthCheck) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		for name, check := range checks {
			if err := check(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(fmt.Sprintf("%s: %v", name, err), "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	v1 := s.engine.Group("/v1")
	v1.POST("/events", handlers.Event.Publish)

	admin := v1.Group("/admin", middleware.AdminAuth(adminSecret))
	{
		admin.POST("/outbox/process", handlers.Outbox.Process)
		admin.POST("/outbox/retry", handlers.Outbox.Retry)
		admin.POST("/outbox/requeue-stale", handlers.Outbox.RequeueStale)
		admin.GET("/outbox/status", handlers.Outbox.Status)
		admin.GET("/outbox/status/by-type", handlers.Outbox.StatusByType)
		admin.GET("/outbox/series", handlers.Outbox.Series)
		admin.GET("/outbox/failed", handlers.Outbox.Failed)
	}

	orders := v1.Group("/orders/:id")
	{
		orders.GET("/workflow", handlers.Workflow.SaleWorkflow)
		orders.POST("/workflow/events", handlers.Workflow.ApplySaleEvent)
		orders.GET("/fulfillment/workflow", handlers.Workflow.FulfillmentWorkflow)
		orders.PUT("/fulfillment/status", handlers.Workflow.UpdateFulfillmentStatus)
	}

	payments := v1.Group("/payments")
	{
		payments.POST("", handlers.Payment.Register)
		payments.POST("/:id/confirm", handlers.Payment.Confirm)
	}
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	for _, fn := range s.onShutdown {
		fn()
	}
	if err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}
	return nil
}
