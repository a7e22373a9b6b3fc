package httpserver

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/cristianortiz/carauction/internal/shared/config"
	"github.com/cristianortiz/carauction/internal/shared/logger"
	"github.com/cristianortiz/carauction/internal/shared/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// RouteRegistrar is implemented by every module that mounts HTTP routes.
type RouteRegistrar interface {
	RegisterRoutes(r fiber.Router)
}

type Server struct {
	app             *fiber.App
	shutdownTimeout time.Duration
}

func NewServer(cfg config.ServerConfig, modules ...RouteRegistrar) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "carauction",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(requestLogger)
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	for _, m := range modules {
		m.RegisterRoutes(app)
	}

	return &Server{app: app, shutdownTimeout: cfg.ShutdownTimeout}
}

// App exposes the fiber app, mainly for app.Test in handler tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start serves on addr until ctx is cancelled, then drains in-flight requests
// for up to the shutdown timeout.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server started", zap.String("addr", addr))
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	if err != nil {
		// let the error handler write the response so the status below is final
		if hErr := c.App().ErrorHandler(c, err); hErr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	status := c.Response().StatusCode()
	metrics.HTTPRequests.WithLabelValues(c.Method(), c.Route().Path, strconv.Itoa(status)).Inc()
	log.Info("HTTP request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("latency", time.Since(start)),
		zap.String("remote_addr", c.IP()),
	)
	return nil
}

// errorHandler renders fiber errors (unknown routes, bad upgrades, panics) as JSON.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal error"
	var fErr *fiber.Error
	if errors.As(err, &fErr) {
		code = fErr.Code
		msg = fErr.Message
	} else {
		log.Error("Unhandled request error", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(code).JSON(fiber.Map{"code": "http_error", "error": msg})
}
