// Package server exposes a RAGMesh over HTTP with fiber: JSON endpoints for
// batched answers and session management plus a Server-Sent Events endpoint
// that streams answer fragments.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/hupe1980/ragmesh/engine"
	"github.com/hupe1980/ragmesh/logging"
	"github.com/hupe1980/ragmesh/memory"
)

const requestIDHeader = "X-Request-ID"

// Service is the conversational backend served over HTTP.
type Service interface {
	Ask(ctx context.Context, sessionID, query string) engine.Result
	Stream(ctx context.Context, sessionID, query string) (engine.Result, <-chan string)
	Clear(sessionID string)
	Stats(sessionID string) memory.Stats
	Documents() (uint64, error)
}

// Options configures a Server.
type Options struct {
	AppName string
	// Welcome is returned by GET /v1/welcome.
	Welcome string
	// AllowOrigins is the CORS origin list. Defaults to "*".
	AllowOrigins string
	// MaxMessageRunes rejects longer messages with 413.
	MaxMessageRunes int
	// ShutdownTimeout bounds Shutdown.
	ShutdownTimeout time.Duration
	Logger          logging.Logger
}

// Server is the HTTP transport.
type Server struct {
	app  *fiber.App
	svc  Service
	opts Options
}

// MessageRequest is the body of the message endpoints.
type MessageRequest struct {
	Message string `json:"message"`
}

// New builds the fiber application and registers every route.
func New(svc Service, optFns ...func(o *Options)) *Server {
	opts := Options{
		AppName:         "ragmesh",
		AllowOrigins:    "*",
		MaxMessageRunes: 4000,
		ShutdownTimeout: 30 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	s := &Server{svc: svc, opts: opts}
	s.app = fiber.New(fiber.Config{
		AppName:               opts.AppName,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	s.app.Use(recover.New())
	s.app.Use(requestid.New(requestid.Config{
		Header:    requestIDHeader,
		Generator: uuid.NewString,
	}))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:  opts.AllowOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, " + requestIDHeader,
		AllowMethods:  "GET, POST, DELETE, OPTIONS",
		ExposeHeaders: requestIDHeader,
	}))
	s.app.Use(s.requestLogger)

	s.app.Get("/healthz", s.health)

	v1 := s.app.Group("/v1")
	v1.Get("/welcome", s.welcome)
	v1.Post("/sessions/:id/messages", s.postMessage)
	v1.Post("/sessions/:id/messages/stream", s.streamMessage)
	v1.Get("/sessions/:id/stats", s.stats)
	v1.Delete("/sessions/:id", s.clear)

	s.app.Use(notFound)
	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.opts.Logger.Info("Server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(s.opts.ShutdownTimeout)
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else {
			status = fiber.StatusInternalServerError
		}
	}
	s.opts.Logger.Debug("Request completed",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"latency", time.Since(start).String(),
		"request_id", c.GetRespHeader(requestIDHeader))
	return err
}

func (s *Server) health(c *fiber.Ctx) error {
	health := fiber.Map{"status": "healthy"}
	status := fiber.StatusOK
	docs, err := s.svc.Documents()
	if err != nil {
		health["status"] = "degraded"
		health["documents_error"] = err.Error()
		status = fiber.StatusServiceUnavailable
	} else {
		health["documents"] = docs
	}
	return c.Status(status).JSON(health)
}

func (s *Server) welcome(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": s.opts.Welcome})
}

func (s *Server) postMessage(c *fiber.Ctx) error {
	sessionID, query, err := s.parseMessage(c)
	if err != nil {
		return err
	}
	return c.JSON(s.svc.Ask(c.UserContext(), sessionID, query))
}

func (s *Server) stats(c *fiber.Ctx) error {
	return c.JSON(s.svc.Stats(c.Params("id")))
}

func (s *Server) clear(c *fiber.Ctx) error {
	s.svc.Clear(c.Params("id"))
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) parseMessage(c *fiber.Ctx) (string, string, error) {
	sessionID := strings.TrimSpace(c.Params("id"))
	if sessionID == "" {
		return "", "", fiber.NewError(fiber.StatusBadRequest, "session id is required")
	}
	var req MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return "", "", fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	query := strings.TrimSpace(req.Message)
	if query == "" {
		return "", "", fiber.NewError(fiber.StatusBadRequest, "message is required")
	}
	if s.opts.MaxMessageRunes > 0 && len([]rune(query)) > s.opts.MaxMessageRunes {
		return "", "", fiber.NewError(fiber.StatusRequestEntityTooLarge,
			fmt.Sprintf("message exceeds %d characters", s.opts.MaxMessageRunes))
	}
	return sessionID, query, nil
}

// errorHandler converts handler errors to JSON responses.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	requestID := c.GetRespHeader(requestIDHeader)

	var fe *fiber.Error
	if errors.As(err, &fe) {
		if fe.Code >= fiber.StatusInternalServerError {
			s.opts.Logger.Error("Request error", "path", c.Path(), "method", c.Method(),
				"request_id", requestID, "error", err.Error())
		}
		return c.Status(fe.Code).JSON(fiber.Map{
			"error":      fe.Message,
			"status":     fe.Code,
			"request_id": requestID,
		})
	}

	s.opts.Logger.Error("Request error", "path", c.Path(), "method", c.Method(),
		"request_id", requestID, "error", err.Error())
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":      "Internal Server Error",
		"status":     fiber.StatusInternalServerError,
		"request_id": requestID,
	})
}

func notFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":  "Route not found",
		"status": fiber.StatusNotFound,
		"path":   c.Path(),
		"method": c.Method(),
	})
}

// writeEvent writes one SSE frame and flushes it.
func writeEvent(w *bufio.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}
