// Package relay is a small completion backend that speaks both widget wire
// contracts: JSON prompts on /completion and multipart questions on
// /fileupload.
package relay

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"voicewidget/internal/ports"
)

// Config controls the relay server.
type Config struct {
	// Token, when set, must be presented as a bearer token on /completion.
	Token          string
	ResponderName  string
	RequestTimeout time.Duration
}

// Server answers completion requests through a responder.
type Server struct {
	app       *fiber.App
	responder ports.CompletionService
	cfg       Config
	logger    *slog.Logger
}

type completionRequest struct {
	Prompt string `json:"prompt"`
}

func New(responder ports.CompletionService, cfg Config, logger *slog.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.ResponderName == "" {
		cfg.ResponderName = "custom"
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		responder: responder,
		cfg:       cfg,
		logger:    logger.With("component", "relay"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "voicewidget relay",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	app.Use(recover.New())
	// The web widget calls the relay straight from the page.
	app.Use(cors.New())

	app.Get("/healthz", s.handleHealth)
	app.Post("/completion", s.requireToken, s.handleCompletion)
	app.Post("/fileupload", s.handleUpload)

	s.app = app
	return s
}

// App exposes the fiber app for tests and embedding.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("relay listening", "addr", addr, "responder", s.cfg.ResponderName, "auth", s.cfg.Token != "")
	return s.app.Listen(addr)
}

// Serve serves on an existing listener until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "responder": s.cfg.ResponderName})
}

func (s *Server) requireToken(c *fiber.Ctx) error {
	if s.cfg.Token == "" {
		return c.Next()
	}
	header := c.Get(fiber.HeaderAuthorization)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.cfg.Token)) != 1 {
		return fiber.NewError(fiber.StatusUnauthorized, "missing or invalid bearer token")
	}
	return c.Next()
}

func (s *Server) handleCompletion(c *fiber.Ctx) error {
	var req completionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON")
	}

	answer, err := s.answer(c, req.Prompt)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"bot": answer})
}

func (s *Server) handleUpload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "expected multipart form")
	}

	question := ""
	if values := form.Value["question"]; len(values) > 0 {
		question = values[0]
	}

	answer, err := s.answer(c, question)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"answer": answer})
}

func (s *Server) answer(c *fiber.Ctx, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(c.UserContext(), s.cfg.RequestTimeout)
	defer cancel()

	started := time.Now()
	answer, err := s.responder.Complete(ctx, prompt)
	if err != nil {
		s.logger.Warn("responder failed", "path", c.Path(), "error", err)
		return "", fiber.NewError(fiber.StatusBadGateway, "completion failed")
	}

	s.logger.Info("answered", "path", c.Path(), "chars", len(prompt), "elapsed", time.Since(started))
	return answer, nil
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "status", code, "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
