// Package server exposes sessions to the browser UI over a local HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/menta2k/listing-studio/pkg/analyzer"
	"github.com/menta2k/listing-studio/pkg/collab"
	"github.com/menta2k/listing-studio/pkg/processing"
	"github.com/menta2k/listing-studio/pkg/session"
	"github.com/menta2k/listing-studio/pkg/types"
)

const DefaultMaxUploadBytes = 64 << 20

type Config struct {
	Store     *session.Store
	Processor *processing.Processor
	Analyzer  *analyzer.ImageAnalyzer
	// Upscaler and Generator are optional remote services.
	Upscaler  collab.Upscaler
	Generator collab.GenerativeFill
	// FilePrefix is prepended to downloaded result names.
	FilePrefix     string
	MaxUploadBytes int

	OnReady          func(addr string)
	OnBeforeShutdown func()
}

type Server struct {
	config       Config
	app          *fiber.App
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

func New(config Config) *Server {
	if config.Processor == nil {
		config.Processor = processing.NewProcessor()
	}
	if config.Analyzer == nil {
		config.Analyzer = analyzer.New()
	}
	if config.Store == nil {
		config.Store = session.NewStore(session.Config{Processor: config.Processor})
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultMaxUploadBytes
	}

	s := &Server{
		config:     config,
		shutdownCh: make(chan struct{}),
	}
	s.app = fiber.New(fiber.Config{
		Immutable:             true,
		DisableStartupMessage: true,
		BodyLimit:             config.MaxUploadBytes + 1<<20,
		ErrorHandler:          errorHandler,
	})
	s.app.Use(recover.New())
	s.app.Use(requestLogger)
	s.routes()
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
	})
}

// Run listens on addr until ctx is canceled or Shutdown is called. Port 0
// lets the OS pick a free port.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.app.Hooks().OnListen(func(listen fiber.ListenData) error {
		if fn := s.config.OnReady; fn != nil {
			fn(fmt.Sprintf("http://%s:%s", listen.Host, listen.Port))
		}
		return nil
	})

	go func() {
		select {
		case <-ctx.Done():
		case <-s.shutdownCh:
		}
		if fn := s.config.OnBeforeShutdown; fn != nil {
			fn()
		}
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("Failed to shutdown web application")
		}
	}()

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	if err := s.app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// requestLogger puts a request-scoped logger on the user context.
func requestLogger(c *fiber.Ctx) error {
	logger := log.Logger.With().
		Str("request_id", uuid.NewString()).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Logger()
	c.SetUserContext(logger.WithContext(c.UserContext()))

	start := time.Now()
	err := c.Next()
	logger.Debug().Dur("elapsed", time.Since(start)).Msg("request handled")
	return err
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	ev := log.Ctx(c.UserContext()).Warn()
	if code >= http.StatusInternalServerError {
		ev = log.Ctx(c.UserContext()).Error()
	}
	ev.Err(err).Int("status", code).Msg("Request failed")

	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "Internal Server Error"
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		msg = fiberErr.Message
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

func statusFor(err error) int {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrInvalidArgument),
		errors.Is(err, types.ErrUnknownPreset),
		errors.Is(err, types.ErrDecode),
		errors.Is(err, types.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// readUpload returns the bytes of the multipart field name.
func (s *Server) readUpload(c *fiber.Ctx, name string) ([]byte, error) {
	fh, err := c.FormFile(name)
	if err != nil {
		return nil, fiber.NewError(http.StatusBadRequest, fmt.Sprintf("missing %q file field", name))
	}
	if fh.Size > int64(s.config.MaxUploadBytes) {
		return nil, fiber.NewError(http.StatusRequestEntityTooLarge, "upload too large")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, int64(s.config.MaxUploadBytes)))
}
