package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hapi-server/hapifetch/internal/cache"
)

// AppOptions controls how the mirror application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	Store      cache.Store
	ListenPort int
}

const (
	contextKeyRequestID = "_hapifetch_request_id"
	headerRequestID     = "X-Request-ID"
)

// NewApp builds a Fiber application serving the cache directory read-only.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Store == nil {
		return nil, errors.New("cache store is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())

	h := &mirrorHandler{store: opts.Store, logger: opts.Logger, port: opts.ListenPort}
	app.All("/*", h.serve)

	return app, nil
}

// requestContextMiddleware 复用调用方的 X-Request-ID，缺省时生成新的请求 ID。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := strings.TrimSpace(c.Get(headerRequestID))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Locals(contextKeyRequestID, reqID)
		c.Set(headerRequestID, reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

type mirrorHandler struct {
	store  cache.Store
	logger *logrus.Logger
	port   int
}

func (h *mirrorHandler) serve(c fiber.Ctx) error {
	started := time.Now()
	method := c.Method()
	rawPath := string(c.Request().URI().Path())
	name := strings.TrimLeft(rawPath, "/")

	if method != http.MethodGet && method != http.MethodHead {
		c.Set(fiber.HeaderAllow, "GET, HEAD")
		return h.renderError(c, fiber.StatusMethodNotAllowed, "method_not_allowed", rawPath, started)
	}
	if name == "" {
		return h.renderError(c, fiber.StatusNotFound, "not_found", rawPath, started)
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := h.store.Get(ctx, name)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		return h.renderError(c, fiber.StatusNotFound, "not_found", rawPath, started)
	case errors.Is(err, cache.ErrInvalidPath):
		return h.renderError(c, fiber.StatusBadRequest, "invalid_path", rawPath, started)
	case err != nil:
		h.logResult(c, rawPath, fiber.StatusInternalServerError, started, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cache_read_failed"})
	}
	defer result.Reader.Close()

	c.Set(fiber.HeaderLastModified, result.Entry.ModTime.UTC().Format(http.TimeFormat))
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	c.Response().Header.SetContentLength(int(result.Entry.SizeBytes))
	c.Status(fiber.StatusOK)

	if method == http.MethodHead {
		h.logResult(c, rawPath, fiber.StatusOK, started, nil)
		return nil
	}

	_, err = io.Copy(c.Response().BodyWriter(), result.Reader)
	h.logResult(c, rawPath, fiber.StatusOK, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("read cache failed: %v", err))
	}
	return nil
}

func (h *mirrorHandler) renderError(c fiber.Ctx, status int, code, path string, started time.Time) error {
	h.logResult(c, path, status, started, nil)
	return c.Status(status).JSON(fiber.Map{"error": code})
}

func (h *mirrorHandler) logResult(c fiber.Ctx, path string, status int, started time.Time, err error) {
	fields := logrus.Fields{
		"action":      "mirror",
		"method":      c.Method(),
		"path":        path,
		"status":      status,
		"port":        h.port,
		"request_id":  RequestID(c),
		"duration_ms": time.Since(started).Milliseconds(),
	}
	if err != nil {
		h.logger.WithFields(fields).WithError(err).Error("mirror request failed")
		return
	}
	h.logger.WithFields(fields).Debug("mirror request served")
}
