package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/BodaDayo/TODO-Mobile/internal/mirror/tree"
)

// maxBodyBytes bounds PUT and PATCH bodies.
const maxBodyBytes = 10 << 20

// Config holds server configuration.
type Config struct {
	// Port to listen on (default: 8089, 0 picks a free port)
	Port int

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:   8089,
		Logger: log.New(os.Stderr, "[mirror] ", log.LstdFlags),
	}
}

// Server is the mirror HTTP server.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server
	echo     *echo.Echo

	store  Store
	hub    *hub
	logger *log.Logger
}

// NewServer creates a server over store. Start must be called to serve.
func NewServer(store Store, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[mirror] ", log.LstdFlags)
	}

	s := &Server{
		addr:   fmt.Sprintf(":%d", config.Port),
		store:  store,
		hub:    newHub(logger),
		logger: logger,
	}
	s.echo = s.routes()
	return s
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${method} ${uri} ${status} ${latency_human}\n",
		Output: s.logger.Writer(),
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("10M"))

	e.GET("/health", s.handleHealth)
	e.GET("/ws", echo.WrapHandler(http.HandlerFunc(s.hub.handleWebSocket)))

	e.GET("/v1/data", s.handleGet)
	e.GET("/v1/data/*", s.handleGet)
	e.PUT("/v1/data/*", s.handlePut)
	e.PATCH("/v1/data/*", s.handlePatch)
	e.DELETE("/v1/data/*", s.handleDelete)

	e.PUT("/v1/blobs/*", s.handlePutBlob)
	e.GET("/v1/blobs/*", s.handleGetBlob)
	return e
}

// Start listens on the configured port and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.hub.start()

	go func() {
		s.logger.Printf("Mirror server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()
	return nil
}

// Stop closes WebSocket clients and shuts the HTTP server down.
func (s *Server) Stop() error {
	s.logger.Println("Stopping mirror server")
	s.hub.stop()

	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}

// GetAddr returns the listening address.
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// URL returns the base URL clients should use.
func (s *Server) URL() string {
	addr := s.GetAddr()
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// ClientCount returns the number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	return s.hub.count()
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": s.hub.count(),
	})
}

func (s *Server) handleGet(c echo.Context) error {
	p, err := pathParam(c)
	if err != nil {
		return err
	}
	value, ok, err := s.store.Get(c.Request().Context(), p)
	if err != nil {
		return s.storeError(err)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no data at "+p)
	}
	return c.JSONBlob(http.StatusOK, value)
}

func (s *Server) handlePut(c echo.Context) error {
	p, body, err := pathAndBody(c)
	if err != nil {
		return err
	}
	if err := s.store.Set(c.Request().Context(), p, body); err != nil {
		return s.storeError(err)
	}
	s.hub.publish(Event{Path: p, Action: ActionPut})
	return c.JSON(http.StatusOK, map[string]string{"path": p})
}

func (s *Server) handlePatch(c echo.Context) error {
	p, body, err := pathAndBody(c)
	if err != nil {
		return err
	}
	if err := s.store.Update(c.Request().Context(), p, body); err != nil {
		return s.storeError(err)
	}
	s.hub.publish(Event{Path: p, Action: ActionPatch})
	return c.JSON(http.StatusOK, map[string]string{"path": p})
}

func (s *Server) handleDelete(c echo.Context) error {
	p, err := pathParam(c)
	if err != nil {
		return err
	}
	if err := s.store.Delete(c.Request().Context(), p); err != nil {
		return s.storeError(err)
	}
	s.hub.publish(Event{Path: p, Action: ActionDelete})
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handlePutBlob(c echo.Context) error {
	p, err := pathParam(c)
	if err != nil {
		return err
	}
	if p == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "blob path is required")
	}
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read body")
	}

	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if err := s.store.PutBlob(c.Request().Context(), p, Blob{ContentType: contentType, Data: data}); err != nil {
		return s.storeError(err)
	}
	s.hub.publish(Event{Path: p, Action: ActionBlob})
	return c.JSON(http.StatusOK, map[string]interface{}{"path": p, "size": len(data)})
}

func (s *Server) handleGetBlob(c echo.Context) error {
	p, err := pathParam(c)
	if err != nil {
		return err
	}

	wantURL := false
	if strings.HasSuffix(p, "/url") {
		p = strings.TrimSuffix(p, "/url")
		wantURL = true
	}

	blob, err := s.store.GetBlob(c.Request().Context(), p)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "no blob at "+p)
	}
	if err != nil {
		return s.storeError(err)
	}

	if wantURL {
		u := c.Scheme() + "://" + c.Request().Host + "/v1/blobs/" + escapePath(p)
		return c.JSON(http.StatusOK, map[string]string{"url": u})
	}
	c.Response().Header().Set(echo.HeaderLastModified, blob.UpdatedAt.UTC().Format(http.TimeFormat))
	return c.Blob(http.StatusOK, blob.ContentType, blob.Data)
}

func (s *Server) storeError(err error) error {
	if errors.Is(err, tree.ErrInvalidPath) || errors.Is(err, tree.ErrInvalidValue) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.logger.Printf("Store error: %v", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "store error")
}

func pathParam(c echo.Context) (string, error) {
	raw, err := url.PathUnescape(c.Param("*"))
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "malformed path")
	}
	p, err := tree.Clean(raw)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return p, nil
}

func pathAndBody(c echo.Context) (string, json.RawMessage, error) {
	p, err := pathParam(c)
	if err != nil {
		return "", nil, err
	}
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return "", nil, echo.NewHTTPError(http.StatusBadRequest, "failed to read body")
	}
	if !json.Valid(body) {
		return "", nil, echo.NewHTTPError(http.StatusBadRequest, "body is not valid JSON")
	}
	return p, body, nil
}

func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/")
}
