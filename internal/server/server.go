// Package server exposes docshelf tables over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rzpsarthak13/docshelf/internal/config"
	"github.com/rzpsarthak13/docshelf/internal/core"
	"github.com/rzpsarthak13/docshelf/pkg/docshelf"
)

// Backend resolves table names to connected drivers. *docshelf.Client
// satisfies it.
type Backend interface {
	Table(ctx context.Context, name string, opts ...docshelf.TableOption) (docshelf.Driver, error)
	TableNames() []string
	Ping(ctx context.Context) error
	MetricsHandler() http.Handler
}

// Server serves the document API for the tables the backend has open.
// Unknown tables answer 404 unless the config allows creating them.
type Server struct {
	backend Backend
	config  config.ServerConfig
	router  *gin.Engine
}

// New builds the router. Mode "" keeps gin's current mode.
func New(backend Backend, cfg config.ServerConfig) *Server {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	s := &Server{
		backend: backend,
		config:  cfg,
		router:  gin.New(),
	}
	s.router.Use(gin.Recovery())
	s.routes()
	return s
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.health)
	if h := s.backend.MetricsHandler(); h != nil {
		s.router.GET("/metrics", gin.WrapH(h))
	}

	tables := s.router.Group("/tables/:table")
	{
		tables.POST("/documents", s.createDocument)
		tables.GET("/documents", s.listDocuments)
		tables.GET("/documents/:id", s.getDocument)
		tables.PATCH("/documents/:id", s.updateDocument)
		tables.DELETE("/documents/:id", s.deleteDocument)
		tables.GET("/count", s.countDocuments)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[SERVER] Listening on %s", s.config.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to serve on %s: %w", s.config.Address, err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("[SERVER] Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	if err := s.backend.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) table(c *gin.Context) (docshelf.Driver, bool) {
	name := c.Param("table")
	if !s.config.AllowCreate && !s.isOpen(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("table %q not found", name)})
		return nil, false
	}
	driver, err := s.backend.Table(c.Request.Context(), name)
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return driver, true
}

func (s *Server) isOpen(name string) bool {
	for _, open := range s.backend.TableNames() {
		if open == name {
			return true
		}
	}
	return false
}

func (s *Server) createDocument(c *gin.Context) {
	driver, ok := s.table(c)
	if !ok {
		return
	}
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}
	doc, err := driver.Set(c.Request.Context(), body)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (s *Server) listDocuments(c *gin.Context) {
	driver, ok := s.table(c)
	if !ok {
		return
	}
	docs, err := driver.Get(c.Request.Context(), queryFromParams(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	if docs == nil {
		docs = []docshelf.Document{}
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

func (s *Server) getDocument(c *gin.Context) {
	driver, ok := s.table(c)
	if !ok {
		return
	}
	doc, err := driver.GetOne(c.Request.Context(), docshelf.Query{docshelf.FieldID: c.Param("id")})
	if err != nil {
		s.fail(c, err)
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) updateDocument(c *gin.Context) {
	driver, ok := s.table(c)
	if !ok {
		return
	}
	var patch map[string]interface{}
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	q := docshelf.Query{docshelf.FieldID: c.Param("id")}
	n, err := driver.Update(ctx, q, patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	if n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	doc, err := driver.GetOne(ctx, q)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) deleteDocument(c *gin.Context) {
	driver, ok := s.table(c)
	if !ok {
		return
	}
	n, err := driver.Delete(c.Request.Context(), docshelf.Query{docshelf.FieldID: c.Param("id")})
	if err != nil {
		s.fail(c, err)
		return
	}
	if n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) countDocuments(c *gin.Context) {
	driver, ok := s.table(c)
	if !ok {
		return
	}
	n, err := driver.Count(c.Request.Context(), queryFromParams(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// queryFromParams turns ?age=30&name=ada into an equality query. Values
// that parse as JSON (numbers, booleans, null, objects) are used as such;
// anything else is matched as a string.
func queryFromParams(c *gin.Context) docshelf.Query {
	params := c.Request.URL.Query()
	q := make(docshelf.Query, len(params))
	for key, values := range params {
		if len(values) == 0 {
			continue
		}
		raw := values[len(values)-1]
		var v interface{}
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		q[key] = v
	}
	return q
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[SERVER] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	body := gin.H{"error": err.Error()}
	var partial *core.PartialError
	if errors.As(err, &partial) {
		body["completed"] = partial.Completed
	}
	c.JSON(status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotConnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrSerialization), errors.Is(err, core.ErrStatement):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrConstraint):
		return http.StatusConflict
	case errors.Is(err, core.ErrConnection):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
