// Package apihttp exposes the strategy engine and analytics over a small
// JSON HTTP API.
package apihttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tranche/internal/logger"

	"github.com/gin-gonic/gin"
)

// Server hosts the /api routes plus a health probe.
type Server struct {
	addr   string
	router *gin.Engine
}

func NewServer(cfg RouterConfig, addr string) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("api http server requires an engine")
	}
	if addr == "" {
		addr = ":9980"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	NewRouter(cfg).Register(router.Group("/api"))

	return &Server{addr: addr, router: router}, nil
}

func (s *Server) Addr() string { return s.addr }

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		client := c.ClientIP()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			method, path, c.Writer.Status(), client, time.Since(start))
	}
}
