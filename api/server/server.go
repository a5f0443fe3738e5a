// Package server contains the main server struct and methods
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stacksym/stacksym/api"
	"github.com/stacksym/stacksym/api/server/routes"
	"github.com/stacksym/stacksym/internal/symbolicate"
)

const shutdownTimeout = 10 * time.Second

// Config is the server config
type Config struct {
	Host   string
	Port   int
	Socket string
	Debug  bool
}

// Server is the main server struct
type Server struct {
	conf   *Config
	router *gin.Engine
	server *http.Server
}

// NewServer creates a new server
func NewServer(conf *Config, sym *symbolicate.Symbolicator) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), logger())

	rg := router.Group("/v" + api.DefaultVersion)
	routes.Add(rg, sym)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		conf:   conf,
		router: router,
		server: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the server and blocks until it is stopped
func (s *Server) Start() error {
	ln, err := s.listen()
	if err != nil {
		return err
	}
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: failed to serve: %w", err)
	}
	return nil
}

func (s *Server) listen() (net.Listener, error) {
	if s.conf.Socket != "" {
		if err := os.MkdirAll(filepath.Dir(s.conf.Socket), 0o750); err != nil {
			return nil, fmt.Errorf("server: failed to create socket directory: %w", err)
		}
		if err := os.Remove(s.conf.Socket); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("server: failed to remove stale socket: %w", err)
		}
		log.WithField("socket", s.conf.Socket).Info("Starting Server")
		return net.Listen("unix", s.conf.Socket)
	}
	addr := fmt.Sprintf("%s:%d", s.conf.Host, s.conf.Port)
	log.WithFields(log.Fields{
		"host": s.conf.Host,
		"port": s.conf.Port,
	}).Info("Starting Server")
	return net.Listen("tcp", addr)
}

// Stop gracefully shuts the server down
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: failed to shutdown: %w", err)
	}
	log.Info("Shutdown Complete")
	return nil
}
