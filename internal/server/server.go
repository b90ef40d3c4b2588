// Package server exposes the thin HTTP surface around the pipeline: signed
// upload URL issuance, the storage upload-trigger webhook, and job progress
// polling. Transport glue only; everything stateful lives in the
// repositories and the queue.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/statementhq/royalty-pipeline/internal/async"
	"github.com/statementhq/royalty-pipeline/internal/repository"
	"github.com/statementhq/royalty-pipeline/internal/storage"
)

type Server struct {
	queue  repository.QueueRepository
	files  repository.FileRepository
	blobs  storage.BlobStore
	jobs   async.Queue
	logger *slog.Logger

	httpServer *http.Server
}

func New(addr string, queue repository.QueueRepository, files repository.FileRepository, blobs storage.BlobStore, jobs async.Queue, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		queue:  queue,
		files:  files,
		blobs:  blobs,
		jobs:   jobs,
		logger: logger,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	v1 := engine.Group("/v1")
	{
		v1.GET("/healthz", s.handleHealth)
		v1.POST("/uploads", s.handleCreateUpload)
		v1.POST("/webhooks/storage", s.handleStorageWebhook)
		v1.GET("/jobs/:id", s.handleGetJob)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
