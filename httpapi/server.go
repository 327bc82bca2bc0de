// Package httpapi exposes the task/result surface over HTTP: task
// submission, status polling, pipeline monitoring, and result retrieval.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/surveyforge/surveyforge/pipeline"
	"github.com/surveyforge/surveyforge/result"
	"github.com/surveyforge/surveyforge/task"
)

// Server wires task.Manager and result.Store behind net/http's ServeMux.
type Server struct {
	manager  *task.Manager
	results  result.Store
	pipeline *pipeline.Sequential
	log      logrus.FieldLogger

	httpServer *http.Server
}

// NewServer builds a Server. pl may be nil if pipeline-status endpoints
// should always report "not running".
func NewServer(addr string, manager *task.Manager, results result.Store, pl *pipeline.Sequential, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{manager: manager, results: results, pipeline: pl, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/task/submit", s.handleSubmit)
	mux.HandleFunc("GET /api/task/{id}", s.handleGetTask)
	mux.HandleFunc("GET /api/task/{id}/pipeline_status", s.handleTaskPipelineStatus)
	mux.HandleFunc("GET /api/global_pipeline_status", s.handleGlobalPipelineStatus)
	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("GET /api/output/{id}", s.handleOutput)
	mux.HandleFunc("DELETE /api/task/{id}", s.handleDeleteTask)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start runs the HTTP server in the background until the process calls
// Shutdown or ListenAndServe fails for a reason other than a clean close.
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("starting http api server")
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("http api server error")
		}
	}()
	return nil
}

// Shutdown gracefully stops the server within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("stopping http api server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("httpapi: shutdown: %w", err)
	}
	return nil
}
