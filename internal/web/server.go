// Package web exposes imports as background jobs over HTTP and websockets.
package web

import (
	"context"
	"net/http"
	"sync"

	"mptreasury/internal/importer"
	"mptreasury/internal/logger"
	"mptreasury/internal/pipeline"
)

// Importer runs one import. *pipeline.Pipeline implements it.
type Importer interface {
	RunImport(ctx context.Context, dir string, upload bool, hooks importer.Hooks) (*pipeline.Summary, error)
}

// Server runs import jobs one at a time.
type Server struct {
	ctx      context.Context
	jobMgr   *JobManager
	importer Importer
	logger   *logger.Logger
	sem      chan struct{}
	wg       sync.WaitGroup
}

// NewServer creates a server whose jobs are cancelled with ctx.
func NewServer(ctx context.Context, jobMgr *JobManager, imp Importer, log *logger.Logger) *Server {
	return &Server{
		ctx:      ctx,
		jobMgr:   jobMgr,
		importer: imp,
		logger:   log,
		sem:      make(chan struct{}, 1),
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("POST /api/jobs/{id}/cancel", s.handleCancelJob)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	return s.loggingMiddleware(mux)
}

// Wait blocks until every started job has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
