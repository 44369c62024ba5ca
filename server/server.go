package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"listing-publisher/pipeline"
	"listing-publisher/storage"
	"listing-publisher/utils"
)

// Options configures the HTTP backend.
type Options struct {
	Addr       string
	CORSOrigin string
	// ListingsDir is served at /listings/ when images are hosted locally.
	ListingsDir string
	// Receipts enables the receipts lookup endpoint when non-nil.
	Receipts storage.ReceiptReader
}

// Server is the HTTP backend for the review UI.
type Server struct {
	httpServer *http.Server
	coord      *pipeline.Coordinator
	runs       *Registry
	receipts   storage.ReceiptReader
	logger     *utils.Logger
}

func New(coord *pipeline.Coordinator, opts Options, logger *utils.Logger) *Server {
	s := &Server{
		coord:    coord,
		runs:     NewRegistry(),
		receipts: opts.Receipts,
		logger:   logger,
	}
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) routes(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, LoggerMiddleware(s.logger), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{opts.CORSOrigin},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/runs", s.startRun)
		r.Route("/runs/{runID}", func(r chi.Router) {
			r.Get("/", s.getRun)
			r.Put("/review", s.reviewRun)
			r.Post("/publish", s.publishRun)
			r.Delete("/", s.abandonRun)
		})
		if s.receipts != nil {
			r.Get("/listings/{listingID}/receipts", s.listReceipts)
		}
	})

	if opts.ListingsDir != "" {
		r.Handle("/listings/*", http.StripPrefix("/listings/", http.FileServer(http.Dir(opts.ListingsDir))))
	}
	return r
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("[http] Listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}

// Stop shuts the server down and abandons every run still held, so hosted
// copies do not outlive the process.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("[http] Stopping server...")
	err := s.httpServer.Shutdown(ctx)

	for _, id := range s.runs.IDs() {
		if st, ok := s.runs.Get(id); ok {
			s.coord.Abandon(ctx, st)
			s.runs.Delete(id)
		}
	}
	return err
}
