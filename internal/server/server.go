// Package server exposes question search and subtopic normalization over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"

	"qbank/internal/domain"
	"qbank/internal/retrieval"
)

// QuestionPort is the server-facing subset of the question service.
type QuestionPort interface {
	Search(ctx context.Context, p domain.Profile, k int) (retrieval.Result, error)
	Normalize(bank domain.Bank) int
}

// Options configures the HTTP surface. Defaults fill profile fields a request leaves out.
type Options struct {
	AllowedOrigins []string
	Defaults       domain.Profile
	TopK           int
}

type Server struct {
	service QuestionPort
	opts    Options
}

func New(service QuestionPort, opts Options) *Server {
	return &Server{service: service, opts: opts}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if len(s.opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.healthHandler)
	r.Post("/search", s.searchHandler)
	r.Post("/normalize", s.normalizeHandler)
	return r
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "ok")
}

type searchRequest struct {
	domain.Profile
	K int `json:"k"`
}

// POST /search {"query": "...", "marks": 3, "difficulty": "medium", "cognitive_level": "applying", "k": 15}
func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	p := s.withDefaults(req.Profile)
	k := req.K
	if k <= 0 {
		k = s.opts.TopK
	}

	res, err := s.service.Search(r.Context(), p, k)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type normalizeResponse struct {
	Changed int         `json:"changed"`
	Bank    domain.Bank `json:"bank"`
}

// POST /normalize {"1_mark": [...], "3_mark": [...]}
func (s *Server) normalizeHandler(w http.ResponseWriter, r *http.Request) {
	var bank domain.Bank
	if err := json.NewDecoder(r.Body).Decode(&bank); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	changed := s.service.Normalize(bank)
	writeJSON(w, http.StatusOK, normalizeResponse{Changed: changed, Bank: bank})
}

func (s *Server) withDefaults(p domain.Profile) domain.Profile {
	d := s.opts.Defaults
	if p.Marks == 0 {
		p.Marks = d.Marks
	}
	if p.Difficulty == "" {
		p.Difficulty = d.Difficulty
	}
	if p.Cognitive == "" {
		p.Cognitive = d.Cognitive
	}
	return p
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, domain.ErrInvalidProfile):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotIndexed):
		status = http.StatusConflict
	case errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("search failed")
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("write response")
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"elapsed":    time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}
