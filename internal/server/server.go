// Package server exposes the scrape artifacts over a read-only HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wiki-scraper/internal/model"
	"github.com/sells-group/wiki-scraper/internal/progress"
)

const shutdownTimeout = 10 * time.Second

// Server serves characters, failures and progress from the progress store.
type Server struct {
	progress      *progress.Store
	characterList string
	router        chi.Router
}

// New builds a Server reading from ps. characterList is the identifier list
// used for progress reporting; it may not exist yet.
func New(ps *progress.Store, characterList string) *Server {
	s := &Server{progress: ps, characterList: characterList}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/characters", s.handleCharacters)
	r.Get("/characters/{name}", s.handleCharacter)
	r.Get("/failures", s.handleFailures)
	r.Get("/progress", s.handleProgress)
	return r
}

// ListenAndServe serves on port until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCharacters(w http.ResponseWriter, _ *http.Request) {
	res, err := s.progress.LoadConsolidated()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if res == nil {
		res = &model.ConsolidatedResult{Characters: []model.CharacterRecord{}}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCharacter(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "server: invalid character name"))
		return
	}
	res, err := s.progress.LoadConsolidated()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if res != nil {
		for _, rec := range res.Characters {
			if rec.SourceName() == name {
				writeJSON(w, http.StatusOK, rec)
				return
			}
		}
	}
	writeError(w, http.StatusNotFound, eris.Errorf("character not found: %s", name))
}

func (s *Server) handleFailures(w http.ResponseWriter, _ *http.Request) {
	failures, err := s.progress.LoadFailures()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if failures == nil {
		failures = []model.FailureEntry{}
	}
	writeJSON(w, http.StatusOK, failures)
}

func (s *Server) handleProgress(w http.ResponseWriter, _ *http.Request) {
	var requested []string
	if s.characterList != "" && fileExists(s.characterList) {
		ids, err := progress.ReadIdentifiers(s.characterList)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		requested = ids
	}

	sum, err := s.progress.Summarize(requested)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		zap.L().Error("server: request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
